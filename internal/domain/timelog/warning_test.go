package timelog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarningSet_AggregatesByTypeAndLevel(t *testing.T) {
	ws := NewWarningSet(3)
	for i := 0; i < 5; i++ {
		ws.Add(WarningMalformedTime, LevelWarning, "malformed time cells", fmt.Sprintf("25:6%d", i))
	}
	ws.Add(WarningMalformedTime, LevelWarning, "malformed time cells", "25:60")
	ws.Add(WarningMalformedTime, LevelInfo, "info flavour", "")

	list := ws.List()
	require.Len(t, list, 2)
	assert.Equal(t, 6, list[0].Count)
	assert.Equal(t, []string{"25:60", "25:61", "25:62"}, list[0].Samples)
	assert.Equal(t, LevelInfo, list[1].Level)
	assert.Equal(t, 1, list[1].Count)
	assert.Empty(t, list[1].Samples)
}

func TestWarningSet_MergeSumsCountsAndIdentities(t *testing.T) {
	ws := NewWarningSet(0)
	ws.Merge(ParseWarning{
		Type: WarningAmbiguousIdentity, Level: LevelWarning, Message: "ambiguous", Count: 2,
		UnmatchedIdentities: []UnmatchedIdentity{{Token: "7", EmployeeIDs: []string{"a", "b"}}},
	})
	ws.Merge(ParseWarning{
		Type: WarningAmbiguousIdentity, Level: LevelWarning, Message: "ambiguous", Count: 1,
		UnmatchedIdentities: []UnmatchedIdentity{{Token: "7", EmployeeIDs: []string{"b", "c"}}},
	})

	list := ws.List()
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Count)
	require.Len(t, list[0].UnmatchedIdentities, 1)
	assert.Equal(t, []string{"a", "b", "c"}, list[0].UnmatchedIdentities[0].EmployeeIDs)
}
