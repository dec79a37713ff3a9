package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeToken(t *testing.T) {
	cases := map[string]string{
		"00123": "123",
		" 123 ": "123",
		"abc01": "ABC01",
		"0000":  "0",
		"":      "",
		"007-B": "7-B",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeToken(in), in)
	}
}

func TestMatched(t *testing.T) {
	office := "O-1"
	name := "Jakarta"
	rec := DirectoryEmployee{ID: "E-1", Name: "Ana", OfficeID: &office, OfficeName: &name}.Matched()
	assert.Equal(t, StatusMatched, rec.Status)
	assert.Equal(t, "Jakarta", rec.OfficeName)
	assert.False(t, rec.MissingOffice)

	rec = DirectoryEmployee{ID: "E-2", Name: "Budi"}.Matched()
	assert.True(t, rec.MissingOffice)
	assert.Equal(t, UnknownOffice, rec.OfficeName)
}

func TestCache(t *testing.T) {
	c := NewCache()
	c.Put("1", Record{Status: StatusMatched, EmployeeID: "E-1"})
	c.Put("2", Record{Status: StatusUnmatched, LookupFailed: true})
	c.Put("3", Record{Status: StatusPending})

	_, ok := c.Get("1")
	assert.True(t, ok)
	_, ok = c.Get("2")
	assert.False(t, ok)
	_, ok = c.Get("3")
	assert.False(t, ok)

	hit, miss := c.Split([]string{"1", "2"})
	assert.Len(t, hit, 1)
	assert.Equal(t, []string{"2"}, miss)

	c.Invalidate("1")
	assert.Equal(t, 0, c.Len())

	c.Put("4", Record{Status: StatusMatched})
	c.Reset()
	assert.Equal(t, 0, c.Len())
}
