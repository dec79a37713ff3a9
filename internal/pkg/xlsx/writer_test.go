package xlsx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCellName(t *testing.T) {
	assert.Equal(t, "A1", CellName(0, 0))
	assert.Equal(t, "C2", CellName(1, 2))
	assert.Equal(t, "AA10", CellName(9, 26))
}

func TestBuild(t *testing.T) {
	data, err := Build(
		Table{
			Sheet:   "Employees",
			Headers: []string{"ID", "Name", "Late"},
			Rows: [][]any{
				{"E-1", "Ana", 12},
				{"E-2", "Ben", 0},
			},
			Widths: []float64{10, 30, 8},
		},
		Table{
			Sheet: "Info",
			Rows:  [][]any{{"generated", "today"}},
		},
	)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Employees", "Info"}, f.GetSheetList())

	rows, err := f.GetRows("Employees")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Name", "Late"}, rows[0])
	assert.Equal(t, []string{"E-1", "Ana", "12"}, rows[1])

	info, err := f.GetRows("Info")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"generated", "today"}}, info)
}
