package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Table is a flat sheet: one bold header row followed by scalar cells.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
	Widths  []float64
}

// StyleManager caches styles so each one is created once per file.
type StyleManager struct {
	file  *excelize.File
	cache map[string]int
}

func NewStyleManager(f *excelize.File) *StyleManager {
	return &StyleManager{file: f, cache: make(map[string]int)}
}

func (sm *StyleManager) Header() (int, error) {
	return sm.getOrCreate("header", &excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
}

func (sm *StyleManager) getOrCreate(key string, style *excelize.Style) (int, error) {
	if id, ok := sm.cache[key]; ok {
		return id, nil
	}
	id, err := sm.file.NewStyle(style)
	if err != nil {
		return 0, err
	}
	sm.cache[key] = id
	return id, nil
}

// CellName converts 0-based row and column to an A1 reference.
func CellName(row, col int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row+1)
	return name
}

// Build writes the tables into a new workbook and returns its bytes.
// The first table takes over the default sheet.
func Build(tables ...Table) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sm := NewStyleManager(f)
	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.Sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.Sheet); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", t.Sheet, err)
		}
		if err := writeTable(f, sm, t); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", t.Sheet, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write to buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sm *StyleManager, t Table) error {
	style, err := sm.Header()
	if err != nil {
		return err
	}

	if len(t.Headers) > 0 {
		header := make([]any, len(t.Headers))
		for i, h := range t.Headers {
			header[i] = h
		}
		if err := f.SetSheetRow(t.Sheet, CellName(0, 0), &header); err != nil {
			return err
		}
		if err := f.SetCellStyle(t.Sheet, CellName(0, 0), CellName(0, len(t.Headers)-1), style); err != nil {
			return err
		}
	}

	offset := 0
	if len(t.Headers) > 0 {
		offset = 1
	}
	for i, row := range t.Rows {
		if err := f.SetSheetRow(t.Sheet, CellName(i+offset, 0), &row); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	for col, w := range t.Widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(t.Sheet, name, name, w); err != nil {
			return err
		}
	}
	return nil
}
