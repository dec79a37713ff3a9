package workbook

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxXLSRows bounds legacy BIFF reads.
const maxXLSRows = 100000

type sheet struct {
	Name string
	Rows [][]string
}

func readSheets(fileName string, data []byte) ([]sheet, error) {
	if len(data) == 0 {
		return nil, timelog.ErrEmptyWorkbook
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xls":
		return readXLS(data)
	case ".csv", ".txt", ".tsv", ".dat":
		return readDelimited(fileName, data)
	case ".xlsx", ".xlsm", ".xltx", ".xltm", "":
		return readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %s", timelog.ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

func readXLS(data []byte) ([]sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", timelog.ErrUnreadableWorkbook, err)
	}
	if wb.NumSheets() == 0 {
		return nil, timelog.ErrEmptyWorkbook
	}

	// ReadAllCells concatenates every worksheet; device exports carry one.
	rows := wb.ReadAllCells(maxXLSRows)
	if len(rows) == 0 {
		return nil, timelog.ErrEmptyWorkbook
	}
	name := "Sheet1"
	if ws := wb.GetSheet(0); ws != nil && ws.Name != "" {
		name = ws.Name
	}
	return []sheet{{Name: name, Rows: rows}}, nil
}

func readXLSX(data []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", timelog.ErrUnreadableWorkbook, err)
	}
	defer func() { _ = f.Close() }()

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %s: %v", timelog.ErrUnreadableWorkbook, name, err)
		}
		if len(rows) == 0 {
			continue
		}
		sheets = append(sheets, sheet{Name: name, Rows: rows})
	}
	if len(sheets) == 0 {
		return nil, timelog.ErrEmptyWorkbook
	}
	return sheets, nil
}

// readDelimited reads text exports; UTF-16 files are detected by their BOM.
func readDelimited(fileName string, data []byte) ([]sheet, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", timelog.ErrUnreadableWorkbook, err)
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.Comma = sniffDelimiter(decoded)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", timelog.ErrUnreadableWorkbook, len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, timelog.ErrEmptyWorkbook
	}
	return []sheet{{Name: strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)), Rows: rows}}, nil
}

// sniffDelimiter picks the most frequent separator of the first line.
func sniffDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	best, bestCount := ',', 0
	for _, d := range []rune{'\t', ',', ';', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
