package workbook

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/xlsx"
)

type WorkbookParserImpl struct{}

func NewWorkbookParser() timelog.WorkbookParser {
	return &WorkbookParserImpl{}
}

// Parse implements timelog.WorkbookParser.
func (p *WorkbookParserImpl) Parse(ctx context.Context, fileName string, data []byte, opts timelog.ParseOptions) (timelog.ParsedWorkbook, error) {
	sheets, err := readSheets(fileName, data)
	if err != nil {
		return timelog.ParsedWorkbook{}, fmt.Errorf("read %s: %w", fileName, err)
	}

	warnings := timelog.NewWarningSet(opts.SampleCap)
	b := newRowBuilder(fileName, warnings)
	wb := timelog.ParsedWorkbook{FileName: fileName}

	type detected struct {
		sheet sheet
		grid  gridLayout
		cols  legacyColumns
	}
	var grids, legacies []detected
	hints := make(map[string]struct{})

	for _, s := range sheets {
		if err := ctx.Err(); err != nil {
			return timelog.ParsedWorkbook{}, err
		}
		for _, h := range monthHints(s.Rows) {
			hints[h] = struct{}{}
		}
		if g, ok := detectGrid(s.Rows); ok {
			grids = append(grids, detected{sheet: s, grid: g})
		}
		if c, ok := detectLegacy(s.Rows); ok {
			legacies = append(legacies, detected{sheet: s, cols: c})
		}
	}

	if len(grids) > 0 {
		wb.DetectedLayouts = append(wb.DetectedLayouts, timelog.LayoutGridReport)
	}
	if len(legacies) > 0 {
		wb.DetectedLayouts = append(wb.DetectedLayouts, timelog.LayoutLegacy)
	}

	switch {
	case len(grids) > 0:
		wb.Layout = timelog.LayoutGridReport
		wb.SheetName = grids[0].sheet.Name
		for _, d := range grids {
			parseGrid(d.sheet, d.grid, b)
			for _, h := range d.grid.hints() {
				hints[h] = struct{}{}
			}
		}
		if len(legacies) > 0 {
			warnings.Add(timelog.WarningMultipleLayouts, timelog.LevelInfo,
				"both layouts were detected; the grid report was used", legacies[0].sheet.Name)
		}
	case len(legacies) > 0:
		wb.Layout = timelog.LayoutLegacy
		wb.SheetName = legacies[0].sheet.Name
		for _, d := range legacies {
			parseLegacy(d.sheet, d.cols, b)
		}
	default:
		return timelog.ParsedWorkbook{}, fmt.Errorf("parse %s: %w", fileName, timelog.ErrUnsupportedLayout)
	}

	wb.PerDay = b.result()
	for m := range b.months {
		hints[m] = struct{}{}
	}
	wb.MonthHints = sortedKeys(hints)

	tokens := make(map[string]struct{})
	for _, row := range wb.PerDay {
		tokens[row.EmployeeToken] = struct{}{}
		wb.TotalPunches += len(row.Punches)
	}
	wb.EmployeeCount = len(tokens)
	wb.Warnings = warnings.List()

	if opts.EmitNormalized {
		normalized, err := renderNormalized(wb)
		if err != nil {
			// the audit copy is optional; parsed rows are still usable
			slog.Warn("failed to render normalized workbook", "file", fileName, "error", err)
		} else {
			wb.NormalizedXLSX = normalized
		}
	}

	slog.Info("workbook parsed",
		"file", fileName,
		"layout", wb.Layout,
		"employees", wb.EmployeeCount,
		"punches", wb.TotalPunches,
		"rows", len(wb.PerDay),
		"warnings", len(wb.Warnings),
	)
	return wb, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// renderNormalized writes the canonical "Punches" sheet used for audit.
func renderNormalized(wb timelog.ParsedWorkbook) ([]byte, error) {
	rows := make([][]any, 0, len(wb.PerDay))
	for _, r := range wb.PerDay {
		day := any("")
		if r.ComposedFromDayOnly {
			day = r.Day
		}
		rows = append(rows, []any{
			r.EmployeeToken,
			r.EmployeeID,
			r.EmployeeName,
			r.DateISO,
			day,
			strings.Join(r.AllTimes, " "),
			r.Earliest,
			r.Latest,
			len(r.Punches),
		})
	}
	return xlsx.Build(xlsx.Table{
		Sheet:   "Punches",
		Headers: []string{"Token", "Employee ID", "Name", "Date", "Day", "Punches", "Earliest", "Latest", "Count"},
		Rows:    rows,
		Widths:  []float64{14, 14, 28, 12, 6, 40, 10, 10, 8},
	})
}
