package merge

import (
	"slices"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

type MergeServiceImpl struct {
	sampleCap int
}

func NewMergeService(sampleCap int) timelog.Merger {
	return &MergeServiceImpl{sampleCap: sampleCap}
}

// Merge implements timelog.Merger. Rows sharing (token, date) are unioned
// and identical times collapse, so merging a workbook twice changes nothing.
func (s *MergeServiceImpl) Merge(workbooks []timelog.ParsedWorkbook) timelog.MergeResult {
	rows := make(map[string]*timelog.ParsedPerDayRow)
	punches := make(map[string][]timelog.DayPunch)
	var order []string
	hints := make(map[string]struct{})
	warnings := timelog.NewWarningSet(s.sampleCap)

	for _, wb := range workbooks {
		for _, h := range wb.MonthHints {
			hints[h] = struct{}{}
		}
		for _, w := range wb.Warnings {
			warnings.Merge(w)
		}
		for _, in := range wb.PerDay {
			key := in.Key()
			row, ok := rows[key]
			if !ok {
				r := in
				r.SourceFiles = nil
				row = &r
				rows[key] = row
				order = append(order, key)
			}
			if row.EmployeeName == "" {
				row.EmployeeName = in.EmployeeName
			}
			if row.EmployeeID == "" {
				row.EmployeeID = in.EmployeeID
			}
			sources := in.SourceFiles
			if len(sources) == 0 && wb.FileName != "" {
				sources = []string{wb.FileName}
			}
			for _, f := range sources {
				if !slices.Contains(row.SourceFiles, f) {
					row.SourceFiles = append(row.SourceFiles, f)
				}
			}
			punches[key] = append(punches[key], in.Punches...)
		}
	}

	result := timelog.MergeResult{
		PerDay:   make([]timelog.ParsedPerDayRow, 0, len(order)),
		Warnings: warnings.List(),
	}
	months := make(map[string]struct{})
	for _, key := range order {
		row := *rows[key]
		row.SetPunches(punches[key])
		result.PerDay = append(result.PerDay, row)
		if m := row.Month(); m != "" {
			months[m] = struct{}{}
		}
		if row.ComposedFromDayOnly || row.DateISO == "" {
			continue
		}
		if result.DateRange == nil {
			result.DateRange = &timelog.DateRange{Start: row.DateISO, End: row.DateISO}
			continue
		}
		if row.DateISO < result.DateRange.Start {
			result.DateRange.Start = row.DateISO
		}
		if row.DateISO > result.DateRange.End {
			result.DateRange.End = row.DateISO
		}
	}
	slices.SortStableFunc(result.PerDay, timelog.CompareRows)

	result.Months = sortedSet(months)
	result.MonthHints = sortedSet(hints)
	result.NeedsMonthConfirmation = len(result.Months) > 1
	return result
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
