package period

import (
	"slices"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

type PeriodFilterImpl struct{}

func NewPeriodFilter() period.Filter {
	return &PeriodFilterImpl{}
}

// Filter implements period.Filter. Every input row ends up in exactly one
// of Included or Excluded.
func (f *PeriodFilterImpl) Filter(rows []timelog.ParsedPerDayRow, p *period.ManualPeriod) period.FilterResult {
	result := period.FilterResult{
		Included: make([]timelog.ParsedPerDayRow, 0, len(rows)),
	}
	if p == nil {
		result.Included = append(result.Included, rows...)
		return result
	}

	month := p.Key()
	for _, row := range rows {
		if row.ComposedFromDayOnly {
			iso, ok := p.Compose(row.Day)
			if !ok {
				result.Excluded = append(result.Excluded, period.ExcludedRow{Row: row, Reason: period.ReasonInvalidDay})
				continue
			}
			composed := row
			composed.DateISO = iso
			composed.ComposedFromDayOnly = false
			composed.Day = 0
			result.Included = append(result.Included, composed)
			continue
		}

		if _, err := time.Parse("2006-01-02", row.DateISO); err != nil {
			result.Excluded = append(result.Excluded, period.ExcludedRow{Row: row, Reason: period.ReasonInvalidDate})
			continue
		}
		if row.Month() != month {
			result.Excluded = append(result.Excluded, period.ExcludedRow{Row: row, Reason: period.ReasonOutsidePeriod})
			continue
		}
		result.Included = append(result.Included, row)
	}
	result.Included = coalesce(result.Included)
	return result
}

// coalesce unions rows that landed on the same (token, date) once day-only
// rows were given a concrete date. Source files keep first-seen order.
func coalesce(rows []timelog.ParsedPerDayRow) []timelog.ParsedPerDayRow {
	index := make(map[string]int, len(rows))
	out := make([]timelog.ParsedPerDayRow, 0, len(rows))
	merged := false
	for _, row := range rows {
		i, ok := index[row.Key()]
		if !ok {
			index[row.Key()] = len(out)
			row.SourceFiles = slices.Clone(row.SourceFiles)
			out = append(out, row)
			continue
		}
		merged = true
		dst := &out[i]
		if dst.EmployeeName == "" {
			dst.EmployeeName = row.EmployeeName
		}
		if dst.EmployeeID == "" {
			dst.EmployeeID = row.EmployeeID
		}
		for _, f := range row.SourceFiles {
			if !slices.Contains(dst.SourceFiles, f) {
				dst.SourceFiles = append(dst.SourceFiles, f)
			}
		}
		dst.SetPunches(append(slices.Clone(dst.Punches), row.Punches...))
	}
	if merged {
		slices.SortStableFunc(out, timelog.CompareRows)
	}
	return out
}
