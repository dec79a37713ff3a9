package workbook

import (
	"slices"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

// rowBuilder groups punches of one file by (token, date or day).
type rowBuilder struct {
	fileName string
	rows     map[string]*timelog.ParsedPerDayRow
	punches  map[string][]timelog.DayPunch
	months   map[string]struct{}
	warnings *timelog.WarningSet
}

func newRowBuilder(fileName string, warnings *timelog.WarningSet) *rowBuilder {
	return &rowBuilder{
		fileName: fileName,
		rows:     make(map[string]*timelog.ParsedPerDayRow),
		punches:  make(map[string][]timelog.DayPunch),
		months:   make(map[string]struct{}),
		warnings: warnings,
	}
}

type rowKey struct {
	token      string
	employeeID string
	name       string
	dateISO    string
	day        int
}

// add records punches for a slot; an empty minute list still creates the
// row so no-punch days survive.
func (b *rowBuilder) add(k rowKey, minutes []int) {
	row := timelog.ParsedPerDayRow{
		EmployeeToken:       k.token,
		EmployeeID:          k.employeeID,
		EmployeeName:        k.name,
		DateISO:             k.dateISO,
		ComposedFromDayOnly: k.dateISO == "",
		SourceFiles:         []string{b.fileName},
	}
	if row.ComposedFromDayOnly {
		row.Day = k.day
	}

	key := row.Key()
	existing, ok := b.rows[key]
	if !ok {
		b.rows[key] = &row
		existing = &row
		if m := row.Month(); m != "" {
			b.months[m] = struct{}{}
		}
	}
	if existing.EmployeeName == "" {
		existing.EmployeeName = k.name
	}
	if existing.EmployeeID == "" {
		existing.EmployeeID = k.employeeID
	}
	for _, m := range minutes {
		b.punches[key] = append(b.punches[key], timelog.NewPunch(m))
	}
}

func (b *rowBuilder) malformedTime(samples []string) {
	for _, s := range samples {
		b.warnings.Add(timelog.WarningMalformedTime, timelog.LevelWarning,
			"cells that look like times could not be read", s)
	}
}

func (b *rowBuilder) missingEmployee(sample string) {
	b.warnings.Add(timelog.WarningMissingEmployee, timelog.LevelWarning,
		"rows without an employee identifier were dropped", sample)
}

func (b *rowBuilder) malformedDate(sample string) {
	b.warnings.Add(timelog.WarningMalformedDate, timelog.LevelWarning,
		"rows with an unreadable date were dropped", sample)
}

// result returns rows ordered by date, then day-only day, then token.
func (b *rowBuilder) result() []timelog.ParsedPerDayRow {
	out := make([]timelog.ParsedPerDayRow, 0, len(b.rows))
	for key, row := range b.rows {
		r := *row
		r.SetPunches(b.punches[key])
		out = append(out, r)
	}
	slices.SortFunc(out, timelog.CompareRows)
	return out
}
