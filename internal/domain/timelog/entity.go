package timelog

import (
	"cmp"
	"fmt"
)

// Layout identifies the shape of a time-clock export.
type Layout string

const (
	LayoutLegacy     Layout = "legacy"      // one punch per row
	LayoutGridReport Layout = "grid-report" // day columns, one block per employee
)

// DayPunch is a single clock event within a day.
type DayPunch struct {
	Time        string `json:"time"` // HH:MM, 24h
	MinuteOfDay int    `json:"minute_of_day"`
}

// ParsedPerDayRow holds every punch of one employee token on one day, before identity resolution.
// DateISO is empty when ComposedFromDayOnly is set; Day then carries the day of month.
type ParsedPerDayRow struct {
	EmployeeToken       string     `json:"employee_token"`
	EmployeeID          string     `json:"employee_id,omitempty"`
	EmployeeName        string     `json:"employee_name"`
	DateISO             string     `json:"date_iso,omitempty"`
	ComposedFromDayOnly bool       `json:"composed_from_day_only"`
	Day                 int        `json:"day,omitempty"`
	Punches             []DayPunch `json:"punches"`
	AllTimes            []string   `json:"all_times"`
	Earliest            string     `json:"earliest,omitempty"`
	Latest              string     `json:"latest,omitempty"`
	SourceFiles         []string   `json:"source_files"`
}

// Key groups rows of the same token and calendar slot.
func (r ParsedPerDayRow) Key() string {
	if r.ComposedFromDayOnly {
		return fmt.Sprintf("%s|day:%02d", r.EmployeeToken, r.Day)
	}
	return r.EmployeeToken + "|" + r.DateISO
}

// Month returns the YYYY-MM prefix of a concrete date, or "".
func (r ParsedPerDayRow) Month() string {
	if r.ComposedFromDayOnly || len(r.DateISO) < 7 {
		return ""
	}
	return r.DateISO[:7]
}

// SetPunches replaces the punch list, sorting and de-duplicating it and
// refreshing AllTimes/Earliest/Latest.
func (r *ParsedPerDayRow) SetPunches(punches []DayPunch) {
	r.Punches = SortPunches(punches)
	r.AllTimes = make([]string, len(r.Punches))
	for i, p := range r.Punches {
		r.AllTimes[i] = p.Time
	}
	r.Earliest, r.Latest = "", ""
	if len(r.AllTimes) > 0 {
		r.Earliest = r.AllTimes[0]
		r.Latest = r.AllTimes[len(r.AllTimes)-1]
	}
}

// CompareRows orders concrete dates first (ascending), then day-only rows
// by day, then token and name.
func CompareRows(a, b ParsedPerDayRow) int {
	if a.ComposedFromDayOnly != b.ComposedFromDayOnly {
		if a.ComposedFromDayOnly {
			return 1
		}
		return -1
	}
	return cmp.Or(
		cmp.Compare(a.DateISO, b.DateISO),
		cmp.Compare(a.Day, b.Day),
		cmp.Compare(a.EmployeeToken, b.EmployeeToken),
		cmp.Compare(a.EmployeeName, b.EmployeeName),
	)
}

// ParsedWorkbook is the result of parsing one uploaded file.
type ParsedWorkbook struct {
	FileName        string            `json:"file_name"`
	Layout          Layout            `json:"layout"`
	DetectedLayouts []Layout          `json:"detected_layouts"`
	SheetName       string            `json:"sheet_name,omitempty"`
	EmployeeCount   int               `json:"employee_count"`
	TotalPunches    int               `json:"total_punches"`
	PerDay          []ParsedPerDayRow `json:"per_day"`
	NormalizedXLSX  []byte            `json:"-"`
	MonthHints      []string          `json:"month_hints"`
	Warnings        []ParseWarning    `json:"warnings"`
}

type WarningLevel string

const (
	LevelInfo    WarningLevel = "info"
	LevelWarning WarningLevel = "warning"
)

type WarningType string

const (
	WarningMalformedTime        WarningType = "malformed-time"
	WarningMissingEmployee      WarningType = "missing-employee-id"
	WarningMalformedDate        WarningType = "malformed-date"
	WarningUnmatchedIdentity    WarningType = "unmatched-identity"
	WarningAmbiguousIdentity    WarningType = "ambiguous-identity"
	WarningMissingOffice        WarningType = "missing-office"
	WarningIdentityLookupFailed WarningType = "identity-lookup-failed"
	WarningEvaluationAnomaly    WarningType = "evaluation-anomaly"
	WarningMultipleLayouts      WarningType = "multiple-layouts"
)

// UnmatchedIdentity lists a token that could not be bound to a single employee.
type UnmatchedIdentity struct {
	Token       string   `json:"token"`
	EmployeeIDs []string `json:"employee_ids"`
}

type ParseWarning struct {
	Type                WarningType         `json:"type"`
	Level               WarningLevel        `json:"level"`
	Message             string              `json:"message"`
	Count               int                 `json:"count,omitempty"`
	Samples             []string            `json:"samples,omitempty"`
	UnmatchedIdentities []UnmatchedIdentity `json:"unmatched_identities,omitempty"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MergeResult is the combined, chronologically ordered view of a batch.
type MergeResult struct {
	PerDay                 []ParsedPerDayRow `json:"per_day"`
	Months                 []string          `json:"months"`
	MonthHints             []string          `json:"month_hints"`
	DateRange              *DateRange        `json:"date_range"`
	Warnings               []ParseWarning    `json:"warnings"`
	NeedsMonthConfirmation bool              `json:"needs_month_confirmation"`
}

// HasDayOnlyRows reports whether any row still needs a period to get a date.
func (m MergeResult) HasDayOnlyRows() bool {
	for _, r := range m.PerDay {
		if r.ComposedFromDayOnly {
			return true
		}
	}
	return false
}

// Tokens returns the distinct employee tokens in first-seen order.
func (m MergeResult) Tokens() []string {
	seen := make(map[string]struct{}, len(m.PerDay))
	var tokens []string
	for _, r := range m.PerDay {
		if _, ok := seen[r.EmployeeToken]; ok {
			continue
		}
		seen[r.EmployeeToken] = struct{}{}
		tokens = append(tokens, r.EmployeeToken)
	}
	return tokens
}
