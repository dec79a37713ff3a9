package attendance

import (
	"strings"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/schedule"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

type DayStatus string

const (
	StatusPresent DayStatus = "present"
	StatusNoPunch DayStatus = "no_punch"
	StatusExcused DayStatus = "excused"
)

// Anomaly codes attached to evaluated rows.
const (
	AnomalyMidnightSpan  = "midnight-span-schedule"
	AnomalyNegativeValue = "negative-duration"
)

// ResolvedRow is a period-filtered row with its identity attached.
type ResolvedRow struct {
	Row      timelog.ParsedPerDayRow `json:"row"`
	Identity identity.Record         `json:"identity"`
}

// Interval is a half-open span of minutes of day.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (i Interval) Minutes() int {
	if i.End <= i.Start {
		return 0
	}
	return i.End - i.Start
}

// PerDayRow is one evaluated employee-day.
type PerDayRow struct {
	timelog.ParsedPerDayRow

	ResolvedEmployeeID string          `json:"resolved_employee_id,omitempty"`
	DisplayEmployeeID  string          `json:"display_employee_id"`
	OfficeID           string          `json:"office_id,omitempty"`
	OfficeName         string          `json:"office_name,omitempty"`
	IdentityStatus     identity.Status `json:"identity_status"`
	IdentityManual     bool            `json:"identity_manual,omitempty"`

	ScheduleType         schedule.PlanKind `json:"schedule_type,omitempty"`
	ScheduleName         string            `json:"schedule_name,omitempty"`
	ScheduleStart        string            `json:"schedule_start,omitempty"`
	ScheduleEnd          string            `json:"schedule_end,omitempty"`
	ScheduleGraceMinutes *int              `json:"schedule_grace_minutes,omitempty"`

	RequiredMinutes  *int `json:"required_minutes,omitempty"`
	WorkedMinutes    *int `json:"worked_minutes,omitempty"`
	LateMinutes      *int `json:"late_minutes,omitempty"`
	UndertimeMinutes *int `json:"undertime_minutes,omitempty"`
	IsLate           bool `json:"is_late"`
	IsUndertime      bool `json:"is_undertime"`

	Status DayStatus `json:"status"`

	WeeklyPatternApplied       bool                   `json:"weekly_pattern_applied"`
	WeeklyPatternWindows       []schedule.Window      `json:"weekly_pattern_windows,omitempty"`
	WeeklyPatternPresence      []Interval             `json:"weekly_pattern_presence,omitempty"`
	WeeklyExclusionMode        schedule.ExclusionMode `json:"weekly_exclusion_mode,omitempty"`
	WeeklyExclusionIgnoreUntil string                 `json:"weekly_exclusion_ignore_until,omitempty"`

	Anomalies []string `json:"anomalies,omitempty"`
}

// EmployeeKey groups rows: resolved employee id, else the raw token.
func (r PerDayRow) EmployeeKey() string {
	if r.ResolvedEmployeeID != "" {
		return r.ResolvedEmployeeID
	}
	return r.EmployeeToken
}

// PerEmployeeRow is the per-employee roll-up of evaluated days.
type PerEmployeeRow struct {
	Key                   string          `json:"key"`
	EmployeeID            string          `json:"employee_id"`
	EmployeeName          string          `json:"employee_name"`
	OfficeID              string          `json:"office_id,omitempty"`
	OfficeName            string          `json:"office_name"`
	ScheduleTypes         []string        `json:"schedule_types"`
	Tokens                []string        `json:"tokens"`
	DaysWithLogs          int             `json:"days_with_logs"`
	NoPunchDays           int             `json:"no_punch_days"`
	ExcusedDays           int             `json:"excused_days"`
	LateDays              int             `json:"late_days"`
	UndertimeDays         int             `json:"undertime_days"`
	TotalLateMinutes      int             `json:"total_late_minutes"`
	TotalUndertimeMinutes int             `json:"total_undertime_minutes"`
	TotalRequiredMinutes  int             `json:"total_required_minutes"`
	TotalWorkedMinutes    int             `json:"total_worked_minutes"`
	LateRate              *float64        `json:"late_rate"`
	UndertimeRate         *float64        `json:"undertime_rate"`
	IdentityStatus        identity.Status `json:"identity_status"`
	ResolvedEmployeeID    string          `json:"resolved_employee_id,omitempty"`
	MissingOffice         bool            `json:"missing_office,omitempty"`
}

// PerOfficeRow rolls employees up per office.
type PerOfficeRow struct {
	OfficeID              string   `json:"office_id,omitempty"`
	OfficeName            string   `json:"office_name"`
	Employees             int      `json:"employees"`
	DaysWithLogs          int      `json:"days_with_logs"`
	NoPunchDays           int      `json:"no_punch_days"`
	LateDays              int      `json:"late_days"`
	UndertimeDays         int      `json:"undertime_days"`
	TotalLateMinutes      int      `json:"total_late_minutes"`
	TotalUndertimeMinutes int      `json:"total_undertime_minutes"`
	TotalRequiredMinutes  int      `json:"total_required_minutes"`
	LateRate              *float64 `json:"late_rate"`
	UndertimeRate         *float64 `json:"undertime_rate"`
}

type RateMode string

const (
	RateModeDays    RateMode = "days"
	RateModeMinutes RateMode = "minutes"
)

var RateModeValues = []string{string(RateModeDays), string(RateModeMinutes)}

type SortKey string

const (
	SortByName                  SortKey = "name"
	SortByEmployeeID            SortKey = "employee_id"
	SortByOffice                SortKey = "office"
	SortByDaysWithLogs          SortKey = "days_with_logs"
	SortByNoPunchDays           SortKey = "no_punch_days"
	SortByLateDays              SortKey = "late_days"
	SortByUndertimeDays         SortKey = "undertime_days"
	SortByTotalLateMinutes      SortKey = "total_late_minutes"
	SortByTotalUndertimeMinutes SortKey = "total_undertime_minutes"
	SortByLateRate              SortKey = "late_rate"
	SortByUndertimeRate         SortKey = "undertime_rate"
)

var SortKeyValues = []string{
	string(SortByName),
	string(SortByEmployeeID),
	string(SortByOffice),
	string(SortByDaysWithLogs),
	string(SortByNoPunchDays),
	string(SortByLateDays),
	string(SortByUndertimeDays),
	string(SortByTotalLateMinutes),
	string(SortByTotalUndertimeMinutes),
	string(SortByLateRate),
	string(SortByUndertimeRate),
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type SortSpec struct {
	By        SortKey
	Order     SortOrder
	ThenBy    SortKey
	ThenOrder SortOrder
}

// ListFilter narrows per-employee rows.
type ListFilter struct {
	OfficeID string
	Status   identity.Status
	Query    string
}

// Match reports whether r passes every set field of the filter.
// OfficeID UNKNOWN_OFFICE selects employees without an office.
func (f ListFilter) Match(r PerEmployeeRow) bool {
	switch {
	case f.OfficeID == identity.UnknownOffice:
		if r.OfficeID != "" {
			return false
		}
	case f.OfficeID != "" && r.OfficeID != f.OfficeID:
		return false
	}
	if f.Status != "" && r.IdentityStatus != f.Status {
		return false
	}
	if q := strings.ToLower(f.Query); q != "" {
		return strings.Contains(strings.ToLower(r.EmployeeName), q) ||
			strings.Contains(strings.ToLower(r.EmployeeID), q)
	}
	return true
}

func (f ListFilter) Apply(rows []PerEmployeeRow) []PerEmployeeRow {
	out := make([]PerEmployeeRow, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
