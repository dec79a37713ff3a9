package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/validator"
)

type BatchResponse struct {
	ID                     string                 `json:"id"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
	Files                  []FileResult           `json:"files"`
	RowCount               int                    `json:"row_count"`
	Months                 []string               `json:"months"`
	MonthHints             []string               `json:"month_hints"`
	DateRange              *timelog.DateRange     `json:"date_range"`
	NeedsMonthConfirmation bool                   `json:"needs_month_confirmation"`
	MonthsConfirmed        bool                   `json:"months_confirmed"`
	HasDayOnlyRows         bool                   `json:"has_day_only_rows"`
	Period                 *period.ManualPeriod   `json:"period"`
	Blocking               []BlockingCondition    `json:"blocking"`
	Warnings               []timelog.ParseWarning `json:"warnings"`
	Evaluated              bool                   `json:"evaluated"`
	EvaluatedAt            *time.Time             `json:"evaluated_at,omitempty"`
}

type UploadResponse struct {
	Files []FileResult  `json:"files"`
	Batch BatchResponse `json:"batch"`
}

type ConfirmMonthsRequest struct {
	Proceed *bool `json:"proceed"`
}

func (r *ConfirmMonthsRequest) Validate() error {
	if r.Proceed == nil {
		return validator.ValidationErrors{{
			Field:   "proceed",
			Message: "proceed is required",
		}}
	}
	return nil
}

// SetPeriodRequest sets the manual period; both fields empty clears it.
type SetPeriodRequest struct {
	Month *int `json:"month"`
	Year  *int `json:"year"`
}

func (r *SetPeriodRequest) Validate() error {
	if r.Month == nil && r.Year == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if r.Month == nil {
		errs = append(errs, validator.ValidationError{Field: "month", Message: "month is required"})
	}
	if r.Year == nil {
		errs = append(errs, validator.ValidationError{Field: "year", Message: "year is required"})
	}
	if len(errs) > 0 {
		return errs
	}
	p := r.Period()
	return p.Validate()
}

// Period returns nil when the request clears the period.
func (r SetPeriodRequest) Period() *period.ManualPeriod {
	if r.Month == nil || r.Year == nil {
		return nil
	}
	return &period.ManualPeriod{Month: *r.Month, Year: *r.Year}
}

type EvaluationResponse struct {
	PerEmployee    []attendance.PerEmployeeRow `json:"per_employee"`
	PerOffice      []attendance.PerOfficeRow   `json:"per_office"`
	ManualMappings []string                    `json:"manual_mappings"`
	Warnings       []timelog.ParseWarning      `json:"warnings"`
	Excluded       int                         `json:"excluded"`
	Deferred       int                         `json:"deferred"`
	DayCount       int                         `json:"day_count"`
}

type ListDaysRequest struct {
	Token  string `json:"token"`
	Status string `json:"status"`
}

func (r *ListDaysRequest) Validate() error {
	statuses := []string{
		string(attendance.StatusPresent),
		string(attendance.StatusNoPunch),
		string(attendance.StatusExcused),
	}
	if r.Status != "" && !validator.IsInSlice(r.Status, statuses) {
		return validator.ValidationErrors{{
			Field:   "status",
			Message: "status must be one of: " + strings.Join(statuses, ", "),
		}}
	}
	return nil
}

type ExportKind string

const (
	ExportEmployees ExportKind = "employees"
	ExportDays      ExportKind = "days"
)

// Column keys available for export, in default order.
var (
	EmployeeColumns = []string{
		"employee_id", "employee_name", "office_name", "schedule_types",
		"days_with_logs", "no_punch_days", "excused_days", "late_days", "undertime_days",
		"total_late_minutes", "total_undertime_minutes", "total_required_minutes",
		"late_rate", "undertime_rate", "identity_status",
	}
	DayColumns = []string{
		"employee_id", "employee_name", "office_name", "date", "status", "all_times",
		"earliest", "latest", "schedule_type", "schedule_start", "schedule_end",
		"required_minutes", "worked_minutes", "late_minutes", "undertime_minutes",
		"identity_status", "source_files", "anomalies",
	}
)

type ExportRequest struct {
	Kind     string   `json:"kind"`
	Columns  []string `json:"columns"`
	OfficeID string   `json:"office_id"`
	attendance.ViewOptions
}

func (r *ExportRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Kind == "" {
		r.Kind = string(ExportEmployees)
	}
	var allowed []string
	switch ExportKind(r.Kind) {
	case ExportEmployees:
		allowed = EmployeeColumns
	case ExportDays:
		allowed = DayColumns
	default:
		errs = append(errs, validator.ValidationError{
			Field:   "kind",
			Message: "kind must be 'employees' or 'days'",
		})
	}

	if allowed != nil {
		if len(r.Columns) == 0 {
			r.Columns = append([]string(nil), allowed...)
		}
		for i, c := range r.Columns {
			if !validator.IsInSlice(c, allowed) {
				errs = append(errs, validator.ValidationError{
					Field:   fmt.Sprintf("columns[%d]", i),
					Message: fmt.Sprintf("unknown column %q", c),
				})
			}
		}
	}

	if err := r.ViewOptions.Validate(); err != nil {
		errs = append(errs, err.(validator.ValidationErrors)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ExportResult struct {
	FileName string
	Data     []byte
}
