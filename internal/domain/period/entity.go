package period

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/validator"
)

// ManualPeriod is an operator-chosen calendar month.
type ManualPeriod struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (p *ManualPeriod) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidMonth(p.Month) {
		errs = append(errs, validator.ValidationError{
			Field:   "month",
			Message: "month must be between 1 and 12",
		})
	}
	if p.Year < 2000 || p.Year > 2100 {
		errs = append(errs, validator.ValidationError{
			Field:   "year",
			Message: "year must be between 2000 and 2100",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Key returns "YYYY-MM".
func (p ManualPeriod) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// DaysInMonth returns the length of the period's month.
func (p ManualPeriod) DaysInMonth() int {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Compose turns a day of month into an ISO date within the period.
func (p ManualPeriod) Compose(day int) (string, bool) {
	if day < 1 || day > p.DaysInMonth() {
		return "", false
	}
	return fmt.Sprintf("%s-%02d", p.Key(), day), true
}

type ExclusionReason string

const (
	ReasonOutsidePeriod ExclusionReason = "outside-period"
	ReasonInvalidDay    ExclusionReason = "invalid-day"
	ReasonInvalidDate   ExclusionReason = "invalid-date"
)

type ExcludedRow struct {
	Row    timelog.ParsedPerDayRow `json:"row"`
	Reason ExclusionReason         `json:"reason"`
}

type FilterResult struct {
	Included []timelog.ParsedPerDayRow `json:"included"`
	Excluded []ExcludedRow             `json:"excluded"`
}

// Filter constrains merged rows to a manual period.
type Filter interface {
	Filter(rows []timelog.ParsedPerDayRow, p *ManualPeriod) FilterResult
}
