package attendance

import (
	"strings"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/validator"
)

// ViewOptions selects rate mode and ordering of per-employee rows.
type ViewOptions struct {
	RateMode  string `json:"rate_mode"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
	ThenBy    string `json:"then_by"`
	ThenOrder string `json:"then_order"`
}

func (o *ViewOptions) Validate() error {
	var errs validator.ValidationErrors

	if o.RateMode == "" {
		o.RateMode = string(RateModeDays)
	}
	if !validator.IsInSlice(o.RateMode, RateModeValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "rate_mode",
			Message: "rate_mode must be one of: " + strings.Join(RateModeValues, ", "),
		})
	}

	if o.SortBy == "" {
		o.SortBy = string(SortByName)
	}
	if !validator.IsInSlice(o.SortBy, SortKeyValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "sort_by",
			Message: "sort_by must be one of: " + strings.Join(SortKeyValues, ", "),
		})
	}
	if o.ThenBy != "" && !validator.IsInSlice(o.ThenBy, SortKeyValues) {
		errs = append(errs, validator.ValidationError{
			Field:   "then_by",
			Message: "then_by must be one of: " + strings.Join(SortKeyValues, ", "),
		})
	}

	o.SortOrder = strings.ToLower(o.SortOrder)
	if o.SortOrder == "" {
		o.SortOrder = string(SortAsc)
	}
	if o.SortOrder != string(SortAsc) && o.SortOrder != string(SortDesc) {
		errs = append(errs, validator.ValidationError{
			Field:   "sort_order",
			Message: "sort_order must be 'asc' or 'desc'",
		})
	}
	o.ThenOrder = strings.ToLower(o.ThenOrder)
	if o.ThenOrder == "" {
		o.ThenOrder = string(SortAsc)
	}
	if o.ThenOrder != string(SortAsc) && o.ThenOrder != string(SortDesc) {
		errs = append(errs, validator.ValidationError{
			Field:   "then_order",
			Message: "then_order must be 'asc' or 'desc'",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (o ViewOptions) Sort() SortSpec {
	return SortSpec{
		By:        SortKey(o.SortBy),
		Order:     SortOrder(o.SortOrder),
		ThenBy:    SortKey(o.ThenBy),
		ThenOrder: SortOrder(o.ThenOrder),
	}
}

func (o ViewOptions) Mode() RateMode {
	return RateMode(o.RateMode)
}

type ListEmployeesRequest struct {
	ViewOptions
	OfficeID string `json:"office_id"`
	Status   string `json:"status"`
	Query    string `json:"q"`
}

func (r *ListEmployeesRequest) Validate() error {
	var errs validator.ValidationErrors
	if err := r.ViewOptions.Validate(); err != nil {
		errs = append(errs, err.(validator.ValidationErrors)...)
	}
	statuses := []string{
		string(identity.StatusMatched),
		string(identity.StatusAmbiguous),
		string(identity.StatusUnmatched),
	}
	if r.Status != "" && !validator.IsInSlice(r.Status, statuses) {
		errs = append(errs, validator.ValidationError{
			Field:   "status",
			Message: "status must be one of: " + strings.Join(statuses, ", "),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r ListEmployeesRequest) Filter() ListFilter {
	return ListFilter{
		OfficeID: r.OfficeID,
		Status:   identity.Status(r.Status),
		Query:    strings.TrimSpace(r.Query),
	}
}

type EvaluateRequest struct {
	CompanyID string
	Rows      []ResolvedRow
	RateMode  RateMode
	Sort      SortSpec
}

type EvaluateResponse struct {
	PerDay         []PerDayRow            `json:"per_day"`
	PerEmployee    []PerEmployeeRow       `json:"per_employee"`
	PerOffice      []PerOfficeRow         `json:"per_office"`
	ManualMappings []string               `json:"manual_mappings"`
	Warnings       []timelog.ParseWarning `json:"warnings"`
	Deferred       int                    `json:"deferred"`
}
