package identity

import (
	"strings"

	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/validator"
)

type BindIdentityRequest struct {
	Token      string `json:"token"`
	EmployeeID string `json:"employee_id"`
}

func (r *BindIdentityRequest) Validate() error {
	var errs validator.ValidationErrors

	r.Token = strings.TrimSpace(r.Token)
	if validator.IsEmpty(r.Token) {
		errs = append(errs, validator.ValidationError{
			Field:   "token",
			Message: "token is required",
		})
	}
	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SearchEmployeesRequest struct {
	Query string `json:"q"`
	Limit int    `json:"limit"`
}

func (r *SearchEmployeesRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(strings.TrimSpace(r.Query)) < 2 {
		errs = append(errs, validator.ValidationError{
			Field:   "q",
			Message: "query must be at least 2 characters",
		})
	}
	if r.Limit == 0 {
		r.Limit = 10 // Default limit
	}
	if r.Limit < 0 || r.Limit > 50 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be between 1 and 50",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type BindIdentityResponse struct {
	Token    string `json:"token"`
	Identity Record `json:"identity"`
}
