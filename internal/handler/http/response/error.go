package response

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/jwt"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth
	case errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrStreamTokenInvalid):
		Unauthorized(w, err.Error())
	case errors.Is(err, jwt.ErrCompanyIDRequired):
		Forbidden(w, err.Error())

	// Batch
	case errors.Is(err, batch.ErrBatchNotFound):
		NotFound(w, "Batch not found")
	case errors.Is(err, batch.ErrFileNotFound):
		NotFound(w, "File not found")
	case errors.Is(err, batch.ErrNoFiles):
		BadRequest(w, "No files uploaded", nil)
	case errors.Is(err, batch.ErrMixedMonthsUnconfirmed):
		ConflictWithCode(w, string(batch.BlockMixedMonths), err.Error())
	case errors.Is(err, period.ErrManualPeriodRequired):
		ConflictWithCode(w, string(batch.BlockManualPeriodRequired), err.Error())
	case errors.Is(err, batch.ErrNothingToEvaluate):
		ConflictWithCode(w, "NOTHING_TO_EVALUATE", err.Error())
	case errors.Is(err, batch.ErrNotEvaluated):
		ConflictWithCode(w, "NOT_EVALUATED", err.Error())
	case errors.Is(err, batch.ErrBindSuperseded):
		ConflictWithCode(w, "BIND_SUPERSEDED", err.Error())
	case errors.Is(err, batch.ErrBatchChanged):
		ConflictWithCode(w, "BATCH_CHANGED", err.Error())
	case errors.Is(err, batch.ErrInvalidExportColumn):
		BadRequest(w, err.Error(), nil)

	// Identity
	case errors.Is(err, identity.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, identity.ErrTokenNotInBatch):
		NotFound(w, "Token does not appear in this batch")

	// Parsing errors surface per file; these only reach here from direct parser use
	case errors.Is(err, timelog.ErrUnreadableWorkbook), errors.Is(err, timelog.ErrUnsupportedLayout),
		errors.Is(err, timelog.ErrEmptyWorkbook), errors.Is(err, timelog.ErrUnsupportedFormat):
		BadRequest(w, err.Error(), nil)

	// Collaborators
	case errors.Is(err, attendance.ErrScheduleUnavailable):
		slog.Error("schedule lookup failed", "error", err)
		ServiceUnavailable(w, "Schedule service unavailable, try again")
	case errors.Is(err, context.DeadlineExceeded):
		GatewayTimeout(w, "The operation timed out")

	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
