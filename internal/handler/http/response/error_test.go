package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/jwt"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", validator.ValidationErrors{{Field: "month", Message: "invalid"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"invalid token", jwt.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"missing company", jwt.ErrCompanyIDRequired, http.StatusForbidden, "FORBIDDEN"},
		{"batch not found", batch.ErrBatchNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"wrapped employee not found", fmt.Errorf("bind: %w", identity.ErrEmployeeNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"mixed months", batch.ErrMixedMonthsUnconfirmed, http.StatusConflict, string(batch.BlockMixedMonths)},
		{"manual period", period.ErrManualPeriodRequired, http.StatusConflict, string(batch.BlockManualPeriodRequired)},
		{"superseded bind", batch.ErrBindSuperseded, http.StatusConflict, "BIND_SUPERSEDED"},
		{"schedule down", fmt.Errorf("%w: connection refused", attendance.ErrScheduleUnavailable), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestHandleError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, validator.ValidationErrors{{Field: "year", Message: "year is required"}})

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"year": "year is required"}, body.Error.Details)
}

func TestAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	Attachment(rec, "march 2025.xlsx", "application/octet-stream", []byte("abc"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="march 2025.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, "abc", rec.Body.String())
}
