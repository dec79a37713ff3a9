package attendance

import (
	"context"
)

// AttendanceService evaluates resolved rows against employee schedules.
type AttendanceService interface {
	// Evaluate evaluates every row, aggregates per employee and per office.
	Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResponse, error)

	// EvaluateDays evaluates rows without aggregating them.
	EvaluateDays(ctx context.Context, companyID string, rows []ResolvedRow) ([]PerDayRow, error)

	// ReEnrich re-evaluates the rows of a single token after an identity override.
	ReEnrich(ctx context.Context, companyID string, token string, rows []ResolvedRow) ([]PerDayRow, error)

	// Summarize aggregates already evaluated days. Rows with a pending
	// identity are counted in Deferred and left out of every aggregate.
	Summarize(days []PerDayRow, mode RateMode, sort SortSpec) EvaluateResponse
}
