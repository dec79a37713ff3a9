package period

import "errors"

var (
	// ErrManualPeriodRequired blocks evaluation of day-only rows until a
	// month/year is chosen.
	ErrManualPeriodRequired = errors.New("a manual period is required for day-only rows")
)
