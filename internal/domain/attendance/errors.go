package attendance

import "errors"

var (
	ErrScheduleUnavailable = errors.New("schedule service unavailable")
	ErrInvalidSortKey      = errors.New("invalid sort key")
	ErrInvalidRateMode     = errors.New("invalid rate mode")
)
