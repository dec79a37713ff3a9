package schedule

import "errors"

var (
	ErrWorkScheduleNotFound = errors.New("work schedule not found")
	ErrScheduleLookup       = errors.New("schedule lookup failed")
	ErrUnknownPlanKind      = errors.New("unknown schedule plan kind")
)
