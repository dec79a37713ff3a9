package schedule

import (
	"context"
	"time"
)

// ScheduleRepository is the read-only schedule store consumed by evaluation.
type ScheduleRepository interface {
	// GetEmployeeSchedules loads, for each employee id, the default schedule,
	// assignments overlapping [start, end] and exclusion rules. Employees
	// without any schedule are absent from the map.
	GetEmployeeSchedules(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) (map[string]EmployeeSchedule, error)
}
