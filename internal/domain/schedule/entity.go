package schedule

import (
	"time"
)

type WorkSchedule struct {
	ID                 string
	CompanyID          string
	Name               string
	GracePeriodMinutes int
	Plan               Plan
}

// Type reports the schedule type label shown on evaluated rows.
func (s WorkSchedule) Type() PlanKind {
	if s.Plan == nil {
		return ""
	}
	return s.Plan.Kind()
}

// WorkScheduleTime is one stored clock-in/clock-out row of a schedule.
// Several rows on the same day describe a split shift.
type WorkScheduleTime struct {
	ID                string
	WorkScheduleID    string
	DayOfWeek         int // 1=Monday, ..., 7=Sunday
	ClockInTime       time.Time
	ClockOutTime      time.Time
	IsNextDayCheckout bool
}

type EmployeeScheduleAssignment struct {
	ID             string
	EmployeeID     string
	WorkScheduleID string
	StartDate      time.Time
	EndDate        time.Time
}

// Covers reports whether date falls inside the assignment, inclusive.
func (a EmployeeScheduleAssignment) Covers(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(a.StartDate)) && !d.After(truncateDay(a.EndDate))
}

type ExclusionMode string

const (
	ExclusionExcused         ExclusionMode = "EXCUSED"
	ExclusionIgnoreLateUntil ExclusionMode = "IGNORE_LATE_UNTIL"
)

// Exclusion is a weekday rule that exempts an employee from lateness.
type Exclusion struct {
	ID            string
	EmployeeID    string
	DayOfWeek     int // 1=Monday, ..., 7=Sunday
	Mode          ExclusionMode
	IgnoreUntil   int // minute of day, IGNORE_LATE_UNTIL only
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

func (e Exclusion) AppliesOn(date time.Time) bool {
	if e.DayOfWeek != ISOWeekday(date) {
		return false
	}
	d := truncateDay(date)
	if e.EffectiveFrom != nil && d.Before(truncateDay(*e.EffectiveFrom)) {
		return false
	}
	if e.EffectiveTo != nil && d.After(truncateDay(*e.EffectiveTo)) {
		return false
	}
	return true
}

// EmployeeSchedule is everything needed to resolve one employee's schedule
// on any date of a batch.
type EmployeeSchedule struct {
	EmployeeID  string
	Default     *WorkSchedule
	Assignments []AssignedSchedule
	Exclusions  []Exclusion
}

type AssignedSchedule struct {
	Assignment EmployeeScheduleAssignment
	Schedule   WorkSchedule
}

// Resolved is the schedule in effect for one employee on one date.
type Resolved struct {
	Schedule  WorkSchedule
	Date      time.Time
	Exclusion *Exclusion
}

// ForDate resolves the schedule for a date. A date-ranged assignment takes
// priority over the employee's default schedule; the latest-starting
// assignment wins when several cover the date. Returns nil without a schedule.
func (s EmployeeSchedule) ForDate(date time.Time) *Resolved {
	var chosen *WorkSchedule
	var chosenStart time.Time
	for i := range s.Assignments {
		a := s.Assignments[i]
		if !a.Assignment.Covers(date) {
			continue
		}
		if chosen == nil || a.Assignment.StartDate.After(chosenStart) {
			chosen = &s.Assignments[i].Schedule
			chosenStart = a.Assignment.StartDate
		}
	}
	if chosen == nil {
		chosen = s.Default
	}
	if chosen == nil || chosen.Plan == nil {
		return nil
	}

	res := &Resolved{Schedule: *chosen, Date: truncateDay(date)}
	for i := range s.Exclusions {
		if s.Exclusions[i].AppliesOn(date) {
			ex := s.Exclusions[i]
			res.Exclusion = &ex
			// EXCUSED beats IGNORE_LATE_UNTIL on the same day.
			if ex.Mode == ExclusionExcused {
				break
			}
		}
	}
	return res
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(date time.Time) int {
	wd := int(date.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
