package schedule

import (
	"fmt"
	"slices"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

type PlanKind string

const (
	PlanFixedShift    PlanKind = "FIXED_SHIFT"
	PlanWeeklyPattern PlanKind = "WEEKLY_PATTERN"
)

// Plan is either a FixedShift or a WeeklyPattern.
type Plan interface {
	Kind() PlanKind
	plan()
}

// FixedShift is a single start/end pair used on every working day.
// Days lists the ISO weekdays it covers; nil means every day.
type FixedShift struct {
	Start int // minute of day
	End   int
	Days  []int
}

func (FixedShift) Kind() PlanKind { return PlanFixedShift }
func (FixedShift) plan()          {}

// SpansMidnight reports a shift whose end is not after its start.
func (f FixedShift) SpansMidnight() bool {
	return f.End <= f.Start
}

// WorksOn reports whether the shift applies on an ISO weekday.
func (f FixedShift) WorksOn(dayOfWeek int) bool {
	return f.Days == nil || slices.Contains(f.Days, dayOfWeek)
}

// Window is an expected work window, in minutes of day.
type Window struct {
	DayOfWeek int `json:"day_of_week"`
	Start     int `json:"start"`
	End       int `json:"end"`
}

func (w Window) Minutes() int {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", timelog.FormatClock(w.Start), timelog.FormatClock(w.End))
}

// WeeklyPattern holds per-weekday windows, possibly several per day.
type WeeklyPattern struct {
	Windows []Window
}

func (WeeklyPattern) Kind() PlanKind { return PlanWeeklyPattern }
func (WeeklyPattern) plan()          {}

// WindowsFor returns the raw windows of an ISO weekday in start order.
func (p WeeklyPattern) WindowsFor(dayOfWeek int) []Window {
	var out []Window
	for _, w := range p.Windows {
		if w.DayOfWeek == dayOfWeek {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b Window) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})
	return out
}

// PlanFromTimes builds a plan from stored schedule times. A fixed shift
// takes its hours from the row of the lowest weekday and covers only the
// weekdays that have a row.
func PlanFromTimes(kind PlanKind, times []WorkScheduleTime) (Plan, error) {
	if len(times) == 0 {
		return nil, nil
	}

	windows := make([]Window, 0, len(times))
	for _, t := range times {
		start := t.ClockInTime.Hour()*60 + t.ClockInTime.Minute()
		end := t.ClockOutTime.Hour()*60 + t.ClockOutTime.Minute()
		if t.IsNextDayCheckout && end > start {
			// an overnight checkout is kept as end <= start
			end = start
		}
		windows = append(windows, Window{DayOfWeek: t.DayOfWeek, Start: start, End: end})
	}

	switch kind {
	case PlanFixedShift:
		slices.SortStableFunc(windows, func(a, b Window) int { return a.DayOfWeek - b.DayOfWeek })
		days := make([]int, 0, len(windows))
		for _, w := range windows {
			days = append(days, w.DayOfWeek)
		}
		return FixedShift{Start: windows[0].Start, End: windows[0].End, Days: slices.Compact(days)}, nil
	case PlanWeeklyPattern:
		return WeeklyPattern{Windows: windows}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlanKind, kind)
	}
}
