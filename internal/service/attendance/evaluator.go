package attendance

import (
	"slices"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/schedule"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

// EvaluateRow applies a resolved schedule to one employee-day. It is pure:
// the same inputs always give the same row.
func EvaluateRow(rr attendance.ResolvedRow, sched *schedule.Resolved) attendance.PerDayRow {
	ident := rr.Identity
	out := attendance.PerDayRow{
		ParsedPerDayRow:    rr.Row,
		ResolvedEmployeeID: ident.EmployeeID,
		DisplayEmployeeID:  ident.DisplayEmployeeID(rr.Row.EmployeeToken),
		OfficeID:           ident.OfficeID,
		OfficeName:         ident.OfficeName,
		IdentityStatus:     ident.Status,
		IdentityManual:     ident.Manual,
		Status:             attendance.StatusPresent,
	}
	if ident.EmployeeName != "" {
		out.EmployeeName = ident.EmployeeName
	}

	punches := rr.Row.Punches
	if len(punches) == 0 {
		out.Status = attendance.StatusNoPunch
	}
	if ident.EmployeeID == "" || sched == nil {
		return out
	}

	s := sched.Schedule
	grace := max(s.GracePeriodMinutes, 0)
	out.ScheduleType = s.Type()
	out.ScheduleName = s.Name
	out.ScheduleGraceMinutes = &grace

	if ex := sched.Exclusion; ex != nil {
		out.WeeklyExclusionMode = ex.Mode
		if ex.Mode == schedule.ExclusionIgnoreLateUntil {
			out.WeeklyExclusionIgnoreUntil = timelog.FormatClock(ex.IgnoreUntil)
		}
	}

	var (
		start, end int
		required   int
		worked     int
		hasWindow  = true
	)

	switch plan := s.Plan.(type) {
	case schedule.FixedShift:
		if !plan.WorksOn(schedule.ISOWeekday(sched.Date)) {
			// rest day: nothing required, nothing late
			hasWindow = false
			if len(punches) > 0 {
				worked = punches[len(punches)-1].MinuteOfDay - punches[0].MinuteOfDay
			}
			break
		}
		start, end = plan.Start, plan.End
		out.ScheduleStart = timelog.FormatClock(start)
		out.ScheduleEnd = timelog.FormatClock(end)
		if plan.SpansMidnight() {
			out.Anomalies = append(out.Anomalies, attendance.AnomalyMidnightSpan)
		} else {
			required = end - start
		}
		if len(punches) > 0 {
			worked = punches[len(punches)-1].MinuteOfDay - punches[0].MinuteOfDay
		}

	case schedule.WeeklyPattern:
		out.WeeklyPatternApplied = true
		windows, inverted := normalizeWindows(plan.WindowsFor(schedule.ISOWeekday(sched.Date)))
		if inverted {
			out.Anomalies = append(out.Anomalies, attendance.AnomalyMidnightSpan)
		}
		out.WeeklyPatternWindows = windows
		if len(windows) == 0 {
			hasWindow = false
			break
		}
		start, end = windows[0].Start, windows[len(windows)-1].End
		out.ScheduleStart = timelog.FormatClock(start)
		out.ScheduleEnd = timelog.FormatClock(end)
		for _, w := range windows {
			required += w.Minutes()
		}
		presence := intersect(presenceIntervals(punches), windows)
		out.WeeklyPatternPresence = presence
		for _, iv := range presence {
			worked += iv.Minutes()
		}
	}

	if out.Status == attendance.StatusNoPunch {
		zero := 0
		out.RequiredMinutes = &zero
		out.WorkedMinutes = &zero
		out.LateMinutes = &zero
		out.UndertimeMinutes = &zero
		return out
	}

	if sched.Exclusion != nil && sched.Exclusion.Mode == schedule.ExclusionExcused {
		out.Status = attendance.StatusExcused
	}

	required = clampNegative(&out, required)
	worked = clampNegative(&out, worked)
	out.RequiredMinutes = &required
	out.WorkedMinutes = &worked

	undertime := max(0, required-worked)
	out.UndertimeMinutes = &undertime
	out.IsUndertime = undertime > 0

	if out.Status == attendance.StatusExcused {
		return out
	}

	late := 0
	earliest := punches[0].MinuteOfDay
	if hasWindow {
		late = max(0, earliest-(start+grace))
	}
	if ex := sched.Exclusion; ex != nil && ex.Mode == schedule.ExclusionIgnoreLateUntil && earliest <= ex.IgnoreUntil {
		late = 0
	}
	out.LateMinutes = &late
	out.IsLate = late > 0
	return out
}

// clampNegative floors a duration at zero and flags the row when it had to.
func clampNegative(row *attendance.PerDayRow, v int) int {
	if v >= 0 {
		return v
	}
	if !slices.Contains(row.Anomalies, attendance.AnomalyNegativeValue) {
		row.Anomalies = append(row.Anomalies, attendance.AnomalyNegativeValue)
	}
	return 0
}

// normalizeWindows sorts windows and merges overlapping or touching ones.
// Windows that end at or before their start cannot be placed on a single
// day and are dropped; inverted reports whether any were.
func normalizeWindows(windows []schedule.Window) (out []schedule.Window, inverted bool) {
	valid := make([]schedule.Window, 0, len(windows))
	for _, w := range windows {
		if w.End <= w.Start {
			inverted = true
			continue
		}
		valid = append(valid, w)
	}
	slices.SortFunc(valid, func(a, b schedule.Window) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})
	for _, w := range valid {
		if n := len(out); n > 0 && w.Start <= out[n-1].End {
			out[n-1].End = max(out[n-1].End, w.End)
			continue
		}
		out = append(out, w)
	}
	return out, inverted
}

// presenceIntervals turns punches into worked spans: an even count pairs
// consecutive in/out punches, an odd count of three or more spans first to
// last, and a single punch gives no span.
func presenceIntervals(punches []timelog.DayPunch) []attendance.Interval {
	n := len(punches)
	switch {
	case n < 2:
		return nil
	case n%2 == 1:
		return []attendance.Interval{{Start: punches[0].MinuteOfDay, End: punches[n-1].MinuteOfDay}}
	}
	out := make([]attendance.Interval, 0, n/2)
	for i := 0; i+1 < n; i += 2 {
		iv := attendance.Interval{Start: punches[i].MinuteOfDay, End: punches[i+1].MinuteOfDay}
		if iv.End > iv.Start {
			out = append(out, iv)
		}
	}
	return out
}

// intersect clips presence spans to the (normalized) windows.
func intersect(presence []attendance.Interval, windows []schedule.Window) []attendance.Interval {
	var out []attendance.Interval
	for _, p := range presence {
		for _, w := range windows {
			start, end := max(p.Start, w.Start), min(p.End, w.End)
			if end > start {
				out = append(out, attendance.Interval{Start: start, End: end})
			}
		}
	}
	slices.SortFunc(out, func(a, b attendance.Interval) int { return a.Start - b.Start })
	return out
}
