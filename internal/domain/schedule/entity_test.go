package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func clock(h, m int) time.Time {
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC)
}

func TestForDate_AssignmentOverridesDefault(t *testing.T) {
	def := WorkSchedule{ID: "default", GracePeriodMinutes: 5, Plan: FixedShift{Start: 480, End: 1020}}
	night := WorkSchedule{ID: "override", GracePeriodMinutes: 0, Plan: FixedShift{Start: 540, End: 1080}}

	es := EmployeeSchedule{
		EmployeeID: "E-1",
		Default:    &def,
		Assignments: []AssignedSchedule{{
			Assignment: EmployeeScheduleAssignment{StartDate: date("2025-03-10"), EndDate: date("2025-03-14")},
			Schedule:   night,
		}},
	}

	got := es.ForDate(date("2025-03-12"))
	require.NotNil(t, got)
	assert.Equal(t, "override", got.Schedule.ID)

	got = es.ForDate(date("2025-03-15"))
	require.NotNil(t, got)
	assert.Equal(t, "default", got.Schedule.ID)
}

func TestForDate_NoSchedule(t *testing.T) {
	assert.Nil(t, EmployeeSchedule{EmployeeID: "E-1"}.ForDate(date("2025-03-12")))
}

func TestForDate_ExclusionByWeekday(t *testing.T) {
	def := WorkSchedule{ID: "default", Plan: FixedShift{Start: 480, End: 1020}}
	from := date("2025-03-01")
	es := EmployeeSchedule{
		Default: &def,
		Exclusions: []Exclusion{
			{DayOfWeek: 5, Mode: ExclusionIgnoreLateUntil, IgnoreUntil: 570, EffectiveFrom: &from},
			{DayOfWeek: 5, Mode: ExclusionExcused, EffectiveFrom: &from},
		},
	}

	// 2025-03-14 is a Friday
	got := es.ForDate(date("2025-03-14"))
	require.NotNil(t, got)
	require.NotNil(t, got.Exclusion)
	assert.Equal(t, ExclusionExcused, got.Exclusion.Mode)

	// before the effective range
	got = es.ForDate(date("2025-02-28"))
	require.NotNil(t, got)
	assert.Nil(t, got.Exclusion)

	// Thursday
	got = es.ForDate(date("2025-03-13"))
	require.NotNil(t, got)
	assert.Nil(t, got.Exclusion)
}

func TestISOWeekday(t *testing.T) {
	assert.Equal(t, 1, ISOWeekday(date("2025-03-10")))
	assert.Equal(t, 7, ISOWeekday(date("2025-03-16")))
}

func TestPlanFromTimes(t *testing.T) {
	times := []WorkScheduleTime{
		{DayOfWeek: 2, ClockInTime: clock(8, 0), ClockOutTime: clock(12, 0)},
		{DayOfWeek: 2, ClockInTime: clock(13, 0), ClockOutTime: clock(17, 0)},
		{DayOfWeek: 1, ClockInTime: clock(9, 0), ClockOutTime: clock(18, 0)},
	}

	plan, err := PlanFromTimes(PlanFixedShift, times)
	require.NoError(t, err)
	assert.Equal(t, FixedShift{Start: 540, End: 1080, Days: []int{1, 2}}, plan)
	assert.True(t, plan.(FixedShift).WorksOn(2))
	assert.False(t, plan.(FixedShift).WorksOn(6))

	plan, err = PlanFromTimes(PlanWeeklyPattern, times)
	require.NoError(t, err)
	weekly, ok := plan.(WeeklyPattern)
	require.True(t, ok)
	assert.Equal(t, []Window{
		{DayOfWeek: 2, Start: 480, End: 720},
		{DayOfWeek: 2, Start: 780, End: 1020},
	}, weekly.WindowsFor(2))

	_, err = PlanFromTimes("HOURLY", times)
	assert.ErrorIs(t, err, ErrUnknownPlanKind)
}

func TestPlanFromTimes_FixedShiftKeepsFirstRowOfLowestDay(t *testing.T) {
	plan, err := PlanFromTimes(PlanFixedShift, []WorkScheduleTime{
		{DayOfWeek: 3, ClockInTime: clock(7, 0), ClockOutTime: clock(15, 0)},
		{DayOfWeek: 1, ClockInTime: clock(8, 0), ClockOutTime: clock(17, 0)},
		{DayOfWeek: 1, ClockInTime: clock(10, 0), ClockOutTime: clock(19, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, FixedShift{Start: 480, End: 1020, Days: []int{1, 3}}, plan)
}

func TestFixedShift_WorksOnEveryDayWithoutDays(t *testing.T) {
	for dow := 1; dow <= 7; dow++ {
		assert.True(t, FixedShift{Start: 480, End: 1020}.WorksOn(dow))
	}
}

func TestPlanFromTimes_OvernightCheckout(t *testing.T) {
	plan, err := PlanFromTimes(PlanFixedShift, []WorkScheduleTime{
		{DayOfWeek: 1, ClockInTime: clock(22, 0), ClockOutTime: clock(23, 0), IsNextDayCheckout: true},
	})
	require.NoError(t, err)
	assert.True(t, plan.(FixedShift).SpansMidnight())
}
