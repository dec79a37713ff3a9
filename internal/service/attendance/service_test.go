package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/schedule"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchedules struct {
	byEmployee map[string]schedule.EmployeeSchedule
	err        error
	calls      int
	lastIDs    []string
	lastStart  time.Time
	lastEnd    time.Time
}

func (f *fakeSchedules) GetEmployeeSchedules(_ context.Context, _ string, ids []string, start, end time.Time) (map[string]schedule.EmployeeSchedule, error) {
	f.calls++
	f.lastIDs = ids
	f.lastStart, f.lastEnd = start, end
	if f.err != nil {
		return nil, f.err
	}
	return f.byEmployee, nil
}

func officeHours(grace int) *schedule.WorkSchedule {
	return &schedule.WorkSchedule{
		ID:                 "S-1",
		Name:               "Office Hours",
		GracePeriodMinutes: grace,
		Plan:               schedule.FixedShift{Start: 480, End: 1020},
	}
}

func TestAttendanceService_Evaluate(t *testing.T) {
	repo := &fakeSchedules{byEmployee: map[string]schedule.EmployeeSchedule{
		"E-1": {EmployeeID: "E-1", Default: officeHours(5)},
	}}
	svc := NewAttendanceService(repo, 10)

	rows := []attendance.ResolvedRow{
		{Row: dayRow(t, "1", "2025-03-04", "08:45"), Identity: matched("E-1")},
		{Row: dayRow(t, "1", "2025-03-05", "07:55", "17:00"), Identity: matched("E-1")},
		{Row: dayRow(t, "22", "2025-03-06", "09:00", "17:00"), Identity: identity.Record{Status: identity.StatusUnmatched, OfficeName: identity.UnknownOffice}},
	}
	manual := matched("E-2")
	manual.Manual = true
	manual.EmployeeName = "Budi"
	rows = append(rows, attendance.ResolvedRow{Row: dayRow(t, "33", "2025-03-02", "08:00", "17:00"), Identity: manual})

	res, err := svc.Evaluate(context.Background(), attendance.EvaluateRequest{
		CompanyID: "C-1",
		Rows:      rows,
		RateMode:  attendance.RateModeDays,
		Sort:      attendance.SortSpec{By: attendance.SortByLateRate, Order: attendance.SortDesc},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, []string{"E-1", "E-2"}, repo.lastIDs)
	assert.Equal(t, "2025-03-02", repo.lastStart.Format("2006-01-02"))
	assert.Equal(t, "2025-03-05", repo.lastEnd.Format("2006-01-02"))

	require.Len(t, res.PerDay, 4)
	assert.Equal(t, 40, *res.PerDay[0].LateMinutes)
	assert.Nil(t, res.PerDay[2].LateMinutes)
	// E-2 has no schedule
	assert.Nil(t, res.PerDay[3].LateMinutes)

	require.Len(t, res.PerEmployee, 3)
	assert.Equal(t, "E-1", res.PerEmployee[0].Key)
	assert.InDelta(t, 50.0, *res.PerEmployee[0].LateRate, 0.001)
	assert.Equal(t, []string{"33"}, res.ManualMappings)
	assert.Len(t, res.PerOffice, 2)
	assert.Zero(t, res.Deferred)
	assert.Empty(t, res.Warnings)
}

func TestAttendanceService_EvaluateRecordsAnomalies(t *testing.T) {
	repo := &fakeSchedules{byEmployee: map[string]schedule.EmployeeSchedule{
		"E-1": {EmployeeID: "E-1", Default: &schedule.WorkSchedule{
			Name: "Night", Plan: schedule.FixedShift{Start: 1320, End: 360},
		}},
	}}
	svc := NewAttendanceService(repo, 10)

	res, err := svc.Evaluate(context.Background(), attendance.EvaluateRequest{
		CompanyID: "C-1",
		Rows: []attendance.ResolvedRow{
			{Row: dayRow(t, "1", "2025-03-04", "22:00"), Identity: matched("E-1")},
			{Row: dayRow(t, "1", "2025-03-05", "22:03"), Identity: matched("E-1")},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, timelog.WarningEvaluationAnomaly, w.Type)
	assert.Equal(t, 2, w.Count)
	assert.Len(t, w.Samples, 2)
}

func TestAttendanceService_ScheduleFailure(t *testing.T) {
	repo := &fakeSchedules{err: errors.New("connection refused")}
	svc := NewAttendanceService(repo, 10)

	_, err := svc.Evaluate(context.Background(), attendance.EvaluateRequest{
		CompanyID: "C-1",
		Rows:      []attendance.ResolvedRow{{Row: dayRow(t, "1", "2025-03-04", "08:00"), Identity: matched("E-1")}},
	})
	assert.ErrorIs(t, err, attendance.ErrScheduleUnavailable)
}

func TestAttendanceService_SkipsLookupWithoutResolvedIdentities(t *testing.T) {
	repo := &fakeSchedules{}
	svc := NewAttendanceService(repo, 10)

	res, err := svc.Evaluate(context.Background(), attendance.EvaluateRequest{
		Rows: []attendance.ResolvedRow{{
			Row:      dayRow(t, "5", "2025-03-04", "08:00"),
			Identity: identity.Record{Status: identity.StatusUnmatched},
		}},
	})
	require.NoError(t, err)
	assert.Zero(t, repo.calls)
	assert.Len(t, res.PerEmployee, 1)
}

func TestAttendanceService_ReEnrichOnlyTouchesToken(t *testing.T) {
	repo := &fakeSchedules{byEmployee: map[string]schedule.EmployeeSchedule{
		"E-9": {EmployeeID: "E-9", Default: officeHours(0)},
	}}
	svc := NewAttendanceService(repo, 10)

	bound := matched("E-9")
	bound.Manual = true
	rows := []attendance.ResolvedRow{
		{Row: dayRow(t, "99", "2025-03-04", "08:30", "17:00"), Identity: bound},
		{Row: dayRow(t, "1", "2025-03-04", "08:00", "17:00"), Identity: matched("E-1")},
		{Row: dayRow(t, "99", "2025-03-05", "08:00", "16:00"), Identity: bound},
	}

	got, err := svc.ReEnrich(context.Background(), "C-1", "99", rows)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"E-9"}, repo.lastIDs)
	for _, r := range got {
		assert.Equal(t, "99", r.EmployeeToken)
		assert.True(t, r.IdentityManual)
	}
	assert.Equal(t, 30, *got[0].LateMinutes)
	assert.Equal(t, 60, *got[1].UndertimeMinutes)
}

func TestAttendanceService_SummarizeDefersPending(t *testing.T) {
	svc := NewAttendanceService(nil, 10)

	days := []attendance.PerDayRow{
		EvaluateRow(attendance.ResolvedRow{Row: dayRow(t, "1", "2025-03-04", "08:45"), Identity: matched("E-1")},
			fixed(t, "08:00", "17:00", 5, "2025-03-04")),
		{
			ParsedPerDayRow:   dayRow(t, "2", "2025-03-04", "08:00", "17:00"),
			DisplayEmployeeID: "2",
			IdentityStatus:    identity.StatusPending,
			Status:            attendance.StatusPresent,
		},
	}

	res := svc.Summarize(days, attendance.RateModeMinutes, attendance.SortSpec{})

	assert.Equal(t, 1, res.Deferred)
	require.Len(t, res.PerEmployee, 1)
	assert.Equal(t, "E-1", res.PerEmployee[0].Key)
	assert.InDelta(t, 7.41, *res.PerEmployee[0].LateRate, 0.001)
	assert.Len(t, res.PerDay, 2)
}
