package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/schedule"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/database"
	"github.com/jackc/pgx/v5/pgtype"
)

type scheduleRepositoryImpl struct {
	db *database.DB
}

func NewScheduleRepository(db *database.DB) schedule.ScheduleRepository {
	return &scheduleRepositoryImpl{db: db}
}

// GetEmployeeSchedules implements schedule.ScheduleRepository.
func (s *scheduleRepositoryImpl) GetEmployeeSchedules(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) (map[string]schedule.EmployeeSchedule, error) {
	result := make(map[string]schedule.EmployeeSchedule)
	if len(employeeIDs) == 0 {
		return result, nil
	}

	defaults, err := s.defaultSchedules(ctx, companyID, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schedule.ErrScheduleLookup, err)
	}
	assignments, err := s.assignments(ctx, companyID, employeeIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schedule.ErrScheduleLookup, err)
	}
	exclusions, err := s.exclusions(ctx, companyID, employeeIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schedule.ErrScheduleLookup, err)
	}

	scheduleIDs := make([]string, 0, len(defaults)+len(assignments))
	seen := make(map[string]struct{})
	addID := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			scheduleIDs = append(scheduleIDs, id)
		}
	}
	for _, ws := range defaults {
		addID(ws.ID)
	}
	for _, list := range assignments {
		for _, a := range list {
			addID(a.Schedule.ID)
		}
	}

	times, err := s.scheduleTimes(ctx, scheduleIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schedule.ErrScheduleLookup, err)
	}
	withPlan := func(ws schedule.WorkSchedule, kind schedule.PlanKind) (schedule.WorkSchedule, error) {
		plan, err := schedule.PlanFromTimes(kind, times[ws.ID])
		if err != nil {
			return ws, err
		}
		ws.Plan = plan
		return ws, nil
	}

	for _, id := range employeeIDs {
		es := schedule.EmployeeSchedule{EmployeeID: id, Exclusions: exclusions[id]}
		if d, ok := defaults[id]; ok {
			ws, err := withPlan(d.WorkSchedule, d.kind)
			if err != nil {
				slog.Warn("skipping default schedule", "employee_id", id, "schedule_id", d.ID, "error", err)
			} else {
				es.Default = &ws
			}
		}
		for _, a := range assignments[id] {
			ws, err := withPlan(a.Schedule, a.kind)
			if err != nil {
				slog.Warn("skipping assigned schedule", "employee_id", id, "schedule_id", a.Schedule.ID, "error", err)
				continue
			}
			es.Assignments = append(es.Assignments, schedule.AssignedSchedule{Assignment: a.Assignment, Schedule: ws})
		}
		if es.Default == nil && len(es.Assignments) == 0 {
			continue
		}
		result[id] = es
	}

	return result, nil
}

type kindedSchedule struct {
	schedule.WorkSchedule
	kind schedule.PlanKind
}

type kindedAssignment struct {
	schedule.AssignedSchedule
	kind schedule.PlanKind
}

func (s *scheduleRepositoryImpl) defaultSchedules(ctx context.Context, companyID string, employeeIDs []string) (map[string]kindedSchedule, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT e.id, ws.id, ws.company_id, ws.name, ws.plan_kind, ws.grace_period_minutes
		FROM employees e
		JOIN work_schedules ws ON ws.id = e.work_schedule_id AND ws.deleted_at IS NULL
		WHERE e.company_id = $1 AND e.id = ANY($2::uuid[])
	`

	rows, err := q.Query(ctx, query, companyID, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load default schedules: %w", err)
	}
	defer rows.Close()

	out := make(map[string]kindedSchedule)
	for rows.Next() {
		var employeeID string
		var ks kindedSchedule
		if err := rows.Scan(&employeeID, &ks.ID, &ks.CompanyID, &ks.Name, &ks.kind, &ks.GracePeriodMinutes); err != nil {
			return nil, err
		}
		out[employeeID] = ks
	}
	return out, rows.Err()
}

func (s *scheduleRepositoryImpl) assignments(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) (map[string][]kindedAssignment, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT a.id, a.employee_id, a.work_schedule_id, a.start_date, a.end_date,
			ws.company_id, ws.name, ws.plan_kind, ws.grace_period_minutes
		FROM employee_schedule_assignments a
		JOIN employees e ON e.id = a.employee_id AND e.company_id = $1
		JOIN work_schedules ws ON ws.id = a.work_schedule_id AND ws.deleted_at IS NULL
		WHERE a.employee_id = ANY($2::uuid[])
			AND a.start_date <= $4::date AND a.end_date >= $3::date
		ORDER BY a.employee_id, a.start_date
	`

	rows, err := q.Query(ctx, query, companyID, employeeIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]kindedAssignment)
	for rows.Next() {
		var ka kindedAssignment
		a := &ka.Assignment
		ws := &ka.Schedule
		err := rows.Scan(
			&a.ID, &a.EmployeeID, &a.WorkScheduleID, &a.StartDate, &a.EndDate,
			&ws.CompanyID, &ws.Name, &ka.kind, &ws.GracePeriodMinutes,
		)
		if err != nil {
			return nil, err
		}
		ws.ID = a.WorkScheduleID
		out[a.EmployeeID] = append(out[a.EmployeeID], ka)
	}
	return out, rows.Err()
}

func (s *scheduleRepositoryImpl) scheduleTimes(ctx context.Context, scheduleIDs []string) (map[string][]schedule.WorkScheduleTime, error) {
	out := make(map[string][]schedule.WorkScheduleTime)
	if len(scheduleIDs) == 0 {
		return out, nil
	}

	q := GetQuerier(ctx, s.db)

	query := `
		SELECT id, work_schedule_id, day_of_week, clock_in_time, clock_out_time, is_next_day_checkout
		FROM work_schedule_times
		WHERE work_schedule_id = ANY($1::uuid[])
		ORDER BY work_schedule_id, day_of_week, clock_in_time
	`

	rows, err := q.Query(ctx, query, scheduleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule times: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t schedule.WorkScheduleTime
		var clockIn, clockOut pgtype.Time
		if err := rows.Scan(&t.ID, &t.WorkScheduleID, &t.DayOfWeek, &clockIn, &clockOut, &t.IsNextDayCheckout); err != nil {
			return nil, err
		}
		t.ClockInTime = clockTime(clockIn)
		t.ClockOutTime = clockTime(clockOut)
		out[t.WorkScheduleID] = append(out[t.WorkScheduleID], t)
	}
	return out, rows.Err()
}

func (s *scheduleRepositoryImpl) exclusions(ctx context.Context, companyID string, employeeIDs []string, start, end time.Time) (map[string][]schedule.Exclusion, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT x.id, x.employee_id, x.day_of_week, x.mode, x.ignore_until, x.effective_from, x.effective_to
		FROM work_schedule_exclusions x
		JOIN employees e ON e.id = x.employee_id AND e.company_id = $1
		WHERE x.employee_id = ANY($2::uuid[])
			AND (x.effective_from IS NULL OR x.effective_from <= $4::date)
			AND (x.effective_to IS NULL OR x.effective_to >= $3::date)
	`

	rows, err := q.Query(ctx, query, companyID, employeeIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule exclusions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]schedule.Exclusion)
	for rows.Next() {
		var ex schedule.Exclusion
		var mode string
		var until pgtype.Time
		if err := rows.Scan(&ex.ID, &ex.EmployeeID, &ex.DayOfWeek, &mode, &until, &ex.EffectiveFrom, &ex.EffectiveTo); err != nil {
			return nil, err
		}
		ex.Mode = schedule.ExclusionMode(mode)
		switch ex.Mode {
		case schedule.ExclusionExcused:
		case schedule.ExclusionIgnoreLateUntil:
			if !until.Valid {
				slog.Warn("IGNORE_LATE_UNTIL exclusion without a time", "exclusion_id", ex.ID)
				continue
			}
			ex.IgnoreUntil = int(until.Microseconds / int64(time.Minute/time.Microsecond))
		default:
			slog.Warn("unknown exclusion mode", "exclusion_id", ex.ID, "mode", mode)
			continue
		}
		out[ex.EmployeeID] = append(out[ex.EmployeeID], ex)
	}
	return out, rows.Err()
}

// clockTime places a TIME value on a fixed date so Hour/Minute work.
func clockTime(t pgtype.Time) time.Time {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if !t.Valid {
		return base
	}
	return base.Add(time.Duration(t.Microseconds) * time.Microsecond)
}
