package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/schedule"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

type AttendanceServiceImpl struct {
	schedule.ScheduleRepository
	sampleCap int
}

func NewAttendanceService(scheduleRepo schedule.ScheduleRepository, sampleCap int) attendance.AttendanceService {
	return &AttendanceServiceImpl{
		ScheduleRepository: scheduleRepo,
		sampleCap:          sampleCap,
	}
}

// Evaluate implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Evaluate(ctx context.Context, req attendance.EvaluateRequest) (attendance.EvaluateResponse, error) {
	days, err := s.EvaluateDays(ctx, req.CompanyID, req.Rows)
	if err != nil {
		return attendance.EvaluateResponse{}, err
	}
	res := s.Summarize(days, req.RateMode, req.Sort)

	slog.Info("batch evaluated",
		"company_id", req.CompanyID,
		"rows", len(days),
		"employees", len(res.PerEmployee),
		"deferred", res.Deferred,
	)
	return res, nil
}

// EvaluateDays implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) EvaluateDays(ctx context.Context, companyID string, rows []attendance.ResolvedRow) ([]attendance.PerDayRow, error) {
	schedules, err := s.loadSchedules(ctx, companyID, rows)
	if err != nil {
		return nil, err
	}

	out := make([]attendance.PerDayRow, 0, len(rows))
	for _, rr := range rows {
		out = append(out, EvaluateRow(rr, resolveSchedule(schedules, rr)))
	}
	return out, nil
}

// ReEnrich implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ReEnrich(ctx context.Context, companyID string, token string, rows []attendance.ResolvedRow) ([]attendance.PerDayRow, error) {
	scoped := make([]attendance.ResolvedRow, 0, len(rows))
	for _, rr := range rows {
		if rr.Row.EmployeeToken == token {
			scoped = append(scoped, rr)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.EvaluateDays(ctx, companyID, scoped)
}

// Summarize implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Summarize(days []attendance.PerDayRow, mode attendance.RateMode, sort attendance.SortSpec) attendance.EvaluateResponse {
	warnings := timelog.NewWarningSet(s.sampleCap)
	manual := make(map[string]struct{})
	for _, row := range days {
		recordAnomalies(warnings, row)
		if row.IdentityManual {
			manual[row.EmployeeToken] = struct{}{}
		}
	}
	manualTokens := make([]string, 0, len(manual))
	for t := range manual {
		manualTokens = append(manualTokens, t)
	}
	slices.Sort(manualTokens)

	perEmployee, deferred := Aggregate(days)
	perEmployee = SortEmployees(ApplyRates(perEmployee, mode), sort)

	return attendance.EvaluateResponse{
		PerDay:         days,
		PerEmployee:    perEmployee,
		PerOffice:      AggregateOffices(perEmployee, mode),
		ManualMappings: manualTokens,
		Warnings:       warnings.List(),
		Deferred:       deferred,
	}
}

// loadSchedules fetches schedules once for every resolved employee over the
// rows' date span.
func (s *AttendanceServiceImpl) loadSchedules(ctx context.Context, companyID string, rows []attendance.ResolvedRow) (map[string]schedule.EmployeeSchedule, error) {
	var (
		ids        []string
		seen       = make(map[string]struct{})
		start, end time.Time
	)
	for _, rr := range rows {
		id := rr.Identity.EmployeeID
		if id == "" {
			continue
		}
		d, ok := rowDate(rr.Row)
		if !ok {
			continue
		}
		if start.IsZero() || d.Before(start) {
			start = d
		}
		if end.IsZero() || d.After(end) {
			end = d
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || s.ScheduleRepository == nil {
		return nil, nil
	}

	schedules, err := s.GetEmployeeSchedules(ctx, companyID, ids, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", attendance.ErrScheduleUnavailable, err)
	}
	return schedules, nil
}

func resolveSchedule(schedules map[string]schedule.EmployeeSchedule, rr attendance.ResolvedRow) *schedule.Resolved {
	if rr.Identity.EmployeeID == "" {
		return nil
	}
	es, ok := schedules[rr.Identity.EmployeeID]
	if !ok {
		return nil
	}
	d, ok := rowDate(rr.Row)
	if !ok {
		return nil
	}
	return es.ForDate(d)
}

func rowDate(row timelog.ParsedPerDayRow) (time.Time, bool) {
	if row.ComposedFromDayOnly || row.DateISO == "" {
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", row.DateISO)
	return d, err == nil
}

func recordAnomalies(ws *timelog.WarningSet, row attendance.PerDayRow) {
	for _, a := range row.Anomalies {
		ws.Add(timelog.WarningEvaluationAnomaly, timelog.LevelWarning,
			"evaluation anomalies were clamped to zero",
			fmt.Sprintf("%s %s: %s", row.EmployeeToken, row.DateISO, a))
	}
}
