package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/xlsx"
)

type ExportServiceImpl struct {
	now func() time.Time
}

func NewExportService() batch.Exporter {
	return &ExportServiceImpl{now: time.Now}
}

// Employees implements batch.Exporter.
func (s *ExportServiceImpl) Employees(ctx context.Context, rows []attendance.PerEmployeeRow, req batch.ExportRequest) (batch.ExportResult, error) {
	cells := make([][]any, 0, len(rows))
	for i, r := range rows {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return batch.ExportResult{}, err
			}
		}
		row := make([]any, len(req.Columns))
		for j, col := range req.Columns {
			v, err := employeeCell(r, col)
			if err != nil {
				return batch.ExportResult{}, err
			}
			row[j] = v
		}
		cells = append(cells, row)
	}
	return s.build(req, "Employees", cells)
}

// Days implements batch.Exporter.
func (s *ExportServiceImpl) Days(ctx context.Context, rows []attendance.PerDayRow, req batch.ExportRequest) (batch.ExportResult, error) {
	cells := make([][]any, 0, len(rows))
	for i, r := range rows {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return batch.ExportResult{}, err
			}
		}
		row := make([]any, len(req.Columns))
		for j, col := range req.Columns {
			v, err := dayCell(r, col)
			if err != nil {
				return batch.ExportResult{}, err
			}
			row[j] = v
		}
		cells = append(cells, row)
	}
	return s.build(req, "Days", cells)
}

func (s *ExportServiceImpl) build(req batch.ExportRequest, sheet string, cells [][]any) (batch.ExportResult, error) {
	generated := s.now()

	headers := make([]string, len(req.Columns))
	widths := make([]float64, len(req.Columns))
	for i, col := range req.Columns {
		headers[i] = columnTitle(col)
		widths[i] = float64(max(12, len(headers[i])+4))
	}

	office := req.OfficeID
	if office == "" {
		office = "all"
	}
	meta := xlsx.Table{
		Sheet:   "Metadata",
		Headers: []string{"Field", "Value"},
		Rows: [][]any{
			{"kind", req.Kind},
			{"office_filter", office},
			{"rate_mode", req.RateMode},
			{"sort", strings.TrimSpace(req.SortBy + " " + req.SortOrder)},
			{"rows", len(cells)},
			{"generated_at", generated.Format(time.RFC3339)},
		},
		Widths: []float64{16, 28},
	}

	data, err := xlsx.Build(xlsx.Table{
		Sheet:   sheet,
		Headers: headers,
		Rows:    cells,
		Widths:  widths,
	}, meta)
	if err != nil {
		return batch.ExportResult{}, fmt.Errorf("failed to build %s export: %w", req.Kind, err)
	}

	slog.Info("export generated", "kind", req.Kind, "rows", len(cells), "columns", len(req.Columns), "bytes", len(data))

	return batch.ExportResult{
		FileName: fmt.Sprintf("attendance-%s-%s.xlsx", req.Kind, generated.Format("20060102-150405")),
		Data:     data,
	}, nil
}

func columnTitle(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		switch w {
		case "id":
			words[i] = "ID"
		default:
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func employeeCell(r attendance.PerEmployeeRow, col string) (any, error) {
	switch col {
	case "employee_id":
		return r.EmployeeID, nil
	case "employee_name":
		return r.EmployeeName, nil
	case "office_name":
		return r.OfficeName, nil
	case "schedule_types":
		return strings.Join(r.ScheduleTypes, ", "), nil
	case "days_with_logs":
		return r.DaysWithLogs, nil
	case "no_punch_days":
		return r.NoPunchDays, nil
	case "excused_days":
		return r.ExcusedDays, nil
	case "late_days":
		return r.LateDays, nil
	case "undertime_days":
		return r.UndertimeDays, nil
	case "total_late_minutes":
		return r.TotalLateMinutes, nil
	case "total_undertime_minutes":
		return r.TotalUndertimeMinutes, nil
	case "total_required_minutes":
		return r.TotalRequiredMinutes, nil
	case "late_rate":
		return rate(r.LateRate), nil
	case "undertime_rate":
		return rate(r.UndertimeRate), nil
	case "identity_status":
		return string(r.IdentityStatus), nil
	}
	return nil, fmt.Errorf("%w: %s", batch.ErrInvalidExportColumn, col)
}

func dayCell(r attendance.PerDayRow, col string) (any, error) {
	switch col {
	case "employee_id":
		return r.DisplayEmployeeID, nil
	case "employee_name":
		return r.EmployeeName, nil
	case "office_name":
		return r.OfficeName, nil
	case "date":
		if r.DateISO == "" {
			return fmt.Sprintf("day %02d", r.Day), nil
		}
		return r.DateISO, nil
	case "status":
		return string(r.Status), nil
	case "all_times":
		return strings.Join(r.AllTimes, " "), nil
	case "earliest":
		return r.Earliest, nil
	case "latest":
		return r.Latest, nil
	case "schedule_type":
		return string(r.ScheduleType), nil
	case "schedule_start":
		return r.ScheduleStart, nil
	case "schedule_end":
		return r.ScheduleEnd, nil
	case "required_minutes":
		return minutes(r.RequiredMinutes), nil
	case "worked_minutes":
		return minutes(r.WorkedMinutes), nil
	case "late_minutes":
		return minutes(r.LateMinutes), nil
	case "undertime_minutes":
		return minutes(r.UndertimeMinutes), nil
	case "identity_status":
		return string(r.IdentityStatus), nil
	case "source_files":
		return strings.Join(r.SourceFiles, ", "), nil
	case "anomalies":
		return strings.Join(r.Anomalies, ", "), nil
	}
	return nil, fmt.Errorf("%w: %s", batch.ErrInvalidExportColumn, col)
}

// empty cell rather than 0 when there is no schedule
func minutes(p *int) any {
	if p == nil {
		return ""
	}
	return *p
}

func rate(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}
