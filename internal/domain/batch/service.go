package batch

import (
	"context"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/sse"
)

// BatchService owns upload batches from upload through evaluation.
type BatchService interface {
	CreateBatch(ctx context.Context) (BatchResponse, error)
	GetBatch(ctx context.Context, batchID string) (BatchResponse, error)
	ResetBatch(ctx context.Context, batchID string) error

	// UploadFiles parses files concurrently; a failing file is reported in
	// its FileResult and does not affect the others.
	UploadFiles(ctx context.Context, batchID string, files []UploadedFile) (UploadResponse, error)

	// ConfirmMonths answers the mixed-months check. Cancelling resets the batch.
	ConfirmMonths(ctx context.Context, batchID string, req ConfirmMonthsRequest) (BatchResponse, error)
	SetPeriod(ctx context.Context, batchID string, req SetPeriodRequest) (BatchResponse, error)

	Evaluate(ctx context.Context, batchID string, opts attendance.ViewOptions) (EvaluationResponse, error)
	BindIdentity(ctx context.Context, batchID string, req identity.BindIdentityRequest) (EvaluationResponse, error)

	ListEmployees(ctx context.Context, batchID string, req attendance.ListEmployeesRequest) ([]attendance.PerEmployeeRow, error)
	ListOffices(ctx context.Context, batchID string, opts attendance.ViewOptions) ([]attendance.PerOfficeRow, error)
	ListDays(ctx context.Context, batchID string, req ListDaysRequest) ([]attendance.PerDayRow, error)
	ListExcluded(ctx context.Context, batchID string) ([]period.ExcludedRow, error)
	SearchDirectory(ctx context.Context, batchID string, req identity.SearchEmployeesRequest) ([]identity.DirectoryEmployee, error)

	Export(ctx context.Context, batchID string, req ExportRequest) (ExportResult, error)
	// NormalizedFile returns the canonical xlsx rendering of one parsed upload.
	NormalizedFile(ctx context.Context, batchID, fileID string) (ExportResult, error)

	// Subscribe streams progress events until the returned cancel is called.
	// Each sse.Event carries an Event in its Data.
	Subscribe(ctx context.Context, batchID string) (<-chan sse.Event, func(), error)

	// EvictIdle discards sessions untouched for longer than the idle TTL.
	EvictIdle(ctx context.Context) (int, error)
}

// Exporter renders evaluated rows as a downloadable workbook. Columns are
// written in the order given by the request.
type Exporter interface {
	Employees(ctx context.Context, rows []attendance.PerEmployeeRow, req ExportRequest) (ExportResult, error)
	Days(ctx context.Context, rows []attendance.PerDayRow, req ExportRequest) (ExportResult, error)
}
