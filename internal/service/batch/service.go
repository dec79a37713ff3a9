package batch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/jwt"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/sse"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/validator"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	ParseConcurrency int
	MaxUploadBytes   int64
	EmitNormalized   bool
	SampleCap        int
	ExportTimeout    time.Duration
	IdleTTL          time.Duration
}

type BatchServiceImpl struct {
	parser    timelog.WorkbookParser
	merger    timelog.Merger
	filter    period.Filter
	resolver  identity.Resolver
	evaluator attendance.AttendanceService
	exporter  batch.Exporter
	hub       *sse.Hub
	cfg       Config
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewBatchService(
	parser timelog.WorkbookParser,
	merger timelog.Merger,
	filter period.Filter,
	resolver identity.Resolver,
	evaluator attendance.AttendanceService,
	exporter batch.Exporter,
	hub *sse.Hub,
	cfg Config,
) batch.BatchService {
	if cfg.ParseConcurrency <= 0 {
		cfg.ParseConcurrency = 4
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = 30 * time.Second
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	return &BatchServiceImpl{
		parser:    parser,
		merger:    merger,
		filter:    filter,
		resolver:  resolver,
		evaluator: evaluator,
		exporter:  exporter,
		hub:       hub,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// lookup returns the session when it belongs to the caller's company.
// Sessions of other companies are reported as not found.
func (s *BatchServiceImpl) lookup(ctx context.Context, batchID string) (*session, error) {
	companyID, err := jwt.CompanyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !validator.IsValidUUID(batchID) {
		return nil, batch.ErrBatchNotFound
	}
	s.mu.RLock()
	sess, ok := s.sessions[batchID]
	s.mu.RUnlock()
	if !ok || sess.companyID != companyID {
		return nil, batch.ErrBatchNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

func (s *BatchServiceImpl) publish(batchID string, typ batch.EventType, data any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(batchID, sse.Event{
		Event: string(typ),
		Data: batch.Event{
			Type:    typ,
			BatchID: batchID,
			Data:    data,
			At:      s.now(),
		},
	})
}

// CreateBatch implements batch.BatchService.
func (s *BatchServiceImpl) CreateBatch(ctx context.Context) (batch.BatchResponse, error) {
	companyID, err := jwt.CompanyIDFromContext(ctx)
	if err != nil {
		return batch.BatchResponse{}, err
	}

	sess := newSession(uuid.NewString(), companyID, s.now())
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	slog.Info("batch created", "batch_id", sess.id, "company_id", companyID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.response(), nil
}

// GetBatch implements batch.BatchService.
func (s *BatchServiceImpl) GetBatch(ctx context.Context, batchID string) (batch.BatchResponse, error) {
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return batch.BatchResponse{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.response(), nil
}

// ResetBatch implements batch.BatchService.
func (s *BatchServiceImpl) ResetBatch(ctx context.Context, batchID string) error {
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.reset(s.now())
	sess.mu.Unlock()

	slog.Info("batch reset", "batch_id", batchID)
	s.publish(batchID, batch.EventBatchReset, nil)
	return nil
}

// UploadFiles implements batch.BatchService.
func (s *BatchServiceImpl) UploadFiles(ctx context.Context, batchID string, files []batch.UploadedFile) (batch.UploadResponse, error) {
	if len(files) == 0 {
		return batch.UploadResponse{}, batch.ErrNoFiles
	}
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return batch.UploadResponse{}, err
	}

	results := make([]batch.FileResult, len(files))
	workbooks := make([]*timelog.ParsedWorkbook, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ParseConcurrency)
	for i, f := range files {
		g.Go(func() error {
			results[i], workbooks[i] = s.parseFile(gCtx, batchID, f)
			// a failed file never cancels its siblings
			return nil
		})
	}
	_ = g.Wait()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	previousMonths := sess.merged.Months
	for i, res := range results {
		sess.files = append(sess.files, res)
		if workbooks[i] != nil {
			sess.parsed = append(sess.parsed, parsedFile{fileID: res.ID, workbook: *workbooks[i]})
		}
	}
	sess.merged = s.merger.Merge(sess.workbooks())
	if !slices.Equal(previousMonths, sess.merged.Months) {
		sess.monthsConfirmed = false
	}
	sess.changed(s.now())

	slog.Info("batch merged",
		"batch_id", batchID,
		"files", len(sess.files),
		"rows", len(sess.merged.PerDay),
		"months", sess.merged.Months,
	)
	s.publish(batchID, batch.EventMerged, map[string]any{
		"rows":   len(sess.merged.PerDay),
		"months": sess.merged.Months,
	})

	return batch.UploadResponse{
		Files: results,
		Batch: sess.response(),
	}, nil
}

func (s *BatchServiceImpl) parseFile(ctx context.Context, batchID string, f batch.UploadedFile) (batch.FileResult, *timelog.ParsedWorkbook) {
	res := batch.FileResult{
		ID:       uuid.NewString(),
		Name:     f.Name,
		Size:     len(f.Data),
		ParsedAt: s.now(),
	}

	fail := func(err error) (batch.FileResult, *timelog.ParsedWorkbook) {
		ferr := &batch.FileError{FileName: f.Name, Err: err}
		res.Status = batch.FileFailed
		res.Error = ferr.Error()
		slog.Warn("file rejected", "batch_id", batchID, "file", f.Name, "error", ferr)
		s.publish(batchID, batch.EventFileFailed, res)
		return res, nil
	}

	if s.cfg.MaxUploadBytes > 0 && int64(len(f.Data)) > s.cfg.MaxUploadBytes {
		return fail(batch.ErrFileTooLarge)
	}

	wb, err := s.parser.Parse(ctx, f.Name, f.Data, timelog.ParseOptions{
		EmitNormalized: s.cfg.EmitNormalized,
		SampleCap:      s.cfg.SampleCap,
	})
	if err != nil {
		return fail(err)
	}

	res.Status = batch.FileParsed
	res.Layout = wb.Layout
	res.SheetName = wb.SheetName
	res.EmployeeCount = wb.EmployeeCount
	res.TotalPunches = wb.TotalPunches
	res.WarningCount = len(wb.Warnings)
	s.publish(batchID, batch.EventFileParsed, res)
	return res, &wb
}

// ConfirmMonths implements batch.BatchService.
func (s *BatchServiceImpl) ConfirmMonths(ctx context.Context, batchID string, req batch.ConfirmMonthsRequest) (batch.BatchResponse, error) {
	if err := req.Validate(); err != nil {
		return batch.BatchResponse{}, err
	}
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return batch.BatchResponse{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !*req.Proceed {
		sess.reset(s.now())
		slog.Info("mixed months cancelled, batch reset", "batch_id", batchID)
		s.publish(batchID, batch.EventBatchReset, nil)
		return sess.response(), nil
	}
	sess.monthsConfirmed = true
	sess.updatedAt = s.now()
	return sess.response(), nil
}

// SetPeriod implements batch.BatchService.
func (s *BatchServiceImpl) SetPeriod(ctx context.Context, batchID string, req batch.SetPeriodRequest) (batch.BatchResponse, error) {
	if err := req.Validate(); err != nil {
		return batch.BatchResponse{}, err
	}
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return batch.BatchResponse{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.period = req.Period()
	sess.changed(s.now())
	return sess.response(), nil
}

// NormalizedFile implements batch.BatchService.
func (s *BatchServiceImpl) NormalizedFile(ctx context.Context, batchID, fileID string) (batch.ExportResult, error) {
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return batch.ExportResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, p := range sess.parsed {
		if p.fileID != fileID || len(p.workbook.NormalizedXLSX) == 0 {
			continue
		}
		return batch.ExportResult{
			FileName: fmt.Sprintf("normalized-%s.xlsx", p.workbook.FileName),
			Data:     p.workbook.NormalizedXLSX,
		}, nil
	}
	return batch.ExportResult{}, batch.ErrFileNotFound
}

// Subscribe implements batch.BatchService.
func (s *BatchServiceImpl) Subscribe(ctx context.Context, batchID string) (<-chan sse.Event, func(), error) {
	if _, err := s.lookup(ctx, batchID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(batchID)
	return ch, cancel, nil
}

// EvictIdle implements batch.BatchService.
func (s *BatchServiceImpl) EvictIdle(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	var evicted []string
	for id, sess := range s.sessions {
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return len(evicted), err
		}
		sess.mu.Lock()
		idle := sess.touchedAt.Before(cutoff) && len(sess.binds) == 0
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	s.mu.Unlock()

	for _, id := range evicted {
		if s.hub != nil {
			s.hub.Close(id)
		}
		slog.Info("idle batch evicted", "batch_id", id)
	}
	return len(evicted), nil
}
