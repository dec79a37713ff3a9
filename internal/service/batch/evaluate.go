package batch

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"golang.org/x/sync/errgroup"
)

// Evaluate implements batch.BatchService.
//
// Rows of tokens already in the session cache are evaluated while the rest
// are looked up in the directory. Partial results published in between
// count the unresolved rows as deferred.
func (s *BatchServiceImpl) Evaluate(ctx context.Context, batchID string, opts attendance.ViewOptions) (batch.EvaluationResponse, error) {
	if err := opts.Validate(); err != nil {
		return batch.EvaluationResponse{}, err
	}
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return batch.EvaluationResponse{}, err
	}

	sess.mu.Lock()
	if err := sess.checkBlocked(); err != nil {
		sess.mu.Unlock()
		return batch.EvaluationResponse{}, err
	}
	if len(sess.merged.PerDay) == 0 {
		sess.mu.Unlock()
		return batch.EvaluationResponse{}, batch.ErrNothingToEvaluate
	}
	var (
		rows       = sess.merged.PerDay
		manual     = sess.period
		generation = sess.generation
		cache      = sess.cache
		companyID  = sess.companyID
	)
	sess.mu.Unlock()

	s.publish(batchID, batch.EventEvaluationStarted, map[string]any{"rows": len(rows)})

	filtered := s.filter.Filter(rows, manual)
	included := filtered.Included

	tokens := distinctTokens(included)
	hits, misses := cache.Split(tokens)

	var hitIdx, missIdx []int
	for i, r := range included {
		if _, ok := hits[r.EmployeeToken]; ok {
			hitIdx = append(hitIdx, i)
		} else {
			missIdx = append(missIdx, i)
		}
	}

	resolved := make([]attendance.ResolvedRow, len(included))
	for _, i := range hitIdx {
		resolved[i] = attendance.ResolvedRow{Row: included[i], Identity: hits[included[i].EmployeeToken]}
	}

	var (
		days             = make([]attendance.PerDayRow, len(included))
		identityWarnings []timelog.ParseWarning
		sortSpec         = opts.Sort()
		mode             = opts.Mode()
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, warnings := s.resolver.Resolve(gCtx, companyID, tokens, cache)
		identityWarnings = warnings
		failed := 0
		for _, rec := range records {
			if rec.LookupFailed {
				failed++
			}
		}
		s.publish(batchID, batch.EventIdentitiesResolved, map[string]any{
			"tokens":    len(tokens),
			"looked_up": len(misses),
			"failed":    failed,
		})

		missRows := make([]attendance.ResolvedRow, len(missIdx))
		for j, i := range missIdx {
			resolved[i] = attendance.ResolvedRow{Row: included[i], Identity: records[included[i].EmployeeToken]}
			missRows[j] = resolved[i]
		}
		evaluated, err := s.evaluator.EvaluateDays(gCtx, companyID, missRows)
		if err != nil {
			return err
		}
		for j, i := range missIdx {
			days[i] = evaluated[j]
		}
		return nil
	})
	g.Go(func() error {
		if len(hitIdx) == 0 {
			return nil
		}
		hitRows := make([]attendance.ResolvedRow, len(hitIdx))
		for j, i := range hitIdx {
			hitRows[j] = resolved[i]
		}
		evaluated, err := s.evaluator.EvaluateDays(gCtx, companyID, hitRows)
		if err != nil {
			return err
		}
		for j, i := range hitIdx {
			days[i] = evaluated[j]
		}
		if len(missIdx) > 0 {
			partial := slices.Clone(evaluated)
			for _, i := range missIdx {
				partial = append(partial, pendingRow(included[i]))
			}
			sum := s.evaluator.Summarize(partial, mode, sortSpec)
			s.publish(batchID, batch.EventEvaluationPartial, map[string]any{
				"employees": len(sum.PerEmployee),
				"deferred":  sum.Deferred,
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("batch evaluation failed", "batch_id", batchID, "error", err)
		return batch.EvaluationResponse{}, err
	}

	ev := &evaluation{
		at:               s.now(),
		resolved:         resolved,
		days:             days,
		excluded:         filtered.Excluded,
		identityWarnings: identityWarnings,
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.generation != generation {
		return batch.EvaluationResponse{}, batch.ErrBatchChanged
	}
	sess.cancelBinds()
	sess.eval = ev

	resp := s.summarize(ev, opts)
	slog.Info("batch evaluated",
		"batch_id", batchID,
		"days", len(days),
		"excluded", len(filtered.Excluded),
		"employees", len(resp.PerEmployee),
		"cached_tokens", len(hits),
	)
	s.publish(batchID, batch.EventEvaluationCompleted, map[string]any{
		"days":      resp.DayCount,
		"employees": len(resp.PerEmployee),
		"excluded":  resp.Excluded,
	})
	return resp, nil
}

// BindIdentity implements batch.BatchService.
//
// Only the rows of the bound token are evaluated again. A newer binding of
// the same token cancels this one, and a cancelled binding reports
// ErrBindSuperseded without touching the session.
func (s *BatchServiceImpl) BindIdentity(ctx context.Context, batchID string, req identity.BindIdentityRequest) (batch.EvaluationResponse, error) {
	if err := req.Validate(); err != nil {
		return batch.EvaluationResponse{}, err
	}
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return batch.EvaluationResponse{}, err
	}

	sess.mu.Lock()
	ev := sess.eval
	if ev == nil {
		sess.mu.Unlock()
		return batch.EvaluationResponse{}, batch.ErrNotEvaluated
	}
	rows := ev.rowsForToken(req.Token)
	if len(rows) == 0 {
		sess.mu.Unlock()
		return batch.EvaluationResponse{}, identity.ErrTokenNotInBatch
	}
	bindCtx, seq := sess.beginBind(ctx, req.Token)
	companyID := sess.companyID
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.endBind(req.Token, seq)
		sess.mu.Unlock()
	}()

	superseded := func(err error) error {
		if bindCtx.Err() != nil && ctx.Err() == nil {
			return batch.ErrBindSuperseded
		}
		return err
	}

	// the session cache is written below, once this binding is known to be the latest
	rec, err := s.resolver.Bind(bindCtx, companyID, req, nil)
	if err != nil {
		return batch.EvaluationResponse{}, superseded(err)
	}
	for i := range rows {
		rows[i].Identity = rec
	}
	days, err := s.evaluator.ReEnrich(bindCtx, companyID, req.Token, rows)
	if err != nil {
		return batch.EvaluationResponse{}, superseded(err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.currentBind(req.Token, seq) || sess.eval != ev {
		return batch.EvaluationResponse{}, batch.ErrBindSuperseded
	}
	sess.cache.Invalidate(req.Token)
	sess.cache.Put(req.Token, rec)
	ev.replaceToken(req.Token, rec, days)
	ev.identityWarnings = s.rebindWarnings(ev.identityWarnings, req.Token, rec)

	slog.Info("identity bound",
		"batch_id", batchID,
		"token", req.Token,
		"employee_id", rec.EmployeeID,
		"rows", len(days),
	)
	s.publish(batchID, batch.EventIdentityBound, map[string]any{
		"token":       req.Token,
		"employee_id": rec.EmployeeID,
		"rows":        len(days),
	})

	return s.summarize(ev, attendance.ViewOptions{
		RateMode:  string(attendance.RateModeDays),
		SortBy:    string(attendance.SortByName),
		SortOrder: string(attendance.SortAsc),
	}), nil
}

// ListEmployees implements batch.BatchService.
func (s *BatchServiceImpl) ListEmployees(ctx context.Context, batchID string, req attendance.ListEmployeesRequest) ([]attendance.PerEmployeeRow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ev, err := s.evaluated(ctx, batchID)
	if err != nil {
		return nil, err
	}
	sum := s.evaluator.Summarize(ev.days, req.Mode(), req.Sort())
	return req.Filter().Apply(sum.PerEmployee), nil
}

// ListOffices implements batch.BatchService.
func (s *BatchServiceImpl) ListOffices(ctx context.Context, batchID string, opts attendance.ViewOptions) ([]attendance.PerOfficeRow, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ev, err := s.evaluated(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return s.evaluator.Summarize(ev.days, opts.Mode(), opts.Sort()).PerOffice, nil
}

// ListDays implements batch.BatchService.
func (s *BatchServiceImpl) ListDays(ctx context.Context, batchID string, req batch.ListDaysRequest) ([]attendance.PerDayRow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ev, err := s.evaluated(ctx, batchID)
	if err != nil {
		return nil, err
	}
	out := make([]attendance.PerDayRow, 0, len(ev.days))
	for _, d := range ev.days {
		if req.Token != "" && d.EmployeeToken != req.Token {
			continue
		}
		if req.Status != "" && string(d.Status) != req.Status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// ListExcluded implements batch.BatchService. It works before evaluation
// so the operator can check a period choice first.
func (s *BatchServiceImpl) ListExcluded(ctx context.Context, batchID string) ([]period.ExcludedRow, error) {
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	rows, manual := sess.merged.PerDay, sess.period
	sess.mu.Unlock()

	excluded := s.filter.Filter(rows, manual).Excluded
	if excluded == nil {
		excluded = []period.ExcludedRow{}
	}
	return excluded, nil
}

// SearchDirectory implements batch.BatchService.
func (s *BatchServiceImpl) SearchDirectory(ctx context.Context, batchID string, req identity.SearchEmployeesRequest) ([]identity.DirectoryEmployee, error) {
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Search(ctx, sess.companyID, req)
}

// Export implements batch.BatchService.
func (s *BatchServiceImpl) Export(ctx context.Context, batchID string, req batch.ExportRequest) (batch.ExportResult, error) {
	if err := req.Validate(); err != nil {
		return batch.ExportResult{}, err
	}
	ev, err := s.evaluated(ctx, batchID)
	if err != nil {
		return batch.ExportResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExportTimeout)
	defer cancel()

	office := attendance.ListFilter{OfficeID: req.OfficeID}
	var res batch.ExportResult
	switch batch.ExportKind(req.Kind) {
	case batch.ExportDays:
		days := make([]attendance.PerDayRow, 0, len(ev.days))
		for _, d := range ev.days {
			if office.Match(attendance.PerEmployeeRow{OfficeID: d.OfficeID}) && d.IdentityStatus != identity.StatusPending {
				days = append(days, d)
			}
		}
		res, err = s.exporter.Days(ctx, days, req)
	default:
		sum := s.evaluator.Summarize(ev.days, req.Mode(), req.Sort())
		res, err = s.exporter.Employees(ctx, office.Apply(sum.PerEmployee), req)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Error("export timed out", "batch_id", batchID, "timeout", s.cfg.ExportTimeout)
		}
		return batch.ExportResult{}, err
	}
	return res, nil
}

// evaluated snapshots the stored evaluation. The snapshot's slices are
// copied so later bindings do not race with readers.
func (s *BatchServiceImpl) evaluated(ctx context.Context, batchID string) (*evaluation, error) {
	sess, err := s.lookup(ctx, batchID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.eval == nil {
		return nil, batch.ErrNotEvaluated
	}
	ev := *sess.eval
	ev.days = slices.Clone(ev.days)
	ev.resolved = slices.Clone(ev.resolved)
	return &ev, nil
}

func (s *BatchServiceImpl) summarize(ev *evaluation, opts attendance.ViewOptions) batch.EvaluationResponse {
	sum := s.evaluator.Summarize(ev.days, opts.Mode(), opts.Sort())

	ws := timelog.NewWarningSet(s.cfg.SampleCap)
	for _, w := range ev.identityWarnings {
		ws.Merge(w)
	}
	for _, w := range sum.Warnings {
		ws.Merge(w)
	}

	return batch.EvaluationResponse{
		PerEmployee:    sum.PerEmployee,
		PerOffice:      sum.PerOffice,
		ManualMappings: sum.ManualMappings,
		Warnings:       ws.List(),
		Excluded:       len(ev.excluded),
		Deferred:       sum.Deferred,
		DayCount:       len(ev.days),
	}
}

// rebindWarnings removes a token from identity warnings once it is bound,
// and reports the new match when it has no office.
func (s *BatchServiceImpl) rebindWarnings(warnings []timelog.ParseWarning, token string, rec identity.Record) []timelog.ParseWarning {
	ws := timelog.NewWarningSet(s.cfg.SampleCap)
	for _, w := range warnings {
		switch w.Type {
		case timelog.WarningUnmatchedIdentity, timelog.WarningAmbiguousIdentity,
			timelog.WarningIdentityLookupFailed, timelog.WarningMissingOffice:
		default:
			ws.Merge(w)
			continue
		}
		idx := slices.IndexFunc(w.UnmatchedIdentities, func(u timelog.UnmatchedIdentity) bool { return u.Token == token })
		if idx < 0 && !slices.Contains(w.Samples, token) {
			ws.Merge(w)
			continue
		}
		w.Count--
		if w.Count <= 0 {
			continue
		}
		w.Samples = slices.DeleteFunc(slices.Clone(w.Samples), func(s string) bool { return s == token })
		if idx >= 0 {
			w.UnmatchedIdentities = slices.Delete(slices.Clone(w.UnmatchedIdentities), idx, idx+1)
		}
		ws.Merge(w)
	}
	if rec.MissingOffice {
		ws.Add(timelog.WarningMissingOffice, timelog.LevelInfo, "matched employees without an office", token)
	}
	return ws.List()
}

func distinctTokens(rows []timelog.ParsedPerDayRow) []string {
	seen := make(map[string]struct{}, len(rows))
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.EmployeeToken]; ok {
			continue
		}
		seen[r.EmployeeToken] = struct{}{}
		out = append(out, r.EmployeeToken)
	}
	return out
}

// pendingRow stands in for a row whose identity is still being looked up.
func pendingRow(row timelog.ParsedPerDayRow) attendance.PerDayRow {
	status := attendance.StatusPresent
	if len(row.Punches) == 0 {
		status = attendance.StatusNoPunch
	}
	return attendance.PerDayRow{
		ParsedPerDayRow:   row,
		DisplayEmployeeID: row.EmployeeToken,
		IdentityStatus:    identity.StatusPending,
		Status:            status,
	}
}
