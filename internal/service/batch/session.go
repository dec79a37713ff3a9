package batch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

// session owns all state of one upload batch. Fields are guarded by mu;
// long-running work happens on snapshots outside the lock.
type session struct {
	mu sync.Mutex

	id        string
	companyID string
	createdAt time.Time
	updatedAt time.Time
	touchedAt time.Time

	// generation changes whenever the rows or the period change, so an
	// evaluation started on older input is never stored.
	generation uint64

	files           []batch.FileResult
	parsed          []parsedFile
	merged          timelog.MergeResult
	monthsConfirmed bool
	period          *period.ManualPeriod

	cache *identity.Cache
	eval  *evaluation
	binds map[string]*bindState
}

type parsedFile struct {
	fileID   string
	workbook timelog.ParsedWorkbook
}

// bindState tracks the newest identity override per token.
type bindState struct {
	seq    uint64
	cancel context.CancelFunc
}

// evaluation is the stored outcome of the last successful Evaluate.
// resolved and days are parallel: days[i] evaluates resolved[i].
type evaluation struct {
	at               time.Time
	resolved         []attendance.ResolvedRow
	days             []attendance.PerDayRow
	excluded         []period.ExcludedRow
	identityWarnings []timelog.ParseWarning
}

func newSession(id, companyID string, now time.Time) *session {
	return &session{
		id:        id,
		companyID: companyID,
		createdAt: now,
		updatedAt: now,
		touchedAt: now,
		cache:     identity.NewCache(),
		binds:     make(map[string]*bindState),
	}
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.touchedAt = now
	s.mu.Unlock()
}

// changed drops the stored evaluation after an input change.
func (s *session) changed(now time.Time) {
	s.generation++
	s.updatedAt = now
	s.eval = nil
	s.cancelBinds()
}

func (s *session) reset(now time.Time) {
	s.changed(now)
	s.files = nil
	s.parsed = nil
	s.merged = timelog.MergeResult{}
	s.monthsConfirmed = false
	s.period = nil
	s.cache.Reset()
}

func (s *session) cancelBinds() {
	for token, b := range s.binds {
		b.cancel()
		delete(s.binds, token)
	}
}

func (s *session) workbooks() []timelog.ParsedWorkbook {
	out := make([]timelog.ParsedWorkbook, len(s.parsed))
	for i, p := range s.parsed {
		out[i] = p.workbook
	}
	return out
}

// beginBind registers a new override for token and cancels the one in flight.
func (s *session) beginBind(ctx context.Context, token string) (context.Context, uint64) {
	var seq uint64 = 1
	if prev, ok := s.binds[token]; ok {
		prev.cancel()
		seq = prev.seq + 1
	}
	bctx, cancel := context.WithCancel(ctx)
	s.binds[token] = &bindState{seq: seq, cancel: cancel}
	return bctx, seq
}

func (s *session) currentBind(token string, seq uint64) bool {
	b, ok := s.binds[token]
	return ok && b.seq == seq
}

func (s *session) endBind(token string, seq uint64) {
	if b, ok := s.binds[token]; ok && b.seq == seq {
		b.cancel()
		delete(s.binds, token)
	}
}

func (s *session) blocking() []batch.BlockingCondition {
	var out []batch.BlockingCondition
	if s.merged.NeedsMonthConfirmation && !s.monthsConfirmed {
		out = append(out, batch.BlockingCondition{
			Code:    batch.BlockMixedMonths,
			Message: fmt.Sprintf("rows span %d months; proceed to evaluate all of them or cancel to discard the batch", len(s.merged.Months)),
			Months:  slices.Clone(s.merged.Months),
		})
	}
	if s.merged.HasDayOnlyRows() && s.period == nil {
		out = append(out, batch.BlockingCondition{
			Code:    batch.BlockManualPeriodRequired,
			Message: "some rows carry only a day of month; set a month and year to place them",
		})
	}
	return out
}

// checkBlocked returns the error of the first blocking condition.
func (s *session) checkBlocked() error {
	for _, b := range s.blocking() {
		switch b.Code {
		case batch.BlockMixedMonths:
			return batch.ErrMixedMonthsUnconfirmed
		case batch.BlockManualPeriodRequired:
			return period.ErrManualPeriodRequired
		}
	}
	return nil
}

func (s *session) response() batch.BatchResponse {
	resp := batch.BatchResponse{
		ID:                     s.id,
		CreatedAt:              s.createdAt,
		UpdatedAt:              s.updatedAt,
		Files:                  slices.Clone(s.files),
		RowCount:               len(s.merged.PerDay),
		Months:                 slices.Clone(s.merged.Months),
		MonthHints:             slices.Clone(s.merged.MonthHints),
		DateRange:              s.merged.DateRange,
		NeedsMonthConfirmation: s.merged.NeedsMonthConfirmation,
		MonthsConfirmed:        s.monthsConfirmed,
		HasDayOnlyRows:         s.merged.HasDayOnlyRows(),
		Period:                 s.period,
		Blocking:               s.blocking(),
		Warnings:               slices.Clone(s.merged.Warnings),
		Evaluated:              s.eval != nil,
	}
	if resp.Files == nil {
		resp.Files = []batch.FileResult{}
	}
	if s.eval != nil {
		at := s.eval.at
		resp.EvaluatedAt = &at
	}
	return resp
}

// rowsForToken returns copies of the resolved rows of one token.
func (e *evaluation) rowsForToken(token string) []attendance.ResolvedRow {
	var out []attendance.ResolvedRow
	for _, rr := range e.resolved {
		if rr.Row.EmployeeToken == token {
			out = append(out, rr)
		}
	}
	return out
}

// replaceToken swaps in re-evaluated rows of one token, keeping order.
func (e *evaluation) replaceToken(token string, rec identity.Record, days []attendance.PerDayRow) {
	j := 0
	for i := range e.resolved {
		if e.resolved[i].Row.EmployeeToken != token || j >= len(days) {
			continue
		}
		e.resolved[i].Identity = rec
		e.days[i] = days[j]
		j++
	}
}
