package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/schedule"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

type fakeParser struct {
	workbooks map[string]timelog.ParsedWorkbook
}

func (f *fakeParser) Parse(_ context.Context, name string, _ []byte, _ timelog.ParseOptions) (timelog.ParsedWorkbook, error) {
	wb, ok := f.workbooks[name]
	if !ok {
		return timelog.ParsedWorkbook{}, timelog.ErrUnreadableWorkbook
	}
	wb.FileName = name
	return wb, nil
}

type directory struct {
	mu        sync.Mutex
	employees []identity.DirectoryEmployee
	lookups   int
	// blockGetByID parks GetByID for this employee until ctx ends
	blockGetByID string
	blocked      chan struct{}
}

func (d *directory) FindByTokens(_ context.Context, _ string, tokens []string) (map[string][]identity.DirectoryEmployee, error) {
	d.mu.Lock()
	d.lookups++
	d.mu.Unlock()
	out := make(map[string][]identity.DirectoryEmployee)
	for _, t := range tokens {
		for _, e := range d.employees {
			if e.BiometricID != nil && identity.NormalizeToken(*e.BiometricID) == t {
				out[t] = append(out[t], e)
			}
		}
	}
	return out, nil
}

func (d *directory) GetByID(ctx context.Context, _ string, employeeID string) (identity.DirectoryEmployee, error) {
	if employeeID == d.blockGetByID {
		close(d.blocked)
		<-ctx.Done()
		return identity.DirectoryEmployee{}, ctx.Err()
	}
	for _, e := range d.employees {
		if e.ID == employeeID {
			return e, nil
		}
	}
	return identity.DirectoryEmployee{}, identity.ErrEmployeeNotFound
}

func (d *directory) Search(_ context.Context, _ string, query string, limit int) ([]identity.DirectoryEmployee, error) {
	var out []identity.DirectoryEmployee
	for _, e := range d.employees {
		if len(out) < limit && strings.Contains(strings.ToLower(e.Name), strings.ToLower(query)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *directory) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

type mappings struct {
	mu    sync.Mutex
	bound map[string]string
}

func (m *mappings) ListByTokens(_ context.Context, _ string, tokens []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for _, t := range tokens {
		if id, ok := m.bound[t]; ok {
			out[t] = id
		}
	}
	return out, nil
}

func (m *mappings) Bind(_ context.Context, _ string, token, employeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bound == nil {
		m.bound = make(map[string]string)
	}
	m.bound[token] = employeeID
	return nil
}

type schedules struct {
	mu    sync.Mutex
	plans map[string]schedule.EmployeeSchedule
	calls [][]string
	err   error
}

func (s *schedules) GetEmployeeSchedules(_ context.Context, _ string, ids []string, _, _ time.Time) (map[string]schedule.EmployeeSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string(nil), ids...))
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]schedule.EmployeeSchedule)
	for _, id := range ids {
		if p, ok := s.plans[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *schedules) lastCall() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

var errScheduleDown = errors.New("schedule store down")
