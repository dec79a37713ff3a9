package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"golang.org/x/sync/errgroup"
)

// Config bounds directory lookups.
type Config struct {
	ChunkSize   int
	Concurrency int
	Timeout     time.Duration
	SampleCap   int
}

type IdentityServiceImpl struct {
	directory identity.DirectoryRepository
	mappings  identity.MappingRepository
	cfg       Config
}

func NewIdentityService(directory identity.DirectoryRepository, mappings identity.MappingRepository, cfg Config) identity.Resolver {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 200
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &IdentityServiceImpl{
		directory: directory,
		mappings:  mappings,
		cfg:       cfg,
	}
}

// Resolve implements identity.Resolver.
func (s *IdentityServiceImpl) Resolve(ctx context.Context, companyID string, tokens []string, cache *identity.Cache) (map[string]identity.Record, []timelog.ParseWarning) {
	if cache == nil {
		cache = identity.NewCache()
	}
	tokens = dedupeTokens(tokens)
	warnings := timelog.NewWarningSet(s.cfg.SampleCap)

	result, pending := cache.Split(tokens)

	// persisted operator bindings come first; a token whose binding cannot
	// be read is never guessed from the directory
	var unreadable []string
	if len(pending) > 0 && s.mappings != nil {
		bound, err := s.mappings.ListByTokens(ctx, companyID, pending)
		if err != nil {
			slog.Error("failed to load identity mappings", "company_id", companyID, "error", err)
			unreadable, pending = pending, nil
		} else if len(bound) > 0 {
			pending, unreadable = s.applyMappings(ctx, companyID, pending, bound, result, cache)
		}
	}

	var found map[string][]identity.DirectoryEmployee
	failed := make(map[string]bool, len(unreadable))
	for _, token := range unreadable {
		failed[token] = true
	}
	if len(pending) > 0 {
		var lookupFailed map[string]bool
		found, lookupFailed = s.lookup(ctx, companyID, pending)
		for token := range lookupFailed {
			failed[token] = true
		}
	}

	for _, token := range append(unreadable, pending...) {
		if failed[token] {
			result[token] = identity.Record{
				Status:       identity.StatusUnmatched,
				OfficeName:   identity.UnknownOffice,
				LookupFailed: true,
			}
			warnings.Add(timelog.WarningIdentityLookupFailed, timelog.LevelWarning,
				"identity lookup failed; tokens left unmatched until the next evaluation", token)
			continue
		}
		rec := classify(found[identity.NormalizeToken(token)])
		result[token] = rec
		cache.Put(token, rec)
	}

	for _, token := range tokens {
		rec := result[token]
		switch {
		case rec.Status == identity.StatusAmbiguous:
			warnings.AddUnmatched(timelog.WarningAmbiguousIdentity, timelog.LevelWarning,
				"tokens match several employees and need an operator decision",
				timelog.UnmatchedIdentity{Token: token, EmployeeIDs: rec.CandidateIDs})
		case rec.Status == identity.StatusUnmatched && !rec.LookupFailed:
			warnings.AddUnmatched(timelog.WarningUnmatchedIdentity, timelog.LevelWarning,
				"tokens not found in the employee directory",
				timelog.UnmatchedIdentity{Token: token})
		case rec.Status == identity.StatusMatched && rec.MissingOffice:
			warnings.Add(timelog.WarningMissingOffice, timelog.LevelInfo,
				"matched employees without an office", token)
		}
	}

	return result, warnings.List()
}

// applyMappings resolves tokens with a saved binding. Tokens without one are
// returned in rest; tokens whose employee could not be loaded in failed.
func (s *IdentityServiceImpl) applyMappings(ctx context.Context, companyID string, pending []string, bound map[string]string, result map[string]identity.Record, cache *identity.Cache) (rest, failed []string) {
	for _, token := range pending {
		employeeID, ok := bound[token]
		if !ok {
			rest = append(rest, token)
			continue
		}
		emp, err := s.directory.GetByID(ctx, companyID, employeeID)
		if errors.Is(err, identity.ErrEmployeeNotFound) {
			// stale mapping (employee removed); fall back to a lookup
			slog.Warn("identity mapping points at a missing employee",
				"token", token, "employee_id", employeeID)
			rest = append(rest, token)
			continue
		}
		if err != nil {
			slog.Error("failed to load mapped employee",
				"company_id", companyID, "token", token, "employee_id", employeeID, "error", err)
			failed = append(failed, token)
			continue
		}
		rec := emp.Matched()
		rec.Manual = true
		result[token] = rec
		cache.Put(token, rec)
	}
	return rest, failed
}

// lookup queries the directory in bounded, concurrent chunks. Tokens of a
// failed chunk are reported in failed and never guessed.
func (s *IdentityServiceImpl) lookup(ctx context.Context, companyID string, tokens []string) (map[string][]identity.DirectoryEmployee, map[string]bool) {
	normalized := make([]string, 0, len(tokens))
	byKey := make(map[string][]string)
	for _, t := range tokens {
		key := identity.NormalizeToken(t)
		if _, seen := byKey[key]; !seen {
			normalized = append(normalized, key)
		}
		byKey[key] = append(byKey[key], t)
	}

	var (
		mu     sync.Mutex
		found  = make(map[string][]identity.DirectoryEmployee)
		failed = make(map[string]bool)
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for chunk := range slices.Chunk(normalized, s.cfg.ChunkSize) {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gCtx, s.cfg.Timeout)
			defer cancel()

			res, err := s.directory.FindByTokens(cctx, companyID, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("directory lookup failed",
					"company_id", companyID,
					"tokens", len(chunk),
					"error", fmt.Errorf("%w: %w", identity.ErrLookupFailed, err),
				)
				for _, key := range chunk {
					for _, t := range byKey[key] {
						failed[t] = true
					}
				}
				// other chunks keep going
				return nil
			}
			for key, candidates := range res {
				found[key] = candidates
			}
			return nil
		})
	}
	_ = g.Wait()

	return found, failed
}

// classify never picks among several candidates.
func classify(candidates []identity.DirectoryEmployee) identity.Record {
	switch len(candidates) {
	case 0:
		return identity.Record{
			Status:     identity.StatusUnmatched,
			OfficeName: identity.UnknownOffice,
		}
	case 1:
		return candidates[0].Matched()
	default:
		sorted := slices.Clone(candidates)
		slices.SortFunc(sorted, func(a, b identity.DirectoryEmployee) int {
			return strings.Compare(a.Name, b.Name)
		})
		rec := identity.Record{
			Status:     identity.StatusAmbiguous,
			OfficeName: identity.UnknownOffice,
		}
		for _, c := range sorted {
			rec.Candidates = append(rec.Candidates, c.Name)
			rec.CandidateIDs = append(rec.CandidateIDs, c.ID)
		}
		return rec
	}
}

// Bind implements identity.Resolver.
func (s *IdentityServiceImpl) Bind(ctx context.Context, companyID string, req identity.BindIdentityRequest, cache *identity.Cache) (identity.Record, error) {
	if err := req.Validate(); err != nil {
		return identity.Record{}, err
	}

	emp, err := s.directory.GetByID(ctx, companyID, req.EmployeeID)
	if err != nil {
		if errors.Is(err, identity.ErrEmployeeNotFound) {
			return identity.Record{}, err
		}
		return identity.Record{}, fmt.Errorf("failed to load employee %s: %w", req.EmployeeID, err)
	}

	if err := s.mappings.Bind(ctx, companyID, req.Token, emp.ID); err != nil {
		return identity.Record{}, fmt.Errorf("failed to persist identity mapping: %w", err)
	}

	rec := emp.Matched()
	rec.Manual = true
	if cache != nil {
		cache.Invalidate(req.Token)
		cache.Put(req.Token, rec)
	}

	slog.Info("identity bound", "company_id", companyID, "token", req.Token, "employee_id", emp.ID)
	return rec, nil
}

// Search implements identity.Resolver.
func (s *IdentityServiceImpl) Search(ctx context.Context, companyID string, req identity.SearchEmployeesRequest) ([]identity.DirectoryEmployee, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	employees, err := s.directory.Search(ctx, companyID, strings.TrimSpace(req.Query), req.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search directory: %w", err)
	}
	return employees, nil
}

func dedupeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
