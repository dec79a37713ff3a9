package timelog

import "slices"

// DefaultSampleCap bounds warning samples when no cap is configured.
const DefaultSampleCap = 10

type warningKey struct {
	typ   WarningType
	level WarningLevel
}

// WarningSet aggregates warnings by (type, level). Counts are summed,
// samples are de-duplicated and capped, unmatched identities merge by token.
type WarningSet struct {
	sampleCap int
	order     []warningKey
	items     map[warningKey]*ParseWarning
	samples   map[warningKey]map[string]struct{}
	tokens    map[warningKey]map[string]int
}

func NewWarningSet(sampleCap int) *WarningSet {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	return &WarningSet{
		sampleCap: sampleCap,
		items:     make(map[warningKey]*ParseWarning),
		samples:   make(map[warningKey]map[string]struct{}),
		tokens:    make(map[warningKey]map[string]int),
	}
}

func (s *WarningSet) entry(typ WarningType, level WarningLevel, message string) (warningKey, *ParseWarning) {
	key := warningKey{typ: typ, level: level}
	w, ok := s.items[key]
	if !ok {
		w = &ParseWarning{Type: typ, Level: level, Message: message}
		s.items[key] = w
		s.samples[key] = make(map[string]struct{})
		s.tokens[key] = make(map[string]int)
		s.order = append(s.order, key)
	}
	return key, w
}

func (s *WarningSet) addSample(key warningKey, w *ParseWarning, sample string) {
	if sample == "" {
		return
	}
	if _, dup := s.samples[key][sample]; dup {
		return
	}
	if len(w.Samples) >= s.sampleCap {
		return
	}
	s.samples[key][sample] = struct{}{}
	w.Samples = append(w.Samples, sample)
}

// Add records one occurrence with an optional sample.
func (s *WarningSet) Add(typ WarningType, level WarningLevel, message, sample string) {
	key, w := s.entry(typ, level, message)
	w.Count++
	s.addSample(key, w, sample)
}

// AddUnmatched records one identity that could not be bound.
func (s *WarningSet) AddUnmatched(typ WarningType, level WarningLevel, message string, u UnmatchedIdentity) {
	key, w := s.entry(typ, level, message)
	w.Count++
	s.addSample(key, w, u.Token)
	s.mergeIdentity(key, w, u)
}

func (s *WarningSet) mergeIdentity(key warningKey, w *ParseWarning, u UnmatchedIdentity) {
	if idx, ok := s.tokens[key][u.Token]; ok {
		existing := &w.UnmatchedIdentities[idx]
		for _, id := range u.EmployeeIDs {
			if !slices.Contains(existing.EmployeeIDs, id) {
				existing.EmployeeIDs = append(existing.EmployeeIDs, id)
			}
		}
		return
	}
	s.tokens[key][u.Token] = len(w.UnmatchedIdentities)
	w.UnmatchedIdentities = append(w.UnmatchedIdentities, UnmatchedIdentity{
		Token:       u.Token,
		EmployeeIDs: slices.Clone(u.EmployeeIDs),
	})
}

// Merge folds an already aggregated warning into the set.
func (s *WarningSet) Merge(in ParseWarning) {
	key, w := s.entry(in.Type, in.Level, in.Message)
	n := in.Count
	if n == 0 {
		n = 1
	}
	w.Count += n
	for _, sample := range in.Samples {
		s.addSample(key, w, sample)
	}
	for _, u := range in.UnmatchedIdentities {
		s.mergeIdentity(key, w, u)
	}
}

func (s *WarningSet) Len() int {
	return len(s.order)
}

// List returns the warnings in first-seen order.
func (s *WarningSet) List() []ParseWarning {
	out := make([]ParseWarning, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.items[key])
	}
	return out
}
