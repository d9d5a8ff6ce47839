package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/campuspulse/engage/internal/domain/term"
)

// MemStore implements Store with a mutex-guarded nested map. Writers only
// ever install whole buckets or whole terms, so readers holding the read
// lock see complete records.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]TermData
}

// NewMemStore creates an empty dataset store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]TermData)}
}

// Bucket returns the bucket for (term, courseKey).
func (s *MemStore) Bucket(_ context.Context, t, courseKey string) (Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, ok := s.data[t]
	if !ok {
		return Bucket{}, fmt.Errorf("term %q: %w", t, ErrNotFound)
	}
	b, ok := td[courseKey]
	if !ok {
		return Bucket{}, fmt.Errorf("course %q in term %q: %w", courseKey, t, ErrNotFound)
	}
	return b, nil
}

// SetBucket overwrites one bucket as a unit.
func (s *MemStore) SetBucket(_ context.Context, t, courseKey string, b Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	td, ok := s.data[t]
	if !ok {
		return fmt.Errorf("term %q: %w", t, ErrNotFound)
	}
	td[courseKey] = b
	return nil
}

// PublishTerm installs a complete term map in one assignment.
func (s *MemStore) PublishTerm(_ context.Context, t string, data TermData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data == nil {
		data = make(TermData)
	}
	s.data[t] = data
}

// ReplaceAll swaps the whole dataset.
func (s *MemStore) ReplaceAll(_ context.Context, data map[string]TermData) {
	if data == nil {
		data = make(map[string]TermData)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

// Snapshot returns a deep copy of the dataset.
func (s *MemStore) Snapshot(_ context.Context) map[string]TermData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]TermData, len(s.data))
	for t, td := range s.data {
		out[t] = td.Clone()
	}
	return out
}

// Terms lists known terms, newest first. Unparseable keys sort last.
func (s *MemStore) Terms(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := make([]string, 0, len(s.data))
	for t := range s.data {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		a, aerr := term.Parse(terms[i])
		b, berr := term.Parse(terms[j])
		if aerr != nil || berr != nil {
			return aerr == nil
		}
		return b.Before(a)
	})
	return terms
}

// CourseKeys lists the course keys of a published term in sorted order.
func (s *MemStore) CourseKeys(_ context.Context, t string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, ok := s.data[t]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(td))
	for key := range td {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// HasTerm reports whether the term is published.
func (s *MemStore) HasTerm(_ context.Context, t string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[t]
	return ok
}

// Evict removes a term; no-op if absent.
func (s *MemStore) Evict(_ context.Context, t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, t)
}

// Count returns the total number of buckets across all terms.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, td := range s.data {
		n += len(td)
	}
	return n
}
