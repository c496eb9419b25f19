// Package memory provides an in-memory pattern store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/searchscout/searchscout/internal/pattern"
)

// PatternStore keeps the current pattern per domain in a map.
type PatternStore struct {
	mu       sync.RWMutex
	patterns map[string]pattern.SearchPattern
}

// NewPatternStore constructs a PatternStore.
func NewPatternStore() *PatternStore {
	return &PatternStore{
		patterns: make(map[string]pattern.SearchPattern),
	}
}

// Upsert replaces the current pattern for the domain.
func (s *PatternStore) Upsert(_ context.Context, p pattern.SearchPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.Domain] = p
	return nil
}

// FetchCurrent returns the current pattern for a domain.
func (s *PatternStore) FetchCurrent(_ context.Context, domain string) (pattern.SearchPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[domain]
	if !ok {
		return pattern.SearchPattern{}, pattern.ErrPatternNotFound
	}
	return p, nil
}

// MarkVerified bumps last_verified_at for an existing domain.
func (s *PatternStore) MarkVerified(_ context.Context, domain string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[domain]
	if !ok {
		return pattern.ErrPatternNotFound
	}
	p.LastVerifiedAt = at
	s.patterns[domain] = p
	return nil
}

// Len reports how many domains currently have a stored pattern.
func (s *PatternStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}
