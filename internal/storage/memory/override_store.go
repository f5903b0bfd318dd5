package memory

import (
	"context"
	"sort"
	"sync"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// OverrideStore is an in-memory implementation of storage.OverrideStore.
type OverrideStore struct {
	mu      sync.RWMutex
	gating  []domain.GatingOverride
	posture []domain.PostureOverride
}

// NewOverrideStore creates a new in-memory override store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{}
}

// Compile-time interface check.
var _ storage.OverrideStore = (*OverrideStore)(nil)

// ReplaceGating swaps the full gating override set.
func (s *OverrideStore) ReplaceGating(_ context.Context, overrides []domain.GatingOverride) error {
	next := make([]domain.GatingOverride, 0, len(overrides))
	for _, o := range overrides {
		if o.ID == "" {
			return storage.ErrInvalidInput
		}
		o.Scope = domain.CloneScope(o.Scope)
		o.Multipliers = cloneMultipliers(o.Multipliers)
		next = append(next, o)
	}
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gating = next
	return nil
}

// ReplacePosture swaps the full posture override set.
func (s *OverrideStore) ReplacePosture(_ context.Context, overrides []domain.PostureOverride) error {
	next := make([]domain.PostureOverride, 0, len(overrides))
	for _, o := range overrides {
		if o.ID == "" {
			return storage.ErrInvalidInput
		}
		o.Scope = domain.CloneScope(o.Scope)
		next = append(next, o)
	}
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.posture = next
	return nil
}

// MatchingGating returns gating overrides whose scope is a subset of scope.
func (s *OverrideStore) MatchingGating(_ context.Context, scope map[string]string) ([]domain.GatingOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.GatingOverride
	for _, o := range s.gating {
		if domain.ScopeContains(scope, o.Scope) {
			o.Scope = domain.CloneScope(o.Scope)
			o.Multipliers = cloneMultipliers(o.Multipliers)
			result = append(result, o)
		}
	}
	return result, nil
}

// MatchingPosture returns posture overrides whose scope is a subset of scope.
func (s *OverrideStore) MatchingPosture(_ context.Context, scope map[string]string) ([]domain.PostureOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PostureOverride
	for _, o := range s.posture {
		if domain.ScopeContains(scope, o.Scope) {
			o.Scope = domain.CloneScope(o.Scope)
			result = append(result, o)
		}
	}
	return result, nil
}

func cloneMultipliers(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
