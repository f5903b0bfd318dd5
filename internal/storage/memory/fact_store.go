package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// FactStore is an in-memory implementation of storage.FactStore.
type FactStore struct {
	mu       sync.RWMutex
	evidence []domain.EvidenceRow
	trades   map[string]domain.TradeFact
	episodes map[string]domain.EpisodeFact
}

// NewFactStore creates a new in-memory fact store.
func NewFactStore() *FactStore {
	return &FactStore{
		trades:   make(map[string]domain.TradeFact),
		episodes: make(map[string]domain.EpisodeFact),
	}
}

// Compile-time interface check.
var _ storage.FactStore = (*FactStore)(nil)

// InsertEvidence appends evidence rows.
func (s *FactStore) InsertEvidence(_ context.Context, rows []domain.EvidenceRow) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.UnitID == "" || r.PatternKey == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		r.Scope = domain.CloneScope(r.Scope)
		s.evidence = append(s.evidence, r)
	}
	return nil
}

// InsertTradeFact appends a trade closure. Returns ErrDuplicateKey if trade_id exists.
func (s *FactStore) InsertTradeFact(_ context.Context, f domain.TradeFact) error {
	if f.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[f.TradeID]; exists {
		return storage.ErrDuplicateKey
	}
	s.trades[f.TradeID] = f
	return nil
}

// InsertEpisodeFact appends a closed episode. Returns ErrDuplicateKey if the id exists.
func (s *FactStore) InsertEpisodeFact(_ context.Context, f domain.EpisodeFact) error {
	if f.Episode.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.episodes[f.Episode.ID]; exists {
		return storage.ErrDuplicateKey
	}
	f.Episode = *f.Episode.Clone()
	s.episodes[f.Episode.ID] = f
	return nil
}

// EvidenceSince returns evidence rows with At >= since, ordered by At ASC.
func (s *FactStore) EvidenceSince(_ context.Context, since time.Time) ([]domain.EvidenceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.EvidenceRow
	for _, r := range s.evidence {
		if !r.At.Before(since) {
			r.Scope = domain.CloneScope(r.Scope)
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].At.Before(result[j].At)
	})
	return result, nil
}

// EpisodesSince returns closed episodes with ClosedAt >= since, ordered by ClosedAt ASC.
func (s *FactStore) EpisodesSince(_ context.Context, since time.Time) ([]domain.EpisodeFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.EpisodeFact
	for _, f := range s.episodes {
		if !f.Episode.ClosedAt.Before(since) {
			f.Episode = *f.Episode.Clone()
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Episode.ClosedAt.Equal(result[j].Episode.ClosedAt) {
			return result[i].Episode.ID < result[j].Episode.ID
		}
		return result[i].Episode.ClosedAt.Before(result[j].Episode.ClosedAt)
	})
	return result, nil
}

// TradeFact returns a stored trade closure. Returns ErrNotFound if not exists.
func (s *FactStore) TradeFact(_ context.Context, tradeID string) (domain.TradeFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.trades[tradeID]
	if !exists {
		return domain.TradeFact{}, storage.ErrNotFound
	}
	return f, nil
}
