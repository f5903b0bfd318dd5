package memory

import (
	"context"
	"sync"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// BlockStore is an in-memory implementation of storage.BlockStore.
type BlockStore struct {
	mu   sync.RWMutex
	data map[domain.PositionKey]domain.BlockRecord
}

// NewBlockStore creates a new in-memory block store.
func NewBlockStore() *BlockStore {
	return &BlockStore{
		data: make(map[domain.PositionKey]domain.BlockRecord),
	}
}

// Compile-time interface check.
var _ storage.BlockStore = (*BlockStore)(nil)

// Get returns the block record for key, empty if never blocked.
func (s *BlockStore) Get(_ context.Context, key domain.PositionKey) (domain.BlockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[key]
	if !exists {
		return domain.BlockRecord{Key: key}, nil
	}
	return cloneBlock(rec), nil
}

// Put replaces the block record for its key.
func (s *BlockStore) Put(_ context.Context, rec domain.BlockRecord) error {
	if rec.Key.Token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[rec.Key] = cloneBlock(rec)
	return nil
}

func cloneBlock(rec domain.BlockRecord) domain.BlockRecord {
	c := rec
	if rec.Blocked != nil {
		c.Blocked = make(map[domain.EpisodeClass]domain.EpisodeClass, len(rec.Blocked))
		for k, v := range rec.Blocked {
			c.Blocked[k] = v
		}
	}
	return c
}
