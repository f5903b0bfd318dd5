package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// BlockStore implements storage.BlockStore using PostgreSQL.
type BlockStore struct {
	pool *Pool
}

// NewBlockStore creates a new BlockStore.
func NewBlockStore(pool *Pool) *BlockStore {
	return &BlockStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BlockStore = (*BlockStore)(nil)

// Get returns the block record for a key, empty when never blocked.
func (s *BlockStore) Get(ctx context.Context, key domain.PositionKey) (domain.BlockRecord, error) {
	query := `
		SELECT blocked, updated_at FROM episode_blocks
		WHERE chain = $1 AND token = $2 AND timeframe = $3
	`
	rec := domain.BlockRecord{Key: key}
	var blocked []byte
	err := s.pool.QueryRow(ctx, query, key.Chain, key.Token, key.Timeframe).Scan(&blocked, &rec.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return rec, nil
		}
		return domain.BlockRecord{}, fmt.Errorf("get episode blocks: %w", err)
	}
	if err := json.Unmarshal(blocked, &rec.Blocked); err != nil {
		return domain.BlockRecord{}, fmt.Errorf("decode episode blocks: %w", err)
	}
	if len(rec.Blocked) == 0 {
		rec.Blocked = nil
	}
	return rec, nil
}

// Put replaces the block record for its key.
func (s *BlockStore) Put(ctx context.Context, rec domain.BlockRecord) error {
	if rec.Key.Token == "" {
		return storage.ErrInvalidInput
	}
	blocked := rec.Blocked
	if blocked == nil {
		blocked = map[domain.EpisodeClass]domain.EpisodeClass{}
	}
	data, err := json.Marshal(blocked)
	if err != nil {
		return fmt.Errorf("encode episode blocks: %w", err)
	}

	query := `
		INSERT INTO episode_blocks (chain, token, timeframe, blocked, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain, token, timeframe)
		DO UPDATE SET blocked = EXCLUDED.blocked, updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query, rec.Key.Chain, rec.Key.Token, rec.Key.Timeframe, data, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put episode blocks: %w", err)
	}
	return nil
}
