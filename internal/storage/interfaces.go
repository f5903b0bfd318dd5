package storage

import (
	"context"
	"time"

	"trendloop/internal/domain"
)

// PositionStore persists positions together with their execution history.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if the key exists.
	Insert(ctx context.Context, p *domain.Position) error

	// Get retrieves a position by key. Returns ErrNotFound if not exists.
	Get(ctx context.Context, key domain.PositionKey) (*domain.Position, error)

	// Update replaces a stored position. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error

	// List returns all positions ordered by key.
	List(ctx context.Context) ([]*domain.Position, error)
}

// BlockStore persists episode-failure blocks per (token, chain, timeframe).
type BlockStore interface {
	// Get returns the block record for a key. A key that was never blocked
	// returns an empty record, not ErrNotFound.
	Get(ctx context.Context, key domain.PositionKey) (domain.BlockRecord, error)

	// Put replaces the block record for its key.
	Put(ctx context.Context, rec domain.BlockRecord) error
}

// FactStore is the append-only sink for evidence consumed by the miner.
type FactStore interface {
	// InsertEvidence appends evidence rows. Rows are not unique.
	InsertEvidence(ctx context.Context, rows []domain.EvidenceRow) error

	// InsertTradeFact appends a trade closure. Returns ErrDuplicateKey if trade_id exists.
	InsertTradeFact(ctx context.Context, f domain.TradeFact) error

	// InsertEpisodeFact appends a closed episode. Returns ErrDuplicateKey if the episode id exists.
	InsertEpisodeFact(ctx context.Context, f domain.EpisodeFact) error

	// EvidenceSince returns evidence rows with At >= since, ordered by At ASC.
	EvidenceSince(ctx context.Context, since time.Time) ([]domain.EvidenceRow, error)

	// EpisodesSince returns closed episodes with ClosedAt >= since, ordered by ClosedAt ASC.
	EpisodesSince(ctx context.Context, since time.Time) ([]domain.EpisodeFact, error)
}

// LessonStore persists mined lessons.
type LessonStore interface {
	// Upsert writes lessons keyed by id; a re-mined lesson replaces the old one.
	Upsert(ctx context.Context, lessons []domain.Lesson) error

	// List returns the latest version of every lesson ordered by id.
	List(ctx context.Context) ([]domain.Lesson, error)
}

// OverrideStore persists materialized overrides and serves runtime lookups.
type OverrideStore interface {
	// ReplaceGating swaps the full gating override set.
	ReplaceGating(ctx context.Context, overrides []domain.GatingOverride) error

	// ReplacePosture swaps the full posture override set.
	ReplacePosture(ctx context.Context, overrides []domain.PostureOverride) error

	// MatchingGating returns gating overrides whose scope is a subset of scope.
	MatchingGating(ctx context.Context, scope map[string]string) ([]domain.GatingOverride, error)

	// MatchingPosture returns posture overrides whose scope is a subset of scope.
	MatchingPosture(ctx context.Context, scope map[string]string) ([]domain.PostureOverride, error)
}
