package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// Ledger serializes read-modify-write cycles per position over a store.
// A position is never processed twice concurrently.
type Ledger struct {
	store storage.PositionStore
	log   zerolog.Logger

	mu    sync.Mutex
	locks map[domain.PositionKey]*sync.Mutex
}

// New creates a ledger over store.
func New(store storage.PositionStore, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With().Str("component", "ledger").Logger(),
		locks: make(map[domain.PositionKey]*sync.Mutex),
	}
}

func (l *Ledger) lock(key domain.PositionKey) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Update loads the position, runs fn on a private copy and persists the
// result if fn succeeds. The copy is discarded on error.
func (l *Ledger) Update(ctx context.Context, key domain.PositionKey, fn func(p *domain.Position) error) error {
	unlock := l.lock(key)
	defer unlock()

	p, err := l.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load position %s: %w", key, err)
	}
	if err := fn(p); err != nil {
		return err
	}
	if err := p.CheckInvariant(); err != nil {
		l.log.Error().Err(err).Str("position", key.String()).Msg("invariant violated, not persisting")
		return err
	}
	if err := l.store.Update(ctx, p); err != nil {
		return fmt.Errorf("store position %s: %w", key, err)
	}
	return nil
}

// Open registers a new position.
func (l *Ledger) Open(ctx context.Context, p *domain.Position) error {
	if err := l.store.Insert(ctx, p); err != nil {
		return fmt.Errorf("insert position %s: %w", p.Key, err)
	}
	l.log.Info().Str("position", p.Key.String()).Float64("allocation_usd", p.AllocationUSD).Msg("position registered")
	return nil
}

// Keys lists the managed positions.
func (l *Ledger) Keys(ctx context.Context) ([]domain.PositionKey, error) {
	list, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	keys := make([]domain.PositionKey, 0, len(list))
	for _, p := range list {
		keys = append(keys, p.Key)
	}
	return keys, nil
}
