package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

func testPosition(token string) *domain.Position {
	return &domain.Position{
		Key:           domain.PositionKey{Token: token, Chain: "solana", Timeframe: "1h"},
		Ticker:        "TKN",
		Status:        domain.StatusWatchlist,
		AllocationUSD: 1000,
		UpdatedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPositionStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	t.Run("insert and get round trip", func(t *testing.T) {
		p := testPosition("tokA")
		p.History.TrimPool = domain.TrimPool{USDBasis: 100, RecoveryStarted: true}
		p.History.Episodes = map[domain.EpisodeClass]*domain.Episode{
			domain.EpisodeS1Entry: {ID: "ep-1", Class: domain.EpisodeS1Entry, Scope: map[string]string{"chain": "solana"}},
		}
		require.NoError(t, store.Insert(ctx, p))

		got, err := store.Get(ctx, p.Key)
		require.NoError(t, err)
		assert.Equal(t, p.Key, got.Key)
		assert.Equal(t, 100.0, got.History.TrimPool.USDBasis)
		assert.True(t, got.History.TrimPool.RecoveryStarted)
		require.NotNil(t, got.History.OpenEpisode(domain.EpisodeS1Entry))
		assert.Equal(t, "ep-1", got.History.OpenEpisode(domain.EpisodeS1Entry).ID)
	})

	t.Run("duplicate key", func(t *testing.T) {
		err := store.Insert(ctx, testPosition("tokA"))
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("update", func(t *testing.T) {
		p := testPosition("tokA")
		p.Status = domain.StatusActive
		p.CurrentTradeID = "trade-1"
		p.Quantity = 42
		require.NoError(t, store.Update(ctx, p))

		got, err := store.Get(ctx, p.Key)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, got.Status)
		assert.Equal(t, 42.0, got.Quantity)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Get(ctx, domain.PositionKey{Token: "missing", Chain: "solana", Timeframe: "1h"})
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.Update(ctx, testPosition("missing")), storage.ErrNotFound)
	})

	t.Run("list ordered by key", func(t *testing.T) {
		require.NoError(t, store.Insert(ctx, testPosition("tokB")))
		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "tokA", list[0].Key.Token)
		assert.Equal(t, "tokB", list[1].Key.Token)
	})
}

func TestBlockStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBlockStore(pool)
	key := domain.PositionKey{Token: "tokA", Chain: "solana", Timeframe: "1h"}

	rec, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, rec.Key)
	assert.Empty(t, rec.Blocked)

	rec.Blocked = map[domain.EpisodeClass]domain.EpisodeClass{
		domain.EpisodeS1Entry:  domain.EpisodeS1Entry,
		domain.EpisodeS2Retest: domain.EpisodeS1Entry,
	}
	rec.UpdatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, got.IsBlocked(domain.EpisodeS2Retest))
	assert.True(t, got.UpdatedAt.Equal(rec.UpdatedAt))

	rec.Blocked = nil
	require.NoError(t, store.Put(ctx, rec))
	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, got.IsBlocked(domain.EpisodeS1Entry))
}
