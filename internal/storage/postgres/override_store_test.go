package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/domain"
)

func TestOverrideStore_ContainmentMatching(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOverrideStore(pool)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	gating := []domain.GatingOverride{
		{ID: "g-global", PatternKey: "S1.buy_signal.entry", Category: "entry", Scope: nil,
			Multipliers: map[string]float64{domain.ThresholdTS: 0.9}, CreatedAt: at},
		{ID: "g-1h", PatternKey: "S1.buy_signal.entry", Category: "entry", Scope: map[string]string{"timeframe": "1h"},
			Multipliers: map[string]float64{domain.ThresholdTS: 0.95}, CreatedAt: at},
		{ID: "g-4h", PatternKey: "S1.buy_signal.entry", Category: "entry", Scope: map[string]string{"timeframe": "4h"},
			Multipliers: map[string]float64{domain.ThresholdTS: 1.1}, CreatedAt: at},
	}
	require.NoError(t, store.ReplaceGating(ctx, gating))

	got, err := store.MatchingGating(ctx, map[string]string{"timeframe": "1h", "chain": "solana"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g-1h", got[0].ID)
	assert.Equal(t, "g-global", got[1].ID)
	assert.Equal(t, 0.95, got[0].Multipliers[domain.ThresholdTS])

	// Replace drops the old set.
	require.NoError(t, store.ReplaceGating(ctx, gating[2:]))
	got, err = store.MatchingGating(ctx, map[string]string{"timeframe": "1h"})
	require.NoError(t, err)
	assert.Empty(t, got)

	posture := []domain.PostureOverride{
		{ID: "p-1", Target: domain.PostureA, Scope: map[string]string{"bucket": "small"}, Direction: 0.5, Confidence: 0.8, CreatedAt: at},
	}
	require.NoError(t, store.ReplacePosture(ctx, posture))
	pgot, err := store.MatchingPosture(ctx, map[string]string{"bucket": "small", "timeframe": "1h"})
	require.NoError(t, err)
	require.Len(t, pgot, 1)
	assert.Equal(t, domain.PostureA, pgot[0].Target)
	assert.Equal(t, 0.5, pgot[0].Direction)

	pgot, err = store.MatchingPosture(ctx, map[string]string{"bucket": "large"})
	require.NoError(t, err)
	assert.Empty(t, pgot)
}
