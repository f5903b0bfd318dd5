package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/config"
	"trendloop/internal/domain"
	"trendloop/internal/feed"
	"trendloop/internal/ledger"
	"trendloop/internal/logging"
)

func TestRegisterWatchlist(t *testing.T) {
	ctx := context.Background()
	stores, cleanup, err := OpenStores(ctx, config.StorageConfig{Backend: config.BackendMemory}, logging.Nop())
	require.NoError(t, err)
	defer cleanup()

	l := ledger.New(stores.Positions, logging.Nop())
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []feed.WatchEntry{
		{Token: "So11111111111111111111111111111111111111112", Chain: "solana", Timeframe: "1h", Ticker: "SOL", Bucket: "large", AllocationUSD: 1000},
		{Token: "0xabc", Chain: "base", Timeframe: "1h", AllocationUSD: 1000},
		{Token: "AAPL", Chain: "nasdaq", Timeframe: "1d", Kind: domain.InstrumentEquity, AllocationUSD: 500},
	}

	assert.Equal(t, 2, RegisterWatchlist(ctx, l, entries, now, logging.Nop()))
	// Re-registering is a no-op.
	assert.Equal(t, 0, RegisterWatchlist(ctx, l, entries, now, logging.Nop()))

	keys, err := l.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	p, err := stores.Positions.Get(ctx, entries[2].Key())
	require.NoError(t, err)
	assert.True(t, p.Instrument.NeutralRegime)

	p, err = stores.Positions.Get(ctx, entries[0].Key())
	require.NoError(t, err)
	assert.Equal(t, domain.InstrumentCrypto, p.Instrument.Kind)
	assert.False(t, p.Instrument.NeutralRegime)
}

func TestOpenLocker_NoRedis(t *testing.T) {
	locker, cleanup, err := OpenLocker(context.Background(), config.StorageConfig{}, logging.Nop())
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, locker)
}
