package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/domain"
	"trendloop/internal/logging"
)

const sample = `{
  "at": "2026-03-01T00:00:00Z",
  "watchlist": [
    {"token": "So11111111111111111111111111111111111111112", "chain": "solana", "timeframe": "1h",
     "ticker": "SOL", "kind": "crypto", "bucket": "large", "allocation_usd": 1000}
  ],
  "positions": [
    {"token": "So11111111111111111111111111111111111111112", "chain": "solana", "timeframe": "1h",
     "timestamp": "2026-03-01T00:00:00Z", "bar": 42, "price": 110, "atr": 10,
     "ema": {"20": 104, "30": 102, "60": 100, "144": 120, "250": 130, "333": 140},
     "slope": {"20": 0.01, "30": 0.008, "60": 0.006}}
  ],
  "drivers": {
    "btc": {"macro": {"price": 60000, "atr": 900, "ema": {"20": 59000}, "slope": {"20": 0.001}}}
  },
  "buckets": {
    "large": {"meso": {"price": 1, "atr": 0.1, "ema": {"20": 1}, "slope": {"20": 0}}}
  },
  "intent": {"buys": 2, "sells": 1, "mocks": 0},
  "ordering": {"large": {"rank": 0.2, "slope": 0.5, "confidence": 0.8}}
}`

var sol = domain.PositionKey{Token: "So11111111111111111111111111111111111111112", Chain: "solana", Timeframe: "1h"}

func writeFeed(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFile_ServesFeaturesAndDrivers(t *testing.T) {
	path := writeFeed(t, t.TempDir(), sample)
	f := NewFile(path, logging.Nop())
	ctx := context.Background()

	raw, err := f.Drivers(ctx, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 60000, raw.Drivers[domain.DriverBTC][domain.RegimeMacro].Price, 1e-9)
	assert.InDelta(t, 1, raw.Buckets["large"][domain.RegimeMeso].Price, 1e-9)
	assert.Equal(t, 2, raw.Intent.Buys)
	assert.InDelta(t, 0.8, raw.Ordering["large"].Confidence, 1e-9)

	feat, err := f.Features(ctx, sol)
	require.NoError(t, err)
	assert.Equal(t, int64(42), feat.Bar)
	assert.InDelta(t, 104, feat.EMA[20], 1e-9)
	assert.InDelta(t, 0.006, feat.Slope[60], 1e-9)

	wl := f.Watchlist()
	require.Len(t, wl, 1)
	assert.Equal(t, sol, wl[0].Key())
	assert.Equal(t, domain.InstrumentCrypto, wl[0].Kind)
}

func TestFile_UnknownPosition(t *testing.T) {
	path := writeFeed(t, t.TempDir(), sample)
	f := NewFile(path, logging.Nop())
	require.NoError(t, f.Refresh(context.Background()))

	_, err := f.Features(context.Background(), domain.PositionKey{Token: "x", Chain: "solana", Timeframe: "4h"})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFile_NeverLoaded(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"), logging.Nop())
	_, err := f.Drivers(context.Background(), time.Time{})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFile_BadRewriteKeepsLastSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeFeed(t, dir, sample)
	f := NewFile(path, logging.Nop())
	require.NoError(t, f.Refresh(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	assert.Error(t, f.Refresh(context.Background()))
	_, err := f.Features(context.Background(), sol)
	assert.NoError(t, err)
}

func TestParse_RequiresIdentity(t *testing.T) {
	_, err := Parse([]byte(`{"positions": [{"token": "x", "chain": "solana"}]}`))
	assert.Error(t, err)
}

func TestStatic_SetReplacesSnapshot(t *testing.T) {
	s := NewStatic()
	ctx := context.Background()

	_, err := s.Drivers(ctx, time.Time{})
	assert.ErrorIs(t, err, ErrNoData)

	snap, err := Parse([]byte(sample))
	require.NoError(t, err)
	s.Set(snap)
	_, err = s.Features(ctx, sol)
	require.NoError(t, err)

	s.Set(Snapshot{})
	_, err = s.Features(ctx, sol)
	assert.ErrorIs(t, err, ErrNoData)
	_, err = s.Drivers(ctx, time.Time{})
	assert.NoError(t, err)
}
