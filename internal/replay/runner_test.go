package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/config"
	"trendloop/internal/domain"
	"trendloop/internal/execution"
	"trendloop/internal/feed"
	"trendloop/internal/ledger"
	"trendloop/internal/orchestrator"
	"trendloop/internal/storage/memory"
)

// collectingEngine records the frames it receives.
type collectingEngine struct {
	seen   []string
	failAt string
}

func (e *collectingEngine) OnFrame(_ context.Context, frame Frame) (*orchestrator.TickResult, error) {
	if frame.Path == e.failAt {
		return nil, errors.New("boom")
	}
	e.seen = append(e.seen, frame.Path)
	return &orchestrator.TickResult{Executed: 1}, nil
}

func TestRunner_ReplaysInOrder(t *testing.T) {
	engine := &collectingEngine{}
	sum, err := NewRunner(engine, zerolog.Nop()).Run(context.Background(),
		[]Frame{frameAt("a", 0), frameAt("b", 1), frameAt("c", 2)})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, engine.seen)
	assert.Equal(t, 3, sum.Frames)
	assert.Equal(t, 3, sum.Executed)
	assert.Equal(t, t0, sum.From)
	assert.Equal(t, t0.Add(2*time.Hour), sum.To)
}

func TestRunner_RejectsBeforeTicking(t *testing.T) {
	engine := &collectingEngine{}
	runner := NewRunner(engine, zerolog.Nop())

	_, err := runner.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyReplay)

	_, err = runner.Run(context.Background(), []Frame{frameAt("b", 1), frameAt("a", 0)})
	assert.ErrorIs(t, err, ErrInvalidOrdering)
	assert.Empty(t, engine.seen)
}

func TestRunner_StopsOnEngineError(t *testing.T) {
	engine := &collectingEngine{failAt: "b"}
	sum, err := NewRunner(engine, zerolog.Nop()).Run(context.Background(),
		[]Frame{frameAt("a", 0), frameAt("b", 1), frameAt("c", 2)})
	require.Error(t, err)
	assert.Equal(t, 1, sum.Frames)
	assert.Equal(t, []string{"a"}, engine.seen)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(&collectingEngine{}, zerolog.Nop()).Run(ctx, []Frame{frameAt("a", 0)})
	assert.ErrorIs(t, err, context.Canceled)
}

const mint = "So11111111111111111111111111111111111111112"

func doc(bar int64, price, atr float64, ema, slope [6]float64) feed.FeatureDoc {
	periods := [6]int{20, 30, 60, 144, 250, 333}
	d := feed.FeatureDoc{
		Token: mint, Chain: "solana", Timeframe: "1h",
		Timestamp: t0.Add(time.Duration(bar) * time.Hour),
		Bar:       bar, Price: price, ATR: atr,
		EMA: map[int]float64{}, Slope: map[int]float64{},
	}
	for i, p := range periods {
		d.EMA[p] = ema[i]
		d.Slope[p] = slope[i]
	}
	return d
}

func TestTickEngine_ReplayClosesTrade(t *testing.T) {
	dir := t.TempDir()
	watch := []feed.WatchEntry{{Token: mint, Chain: "solana", Timeframe: "1h", Ticker: "SOL", Bucket: "small", AllocationUSD: 1000}}
	bearish := func(bar int64) feed.FeatureDoc {
		return doc(bar, 75, 5, [6]float64{80, 85, 90, 100, 110, 120}, [6]float64{})
	}
	reclaim := doc(2, 110, 10, [6]float64{104, 102, 100, 120, 130, 140}, [6]float64{0.01, 0.008, 0.006, 0, 0, 0})

	writeSnapshot(t, dir, "001.json", feed.Snapshot{At: t0.Add(time.Hour), Watchlist: watch, Positions: []feed.FeatureDoc{bearish(1)}})
	writeSnapshot(t, dir, "002.json", feed.Snapshot{At: t0.Add(2 * time.Hour), Watchlist: watch, Positions: []feed.FeatureDoc{reclaim}})
	writeSnapshot(t, dir, "003.json", feed.Snapshot{At: t0.Add(3 * time.Hour), Watchlist: watch, Positions: []feed.FeatureDoc{bearish(3)}})

	frames, err := LoadDir(dir)
	require.NoError(t, err)

	log := zerolog.Nop()
	positions := memory.NewPositionStore()
	l := ledger.New(positions, log)
	source := feed.NewStatic()
	orch, err := orchestrator.New(orchestrator.Options{
		Config:        config.Default(),
		Ledger:        l,
		BlockStore:    memory.NewBlockStore(),
		FactStore:     memory.NewFactStore(),
		OverrideStore: memory.NewOverrideStore(),
		Features:      source,
		Drivers:       source,
		Executor:      execution.NewPaper(0, log),
		Logger:        log,
	})
	require.NoError(t, err)

	sum, err := NewRunner(NewTickEngine(source, l, orch, log), log).Run(context.Background(), frames)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Frames)
	assert.Equal(t, 2, sum.Executed)
	assert.Equal(t, 1, sum.TradesClosed)
	assert.Zero(t, sum.Failed)

	p, err := positions.Get(context.Background(), domain.PositionKey{Token: mint, Chain: "solana", Timeframe: "1h"})
	require.NoError(t, err)
	assert.True(t, p.Flat())
	require.Len(t, p.CompletedTrades, 1)
	assert.Less(t, p.CompletedTrades[0].PnLUSD, 0.0)
}

func TestRunner_AfterFrameHook(t *testing.T) {
	var indexes []int
	runner := NewRunner(&collectingEngine{}, zerolog.Nop()).
		WithAfterFrame(func(_ context.Context, _ Frame, index int) error {
			indexes = append(indexes, index)
			if index == 2 {
				return errors.New("stop")
			}
			return nil
		})

	sum, err := runner.Run(context.Background(), []Frame{frameAt("a", 0), frameAt("b", 1), frameAt("c", 2)})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, indexes)
	assert.Equal(t, 2, sum.Frames)
}

func TestSession_RunsWithLearning(t *testing.T) {
	ctx := context.Background()
	session, cleanup, err := NewSession(ctx, SessionOptions{Config: config.Default(), Logger: zerolog.Nop(), LearnEvery: 2})
	require.NoError(t, err)
	defer cleanup()

	watch := []feed.WatchEntry{{Token: mint, Chain: "solana", Timeframe: "1h", Bucket: "small", AllocationUSD: 1000}}
	frames := []Frame{
		{Path: "1", Snapshot: feed.Snapshot{At: t0.Add(time.Hour), Watchlist: watch,
			Positions: []feed.FeatureDoc{doc(1, 75, 5, [6]float64{80, 85, 90, 100, 110, 120}, [6]float64{})}}},
		{Path: "2", Snapshot: feed.Snapshot{At: t0.Add(2 * time.Hour), Watchlist: watch,
			Positions: []feed.FeatureDoc{doc(2, 110, 10, [6]float64{104, 102, 100, 120, 130, 140}, [6]float64{0.01, 0.008, 0.006, 0, 0, 0})}}},
		{Path: "3", Snapshot: feed.Snapshot{At: t0.Add(3 * time.Hour), Watchlist: watch,
			Positions: []feed.FeatureDoc{doc(3, 75, 5, [6]float64{80, 85, 90, 100, 110, 120}, [6]float64{})}}},
	}

	sum, err := session.Run(ctx, frames)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Frames)
	assert.Equal(t, 1, sum.TradesClosed)

	positions, err := session.Stores.Positions.List(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	_, err = session.Stores.Lessons.List(ctx)
	assert.NoError(t, err)
}

func TestNewSession_RequiresConfig(t *testing.T) {
	_, _, err := NewSession(context.Background(), SessionOptions{})
	assert.Error(t, err)
}
