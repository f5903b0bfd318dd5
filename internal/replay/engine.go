package replay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"trendloop/internal/app"
	"trendloop/internal/feed"
	"trendloop/internal/ledger"
	"trendloop/internal/orchestrator"
)

// ReplayEngine processes replay frames in order.
type ReplayEngine interface {
	OnFrame(ctx context.Context, frame Frame) (*orchestrator.TickResult, error)
}

// TickEngine serves each frame through a static feed and ticks the book
// at the frame's time.
type TickEngine struct {
	source *feed.Static
	ledger *ledger.Ledger
	orch   *orchestrator.Orchestrator
	log    zerolog.Logger
}

// NewTickEngine creates an engine. source must be the feature and driver
// source the orchestrator was built with.
func NewTickEngine(source *feed.Static, l *ledger.Ledger, orch *orchestrator.Orchestrator, log zerolog.Logger) *TickEngine {
	return &TickEngine{source: source, ledger: l, orch: orch, log: log}
}

// OnFrame registers the frame's watchlist and runs one tick.
func (e *TickEngine) OnFrame(ctx context.Context, frame Frame) (*orchestrator.TickResult, error) {
	e.source.Set(frame.Snapshot)
	app.RegisterWatchlist(ctx, e.ledger, frame.Snapshot.Watchlist, frame.Snapshot.At, e.log)

	res, err := e.orch.Tick(ctx, frame.Snapshot.At)
	if err != nil {
		return nil, fmt.Errorf("tick %s: %w", frame.Path, err)
	}
	return res, nil
}
