// Package replay drives the tick loop over a directory of recorded feed
// snapshots in deterministic order.
package replay

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Summary totals a replay.
type Summary struct {
	Frames         int
	From           time.Time
	To             time.Time
	Executed       int
	Suppressed     int
	Failed         int
	EpisodesClosed int
	TradesClosed   int
}

// AfterFrameFunc runs after each replayed frame. index counts from 1.
type AfterFrameFunc func(ctx context.Context, frame Frame, index int) error

// Runner replays frames through an engine.
type Runner struct {
	engine     ReplayEngine
	afterFrame AfterFrameFunc
	log        zerolog.Logger
}

// NewRunner creates a new replay runner.
func NewRunner(engine ReplayEngine, log zerolog.Logger) *Runner {
	return &Runner{
		engine: engine,
		log:    log.With().Str("component", "replay").Logger(),
	}
}

// WithAfterFrame installs a hook run after every frame. A hook error stops
// the replay.
func (r *Runner) WithAfterFrame(fn AfterFrameFunc) *Runner {
	r.afterFrame = fn
	return r
}

// Run replays frames in order. Frames must already be sorted; an
// out-of-order slice is rejected before any tick runs.
func (r *Runner) Run(ctx context.Context, frames []Frame) (*Summary, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyReplay
	}
	if err := ValidateOrdering(frames); err != nil {
		return nil, err
	}

	sum := &Summary{From: frames[0].Snapshot.At, To: frames[len(frames)-1].Snapshot.At}
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := r.engine.OnFrame(ctx, frame)
		if err != nil {
			return sum, err
		}
		sum.Frames++
		sum.Executed += res.Executed
		sum.Suppressed += res.Suppressed
		sum.Failed += res.Failed
		sum.EpisodesClosed += res.EpisodesClosed
		sum.TradesClosed += res.TradesClosed

		if r.afterFrame != nil {
			if err := r.afterFrame(ctx, frame, sum.Frames); err != nil {
				return sum, err
			}
		}

		r.log.Debug().
			Str("frame", frame.Path).
			Time("at", frame.Snapshot.At).
			Int("executed", res.Executed).
			Msg("frame replayed")
	}

	r.log.Info().
		Int("frames", sum.Frames).
		Int("executed", sum.Executed).
		Int("trades_closed", sum.TradesClosed).
		Int("failed", sum.Failed).
		Msg("replay complete")
	return sum, nil
}
