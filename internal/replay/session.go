package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trendloop/internal/app"
	"trendloop/internal/config"
	"trendloop/internal/execution"
	"trendloop/internal/feed"
	"trendloop/internal/jobs"
	"trendloop/internal/ledger"
	"trendloop/internal/orchestrator"
)

// Session is a self-contained replay over fresh in-memory stores.
type Session struct {
	Stores *app.Stores

	runner     *Runner
	learning   *jobs.LearningJob
	learnEvery int
	clock      time.Time
}

// SessionOptions configures a session.
type SessionOptions struct {
	Config *config.Config
	Logger zerolog.Logger

	// LearnEvery runs a learning pass every N frames and after the last
	// frame, clocked at the frame time. Zero disables learning.
	LearnEvery int
}

// NewSession wires the tick loop against in-memory stores.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, func(), error) {
	if opts.Config == nil {
		return nil, nil, fmt.Errorf("replay session: config is required")
	}
	cfg := opts.Config
	log := opts.Logger

	storageCfg := cfg.Storage
	storageCfg.Backend = config.BackendMemory
	stores, cleanup, err := app.OpenStores(ctx, storageCfg, log)
	if err != nil {
		return nil, nil, err
	}

	source := feed.NewStatic()
	l := ledger.New(stores.Positions, log)
	orch, err := orchestrator.New(orchestrator.Options{
		Config:        cfg,
		Ledger:        l,
		BlockStore:    stores.Blocks,
		FactStore:     stores.Facts,
		OverrideStore: stores.Overrides,
		Features:      source,
		Drivers:       source,
		Executor:      execution.NewPaper(cfg.Tick.SlippageBps, log),
		Logger:        log,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	s := &Session{
		Stores:     stores,
		runner:     NewRunner(NewTickEngine(source, l, orch, log), log),
		learnEvery: opts.LearnEvery,
	}
	if s.learnEvery > 0 {
		s.learning = jobs.NewLearningJob(cfg, stores.Facts, stores.Lessons, stores.Overrides, log).
			WithClock(func() time.Time { return s.clock })
		s.runner.WithAfterFrame(s.afterFrame)
	}
	return s, cleanup, nil
}

func (s *Session) afterFrame(ctx context.Context, frame Frame, index int) error {
	if index%s.learnEvery != 0 {
		return nil
	}
	return s.learn(ctx, frame.Snapshot.At)
}

func (s *Session) learn(ctx context.Context, at time.Time) error {
	s.clock = at
	if _, err := s.learning.Run(ctx); err != nil {
		return fmt.Errorf("learning at %s: %w", at.Format(time.RFC3339), err)
	}
	return nil
}

// Run replays frames and, when learning is enabled, closes with a final
// learning pass if the last frame did not trigger one.
func (s *Session) Run(ctx context.Context, frames []Frame) (*Summary, error) {
	sum, err := s.runner.Run(ctx, frames)
	if err != nil {
		return sum, err
	}
	if s.learning != nil && sum.Frames%s.learnEvery != 0 {
		if err := s.learn(ctx, sum.To); err != nil {
			return sum, err
		}
	}
	return sum, nil
}
