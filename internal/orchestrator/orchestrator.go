// Package orchestrator runs the per-tick loop over managed positions.
// It coordinates: drivers → state → episodes → regime → plan → execution → write-back
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trendloop/internal/config"
	"trendloop/internal/decision"
	"trendloop/internal/domain"
	"trendloop/internal/episode"
	"trendloop/internal/execution"
	"trendloop/internal/ledger"
	"trendloop/internal/observability"
	"trendloop/internal/overrides"
	"trendloop/internal/regime"
	"trendloop/internal/stateengine"
	"trendloop/internal/storage"
)

// FeatureSource supplies the indicator snapshot of one position.
type FeatureSource interface {
	Features(ctx context.Context, key domain.PositionKey) (domain.Features, error)
}

// DriverSource supplies the raw regime driver features of one tick.
type DriverSource interface {
	Drivers(ctx context.Context, at time.Time) (domain.RegimeFeatures, error)
}

// Executor turns orders into confirmed fills.
type Executor interface {
	Execute(ctx context.Context, o execution.Order) (ledger.Fill, error)
}

// Orchestrator coordinates one tick across all positions.
type Orchestrator struct {
	cfg *config.Config

	ledger    *ledger.Ledger
	blocks    storage.BlockStore
	facts     storage.FactStore
	overrides storage.OverrideStore

	features FeatureSource
	drivers  DriverSource
	executor Executor

	engine   *stateengine.Engine
	regime   *regime.Aggregator
	planner  *decision.Planner
	recorder *episode.Recorder
	applier  *overrides.Applier

	log zerolog.Logger

	// tickMu serializes ticks; driverStates is only touched under it.
	tickMu       sync.Mutex
	driverStates map[string]domain.StateOutput
}

// Options for creating Orchestrator.
type Options struct {
	Config *config.Config

	// Required stores
	Ledger        *ledger.Ledger
	BlockStore    storage.BlockStore
	FactStore     storage.FactStore
	OverrideStore storage.OverrideStore

	// External boundaries
	Features FeatureSource
	Drivers  DriverSource
	Executor Executor

	Logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("orchestrator: config is required")
	case opts.Ledger == nil || opts.BlockStore == nil || opts.FactStore == nil || opts.OverrideStore == nil:
		return nil, errors.New("orchestrator: ledger and stores are required")
	case opts.Features == nil || opts.Drivers == nil || opts.Executor == nil:
		return nil, errors.New("orchestrator: feature source, driver source and executor are required")
	}

	agg, err := regime.New(opts.Config.Regime)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return &Orchestrator{
		cfg:          opts.Config,
		ledger:       opts.Ledger,
		blocks:       opts.BlockStore,
		facts:        opts.FactStore,
		overrides:    opts.OverrideStore,
		features:     opts.Features,
		drivers:      opts.Drivers,
		executor:     opts.Executor,
		engine:       stateengine.New(opts.Config.State),
		regime:       agg,
		planner:      decision.NewPlanner(opts.Config.Decision),
		recorder:     episode.New(opts.Config.Episode, opts.Logger),
		applier:      overrides.NewApplier(opts.Config.Overrides),
		log:          opts.Logger.With().Str("component", "orchestrator").Logger(),
		driverStates: make(map[string]domain.StateOutput),
	}, nil
}

// TickResult contains counters of one tick.
type TickResult struct {
	Positions      int
	Failed         int
	Proposed       int
	Executed       int
	Suppressed     int
	EpisodesClosed int
	TradesClosed   int
}

// Tick processes every managed position once. Per-position failures are
// logged and counted; only listing positions or a cancelled context fails
// the tick.
func (o *Orchestrator) Tick(ctx context.Context, at time.Time) (*TickResult, error) {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()

	start := time.Now()
	result := &TickResult{}

	keys, err := o.ledger.Keys(ctx)
	if err != nil {
		observability.RecordTick("error", time.Since(start), at)
		return nil, fmt.Errorf("tick: %w", err)
	}
	result.Positions = len(keys)

	snap := o.snapshot(ctx, at)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Tick.Workers)
	for _, key := range keys {
		g.Go(func() error {
			res, err := o.process(gctx, key, snap, at)

			mu.Lock()
			defer mu.Unlock()
			result.Proposed += res.proposed
			result.Executed += res.executed
			result.Suppressed += res.suppressed
			result.EpisodesClosed += res.episodesClosed
			result.TradesClosed += res.tradesClosed
			if err != nil {
				result.Failed++
				o.log.Error().Err(err).Str("position", key.String()).Msg("position failed")
			} else {
				observability.RecordPositionProcessed()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		observability.RecordTick("cancelled", time.Since(start), at)
		return result, err
	}

	status := "ok"
	if result.Failed > 0 {
		status = "partial"
	}
	observability.RecordTick(status, time.Since(start), at)
	o.log.Info().
		Time("at", at).
		Int("positions", result.Positions).
		Int("failed", result.Failed).
		Int("executed", result.Executed).
		Int("suppressed", result.Suppressed).
		Dur("took", time.Since(start)).
		Msg("tick complete")
	return result, nil
}

type positionResult struct {
	proposed       int
	executed       int
	suppressed     int
	episodesClosed int
	tradesClosed   int
}

// process runs one position under the ledger's keyed lock. Errors before
// execution discard the tick for the position; after the first fill the
// write-back always persists.
func (o *Orchestrator) process(ctx context.Context, key domain.PositionKey, snap domain.RegimeSnapshot, at time.Time) (positionResult, error) {
	var res positionResult

	f, err := o.features.Features(ctx, key)
	if err != nil {
		observability.RecordPositionError("features")
		return res, fmt.Errorf("features: %w", err)
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = at
	}

	err = o.ledger.Update(ctx, key, func(p *domain.Position) error {
		log := o.log.With().Str("position", key.String()).Logger()

		// Regime, posture-adjusted.
		aBase, eBase := o.regime.Compute(regime.Context{
			Bucket:        p.Instrument.Bucket,
			ExecTimeframe: key.Timeframe,
			Instrument:    p.Instrument,
			Snapshot:      snap,
		})
		lookup := o.scope(p, aBase, eBase)
		posture, err := o.overrides.MatchingPosture(ctx, lookup)
		if err != nil {
			observability.RecordPositionError("overrides")
			log.Warn().Err(err).Msg("posture overrides unavailable")
		}
		a := o.applier.Posture(posture, domain.PostureA, aBase, lookup)
		e := o.applier.Posture(posture, domain.PostureE, eBase, lookup)
		scope := o.scope(p, a, e)

		// State.
		prev := p.LastOutput
		out := o.engine.Classify(prev, f, o.inputs(ctx, p, f, scope, log))
		if out.Transitioned() {
			observability.RecordTransition(string(prev.State), string(out.State))
			log.Info().Str("from", string(prev.State)).Str("to", string(out.State)).Msg("state transition")
		}
		if out.Missing {
			log.Debug().Str("reason", out.Reason).Msg("missing data")
		}
		ledger.MarkState(p, out)
		ledger.MarkPrice(p, f.Price)

		// Episodes and blocks.
		closed := o.recorder.Observe(p, episode.Observation{
			Output:   out,
			Features: f,
			A:        a,
			E:        e,
			Scope:    scope,
		})
		block, err := o.blocks.Get(ctx, key)
		if err != nil {
			observability.RecordPositionError("blocks")
			return fmt.Errorf("load blocks: %w", err)
		}
		if len(closed) > 0 {
			if err := o.exportEpisodes(ctx, closed); err != nil {
				observability.RecordPositionError("facts")
				return err
			}
			if episode.ApplyBlocks(&block, closed, at) {
				block.Key = key
				if err := o.blocks.Put(ctx, block); err != nil {
					observability.RecordPositionError("blocks")
					return fmt.Errorf("store blocks: %w", err)
				}
			}
			res.episodesClosed = len(closed)
		}

		// Plan.
		plan := o.planner.Plan(decision.Input{
			Output:   out,
			Features: f,
			A:        a,
			E:        e,
			Position: p,
			Block:    block,
		})
		for _, s := range plan.Suppressed {
			observability.RecordSuppressed(string(s.Gate))
			log.Debug().Str("gate", string(s.Gate)).Str("pattern", s.PatternKey).Str("detail", s.Detail).Msg("signal suppressed")
		}
		res.suppressed = len(plan.Suppressed)
		res.proposed = len(plan.Actions)

		// Execute and write back confirmed fills only.
		var exitKey string
		for _, act := range plan.Actions {
			observability.RecordActionProposed(string(act.Type))
			order := execution.Order{Key: key, Action: act, At: at, Price: f.Price}
			if act.Buy() {
				order.NotionalUSD = act.NotionalUSD
			} else {
				order.Quantity = p.Quantity * act.SizeFraction
			}

			fill, err := o.executor.Execute(ctx, order)
			if err != nil {
				observability.RecordActionExecuted(string(act.Type), "failed")
				log.Warn().Err(err).Str("action", string(act.Type)).Str("pattern", act.Reason.PatternKey).Msg("execution failed")
				continue
			}
			if err := ledger.Apply(p, act, fill, ledger.Context{
				Bar:          f.Bar,
				ATR:          f.ATR,
				SupportLevel: f.SupportLevel,
				DXArmATR:     o.cfg.Decision.DXArmATR,
				Scope:        scope,
			}); err != nil {
				observability.RecordActionExecuted(string(act.Type), "rejected")
				log.Error().Err(err).Str("action", string(act.Type)).Msg("fill not applied")
				continue
			}
			observability.RecordActionExecuted(string(act.Type), "filled")
			res.executed++
			if act.Buy() && act.EpisodeClass != "" {
				o.recorder.MarkEntered(p, act.EpisodeClass)
			}
			if act.Type == domain.ActionEmergencyExit {
				exitKey = act.Reason.PatternKey
			}
			log.Info().
				Str("action", string(act.Type)).
				Str("pattern", act.Reason.PatternKey).
				Float64("price", fill.Price).
				Float64("quantity", fill.Quantity).
				Float64("notional_usd", fill.NotionalUSD).
				Msg("action executed")
		}

		// Trade closure.
		if out.State == domain.StateS0 && p.CurrentTradeID != "" && p.Flat() {
			fact, err := ledger.CloseTrade(p, at, out.State, exitKey)
			if err != nil {
				log.Error().Err(err).Msg("close trade failed")
			} else {
				res.tradesClosed++
				o.exportTrade(ctx, fact, log)
			}
		}

		p.UpdatedAt = at
		return nil
	})
	return res, err
}

// scope is the context recorded on evidence and matched by overrides.
func (o *Orchestrator) scope(p *domain.Position, a, e float64) map[string]string {
	s := map[string]string{
		domain.ScopeChain:     p.Key.Chain,
		domain.ScopeTimeframe: p.Key.Timeframe,
		domain.ScopeATier:     decision.ATier(o.cfg.Decision, a),
		domain.ScopeETier:     decision.ETier(o.cfg.Decision, e),
	}
	if p.Instrument.Bucket != "" {
		s[domain.ScopeBucket] = p.Instrument.Bucket
	}
	return s
}

// inputs resolves the classifier inputs carried by the position, including
// gating multipliers for the dip pattern of the state this tick lands in.
func (o *Orchestrator) inputs(ctx context.Context, p *domain.Position, f domain.Features, scope map[string]string, log zerolog.Logger) stateengine.Inputs {
	prev := p.LastOutput
	in := stateengine.Inputs{LastTrim: p.History.LastTrim}
	if last, ok := p.History.Last(domain.SignalS3Buy); ok && prev.State == domain.StateS3 && !last.At.Before(prev.TransitionedAt) {
		in.FirstDipConsumed = true
	}

	gating, err := o.overrides.MatchingGating(ctx, scope)
	if err != nil {
		observability.RecordPositionError("overrides")
		log.Warn().Err(err).Msg("gating overrides unavailable")
		return in
	}
	if len(gating) == 0 {
		return in
	}

	s1 := o.applier.Gating(gating, domain.EpisodeS1Entry.PatternKey(), decision.CategoryEntry, scope)
	in.TSMultiplier = s1[domain.ThresholdTS]

	next, _ := o.engine.Next(prev.State, f)
	var dip domain.EpisodeClass
	switch next {
	case domain.StateS2:
		dip = domain.EpisodeS2Retest
	case domain.StateS3:
		dip = domain.EpisodeS3Dip
	default:
		return in
	}
	dx := o.applier.Gating(gating, dip.PatternKey(), decision.CategoryEntry, scope)
	in.DXMultiplier = dx[domain.ThresholdDX]
	in.EDXMultiplier = dx[domain.ThresholdEDX]
	return in
}

func (o *Orchestrator) exportEpisodes(ctx context.Context, closed []domain.Episode) error {
	for _, ep := range closed {
		observability.RecordEpisodeClosed(string(ep.Class), string(ep.Outcome))
		fact, rows := o.recorder.ExportEpisode(ep)
		if err := o.facts.InsertEpisodeFact(ctx, fact); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return fmt.Errorf("export episode %s: %w", ep.ID, err)
		}
		if err := o.facts.InsertEvidence(ctx, rows); err != nil {
			return fmt.Errorf("export episode evidence %s: %w", ep.ID, err)
		}
	}
	return nil
}

// exportTrade runs after fills were applied, so failures are logged rather
// than discarding the write-back.
func (o *Orchestrator) exportTrade(ctx context.Context, fact domain.TradeFact, log zerolog.Logger) {
	if err := o.facts.InsertTradeFact(ctx, fact); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordPositionError("facts")
			log.Error().Err(err).Str("trade_id", fact.TradeID).Msg("export trade failed")
		}
		return
	}
	if rows := episode.ExportTrade(fact); len(rows) > 0 {
		if err := o.facts.InsertEvidence(ctx, rows); err != nil {
			observability.RecordPositionError("facts")
			log.Error().Err(err).Str("trade_id", fact.TradeID).Msg("export trade evidence failed")
			return
		}
	}
	log.Info().
		Str("trade_id", fact.TradeID).
		Float64("pnl_usd", fact.Summary.PnLUSD).
		Float64("rr", fact.Summary.RR).
		Msg("trade closed")
}
