// Package decision turns a state output, the A/E scores and the position's
// execution history into proposed actions.
//
// Planning is pure. The planner reads the position snapshot it is given and
// never mutates it; history changes only after the executor confirms a fill.
package decision

import (
	"fmt"

	"trendloop/internal/config"
	"trendloop/internal/domain"
	"trendloop/internal/money"
)

// Planner evaluates the sizing and gating rules.
type Planner struct {
	cfg config.DecisionConfig
}

// NewPlanner creates a planner. The config is assumed validated.
func NewPlanner(cfg config.DecisionConfig) *Planner {
	return &Planner{cfg: cfg}
}

// planState accumulates one planning call.
type planState struct {
	in     Input
	aTier  string
	eTier  string
	plan   Plan
	bought bool
}

func (s *planState) suppress(g Gate, patternKey, detail string) {
	s.plan.Suppressed = append(s.plan.Suppressed, Suppression{Gate: g, PatternKey: patternKey, Detail: detail})
}

// Plan evaluates the rules in order and returns the proposed actions.
// At most one buy is proposed per call.
func (p *Planner) Plan(in Input) Plan {
	if in.Position == nil || in.Output.Missing || in.Features.Price <= 0 {
		return Plan{}
	}

	s := &planState{
		in:    in,
		aTier: ATier(p.cfg, in.A),
		eTier: ETier(p.cfg, in.E),
	}

	if p.emergencyExit(s) {
		return s.plan
	}
	p.reclaimRebuy(s)

	switch in.Output.State {
	case domain.StateS1:
		p.s1Entry(s)
	case domain.StateS2:
		p.s2Dip(s)
		p.trim(s)
	case domain.StateS3:
		p.s3Dip(s)
		p.trim(s)
	}
	return s.plan
}

// emergencyExit proposes a full exit on the collapse tick, and on later S0
// ticks for anything still held from before the collapse. A reclaim rebuy
// opened after the collapse is held while price stays above the reclaim EMA
// and exited once it loses it again.
func (p *Planner) emergencyExit(s *planState) bool {
	out := s.in.Output
	pos := s.in.Position
	if out.State != domain.StateS0 || pos.Flat() {
		return false
	}
	flag := domain.FlagEmergencyExit
	if !out.Flags.EmergencyExit && !pos.TradeOpenedAt.Before(out.TransitionedAt) {
		ema, ok := s.in.Features.EMAValue(p.cfg.ReclaimPeriod)
		if !ok || s.in.Features.Price >= ema {
			return false
		}
		flag = domain.FlagReclaim
	}
	s.plan.Actions = append(s.plan.Actions, p.action(s,
		domain.ActionEmergencyExit, domain.SignalEmergencyExit, "",
		flag, CategoryExit, s.eTier, 1.0,
		money.Mul(s.in.Position.Quantity, s.in.Features.Price),
	))
	return true
}

// reclaimRebuy allows one fractional rebuy per emergency exit once price is
// back above the reclaim EMA.
func (p *Planner) reclaimRebuy(s *planState) {
	h := s.in.Position.History
	ee := h.EmergencyExit
	if ee == nil || !s.in.Position.Flat() {
		return
	}
	ema, ok := s.in.Features.EMAValue(p.cfg.ReclaimPeriod)
	if !ok || s.in.Features.Price <= ema {
		return
	}
	key := domain.PatternKey(s.in.Output.State, domain.FlagReclaim, CategoryEntry)
	if ee.RebuyConsumed {
		s.suppress(GateRebuyConsumed, key, "")
		return
	}
	frac := aFraction(p.cfg.Reclaim, s.aTier)
	notional := money.Min(money.Mul(ee.ExitValueUSD, frac), s.in.Position.RemainingAllocationUSD())
	p.buy(s, domain.ActionEntry, domain.SignalReclaimBuy, "", domain.FlagReclaim, CategoryEntry, frac, notional)
}

func (p *Planner) s1Entry(s *planState) {
	out := s.in.Output
	if !out.Flags.BuySignal {
		return
	}
	typ, cat := entryOrAdd(s.in.Position)
	key := domain.PatternKey(domain.StateS1, domain.FlagBuySignal, cat)

	if s.in.Block.IsBlocked(domain.EpisodeS1Entry) {
		s.suppress(GateEpisodeBlocked, key, "s1_entry blocked by "+string(s.in.Block.Blocked[domain.EpisodeS1Entry]))
		return
	}

	start := out.TransitionedAt
	if ep := s.in.Position.History.OpenEpisode(domain.EpisodeS1Entry); ep != nil {
		start = ep.StartedAt
	}
	if last, ok := s.in.Position.History.Last(domain.SignalS1Buy); ok && !last.At.Before(start) {
		s.suppress(GateOnePerEpisode, key, fmt.Sprintf("s1 buy at %s", last.At.Format("2006-01-02T15:04:05Z07:00")))
		return
	}

	frac := aFraction(p.cfg.S1Entry, s.aTier)
	notional := money.Mul(s.in.Position.RemainingAllocationUSD(), frac)
	p.buy(s, typ, domain.SignalS1Buy, domain.EpisodeS1Entry, domain.FlagBuySignal, cat, frac, notional)
}

func (p *Planner) s2Dip(s *planState) {
	if !s.in.Output.Flags.BuyFlag {
		return
	}
	pos := s.in.Position
	typ, cat := entryOrAdd(pos)
	key := domain.PatternKey(domain.StateS2, domain.FlagBuyFlag, cat)

	if s.in.Block.IsBlocked(domain.EpisodeS2Retest) {
		s.suppress(GateEpisodeBlocked, key, "s2_retest blocked by "+string(s.in.Block.Blocked[domain.EpisodeS2Retest]))
		return
	}

	if pos.Flat() {
		frac := aFraction(p.cfg.S2Entry, s.aTier)
		notional := money.Mul(pos.RemainingAllocationUSD(), frac)
		p.buy(s, typ, domain.SignalS2Buy, domain.EpisodeS2Retest, domain.FlagBuyFlag, cat, frac, notional)
		return
	}

	pool := pos.History.TrimPool
	if pool.RecoveryStarted {
		s.suppress(GatePoolRecovering, key, "")
		return
	}
	if pool.USDBasis <= 0 {
		s.suppress(GatePoolEmpty, key, "")
		return
	}
	frac := aFraction(p.cfg.S2Pool, s.aTier)
	notional := money.Min(money.Mul(pool.USDBasis, frac), pos.RemainingAllocationUSD())
	p.buy(s, typ, domain.SignalS2Buy, domain.EpisodeS2Retest, domain.FlagBuyFlag, cat, frac, notional)
}

func (p *Planner) s3Dip(s *planState) {
	fl := s.in.Output.Flags
	if !fl.BuyFlag && !fl.FirstDipBuyFlag {
		return
	}
	pos := s.in.Position
	typ, cat := entryOrAdd(pos)

	flag := domain.FlagBuyFlag
	if fl.FirstDipBuyFlag {
		flag = domain.FlagFirstDipBuy
	}
	key := domain.PatternKey(domain.StateS3, flag, cat)

	if s.in.Block.IsBlocked(domain.EpisodeS3Dip) {
		s.suppress(GateEpisodeBlocked, key, "")
		return
	}

	// Flat, or the one-shot first dip: size from remaining allocation.
	if pos.Flat() || fl.FirstDipBuyFlag {
		frac := aFraction(p.cfg.S3Entry, s.aTier)
		notional := money.Mul(pos.RemainingAllocationUSD(), frac)
		p.buy(s, typ, domain.SignalS3Buy, domain.EpisodeS3Dip, flag, cat, frac, notional)
		return
	}

	pool := pos.History.TrimPool
	ladder := pool.DX
	if ladder.BuysSinceTrim >= p.cfg.MaxDXBuys {
		s.suppress(GateLadderExhausted, key, fmt.Sprintf("%d dx buys since trim", ladder.BuysSinceTrim))
		return
	}
	if ladder.BuysSinceTrim > 0 && s.in.Features.Price > ladder.NextArmedPrice {
		s.suppress(GateLadderUnarmed, key, fmt.Sprintf("armed below %.8g", ladder.NextArmedPrice))
		return
	}
	if pool.USDBasis <= 0 {
		s.suppress(GatePoolEmpty, key, "")
		return
	}
	frac := aFraction(p.cfg.DXPool, s.aTier)
	notional := money.Min(money.Mul(pool.USDBasis, frac), pos.RemainingAllocationUSD())
	p.buy(s, typ, domain.SignalS3Buy, domain.EpisodeS3Dip, flag, cat, frac, notional)
}

func (p *Planner) trim(s *planState) {
	if !s.in.Output.Flags.TrimFlag || s.in.Position.Flat() {
		return
	}
	frac := eFraction(p.cfg.Trim, s.eTier)
	if frac <= 0 {
		return
	}
	value := money.Mul(money.Mul(s.in.Position.Quantity, s.in.Features.Price), frac)
	s.plan.Actions = append(s.plan.Actions, p.action(s,
		domain.ActionTrim, domain.SignalTrim, "",
		domain.FlagTrim, CategoryTrim, s.eTier, frac, value,
	))
}

// buy appends an entry or add unless one was already proposed this call or
// the notional is below the exchange minimum.
func (p *Planner) buy(s *planState, typ domain.ActionType, sc domain.SignalClass, ec domain.EpisodeClass, flag, category string, frac, notional float64) {
	if s.bought {
		return
	}
	if notional < p.cfg.MinNotionalUSD || notional <= 0 {
		s.suppress(GateBelowMinNotional, domain.PatternKey(s.in.Output.State, flag, category), fmt.Sprintf("notional %.2f", notional))
		return
	}
	s.bought = true
	s.plan.Actions = append(s.plan.Actions, p.action(s, typ, sc, ec, flag, category, s.aTier, frac, notional))
}

func (p *Planner) action(s *planState, typ domain.ActionType, sc domain.SignalClass, ec domain.EpisodeClass, flag, category, tier string, frac, notional float64) domain.Action {
	out := s.in.Output
	return domain.Action{
		Type:         typ,
		SignalClass:  sc,
		EpisodeClass: ec,
		SizeFraction: frac,
		NotionalUSD:  notional,
		Reason: domain.Reason{
			PatternKey: domain.PatternKey(out.State, flag, category),
			Category:   category,
			State:      out.State,
			Flag:       flag,
			Flags:      out.Flags,
			Scores:     out.Scores,
			A:          s.in.A,
			E:          s.in.E,
			Tier:       tier,
		},
	}
}

func entryOrAdd(pos *domain.Position) (domain.ActionType, string) {
	if pos.Flat() {
		return domain.ActionEntry, CategoryEntry
	}
	return domain.ActionAdd, CategoryAdd
}
