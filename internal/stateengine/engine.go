// Package stateengine classifies the trend state of a token/timeframe from
// its EMA structure and emits the state-conditional trading flags.
//
// Classify is a pure function of (previous output, indicator snapshot,
// inputs). Anything time-dependent beyond that, such as the trim cooldown
// reference, is passed in by the caller from the position's history.
package stateengine

import (
	"math"

	"trendloop/internal/config"
	"trendloop/internal/domain"
)

// Reason codes set on outputs that did not classify normally.
const (
	ReasonMissingData = "missing_data"
)

// Inputs carries per-position context the engine must not own.
type Inputs struct {
	// LastTrim is the anti-flap reference, nil when the open trade has not trimmed.
	LastTrim *domain.LastTrim

	// FirstDipConsumed is set once the S3 first-dip buy has been taken.
	FirstDipConsumed bool

	// DirectBootstrap lets a first sighting in full bullish order start in
	// S3 regardless of AllowDirectS3Bootstrap. Regime drivers set it.
	DirectBootstrap bool

	// Threshold multipliers from gating overrides; zero means 1.
	TSMultiplier  float64
	DXMultiplier  float64
	EDXMultiplier float64
}

// Engine is the trend-state finite-state machine.
type Engine struct {
	cfg config.StateConfig
}

// New creates an engine. The config is assumed validated.
func New(cfg config.StateConfig) *Engine {
	return &Engine{cfg: cfg}
}

// snapshot is the subset of features the engine reads, resolved to roles.
type snapshot struct {
	bar          int64
	price        float64
	atr          float64
	fast         [2]float64
	mid          float64
	slow         [3]float64
	slopeFast    [2]float64
	slopeMid     float64
	slopeSlowest float64
	support      float64
}

// Classify computes the next output from the previous one and a snapshot.
func (e *Engine) Classify(prev domain.StateOutput, f domain.Features, in Inputs) domain.StateOutput {
	out := domain.StateOutput{
		State:           prev.State,
		PrevState:       prev.State,
		TransitionedAt:  prev.TransitionedAt,
		TransitionedBar: prev.TransitionedBar,
		Bar:             f.Bar,
	}

	s, ok := e.read(f)
	if !ok {
		out.Missing = true
		out.Reason = ReasonMissingData
		return out
	}

	next := e.transition(prev.State, s, in.DirectBootstrap || e.cfg.AllowDirectS3Bootstrap)
	out.State = next
	if next != prev.State {
		out.TransitionedAt = f.Timestamp
		out.TransitionedBar = f.Bar
	}
	out.Scores = e.scores(next, s)
	out.Flags = e.flags(prev.State, out, s, in)
	return out
}

// Next reports the state Classify would move to from prev, without scores
// or flags. ok is false when the snapshot is unusable.
func (e *Engine) Next(prev domain.State, f domain.Features) (domain.State, bool) {
	s, ok := e.read(f)
	if !ok {
		return prev, false
	}
	return e.transition(prev, s, e.cfg.AllowDirectS3Bootstrap), true
}

// read resolves the configured EMA roles. Any absent or non-finite input
// makes the snapshot unusable.
func (e *Engine) read(f domain.Features) (snapshot, bool) {
	var s snapshot
	if !finitePositive(f.Price) || !finitePositive(f.ATR) {
		return s, false
	}
	if len(e.cfg.FastPeriods) != 2 || len(e.cfg.SlowPeriods) != 3 {
		return s, false
	}
	s.bar = f.Bar
	s.price = f.Price
	s.atr = f.ATR
	s.support = f.SupportLevel

	for i, p := range e.cfg.FastPeriods {
		v, ok := f.EMAValue(p)
		if !ok || !finite(v) {
			return s, false
		}
		s.fast[i] = v
		sl, ok := f.SlopeValue(p)
		if !ok || !finite(sl) {
			return s, false
		}
		s.slopeFast[i] = sl
	}

	mid, ok := f.EMAValue(e.cfg.MidPeriod)
	if !ok || !finite(mid) {
		return s, false
	}
	s.mid = mid
	slopeMid, ok := f.SlopeValue(e.cfg.MidPeriod)
	if !ok || !finite(slopeMid) {
		return s, false
	}
	s.slopeMid = slopeMid

	for i, p := range e.cfg.SlowPeriods {
		v, ok := f.EMAValue(p)
		if !ok || !finite(v) {
			return s, false
		}
		s.slow[i] = v
	}
	slopeSlowest, ok := f.SlopeValue(e.cfg.SlowPeriods[2])
	if !ok || !finite(slopeSlowest) {
		return s, false
	}
	s.slopeSlowest = slopeSlowest
	return s, true
}

// bearish is the full bearish order: fast band below mid below a
// descending slow stack.
func bearish(s snapshot) bool {
	return s.fast[0] < s.mid && s.fast[1] < s.mid &&
		s.mid < s.slow[0] && s.slow[0] < s.slow[1] && s.slow[1] < s.slow[2]
}

// bullish is the full bullish EMA ordering.
func bullish(s snapshot) bool {
	return s.fast[0] > s.fast[1] && s.fast[1] > s.mid &&
		s.mid > s.slow[0] && s.slow[0] > s.slow[1] && s.slow[1] > s.slow[2]
}

// reclaimed is the S0 -> S1 primer: the fast band is back above mid and
// price trades above mid.
func reclaimed(s snapshot) bool {
	return s.fast[0] > s.mid && s.fast[1] > s.mid && s.price > s.mid
}

// transition advances at most one rung per tick, except the collapse to S0.
func (e *Engine) transition(prev domain.State, s snapshot, direct bool) domain.State {
	if prev.Holding() && bearish(s) {
		return domain.StateS0
	}
	switch prev {
	case domain.StateS0:
		if reclaimed(s) {
			return domain.StateS1
		}
		return domain.StateS0
	case domain.StateS1:
		if s.price > s.slow[2] {
			return domain.StateS2
		}
		return domain.StateS1
	case domain.StateS2:
		if bullish(s) {
			return domain.StateS3
		}
		return domain.StateS2
	case domain.StateS3:
		return domain.StateS3
	default:
		// bootstrap and watch
		if bearish(s) {
			return domain.StateS0
		}
		if bullish(s) && direct {
			return domain.StateS3
		}
		return domain.StateS4
	}
}

// reference is the EMA a dip is measured against: the slowest EMA while
// defending in S2, the mid EMA once the uptrend is confirmed.
func reference(state domain.State, s snapshot) (value, slope float64) {
	if state == domain.StateS2 {
		return s.slow[2], s.slopeSlowest
	}
	return s.mid, s.slopeMid
}

func (e *Engine) scores(state domain.State, s snapshot) domain.Scores {
	c := e.cfg
	ts := c.TS.SlopeFast*unit(s.slopeFast[0], c.SlopeScale) +
		c.TS.SlopeMid*unit(s.slopeMid, c.SlopeScale) +
		c.TS.Sep*unit(s.fast[0]-s.mid, c.TS.SepATR*s.atr) +
		c.TS.Pos*unit(s.price-s.mid, c.TS.PosATR*s.atr)

	ox := c.OX.Ext*unit(s.price-s.fast[0], c.OX.ExtATR*s.atr) +
		c.OX.Sep*unit(s.fast[0]-s.mid, c.OX.SepATR*s.atr) +
		c.OX.Decel*unit(s.slopeMid-s.slopeFast[0], c.SlopeScale)

	ref, refSlope := reference(state, s)
	dx := c.DX.Prox*(1-unit(math.Abs(s.price-ref), c.DX.HaloATR*s.atr)) +
		c.DX.Slope*unit(refSlope, c.SlopeScale)

	edx := unit(ref-s.price, c.EDXATR*s.atr)

	return domain.Scores{
		TS:  clamp01(ts),
		OX:  clamp01(ox),
		DX:  clamp01(dx),
		EDX: clamp01(edx),
	}
}

func (e *Engine) flags(prev domain.State, out domain.StateOutput, s snapshot, in Inputs) domain.Flags {
	c := e.cfg
	var fl domain.Flags
	sc := out.Scores

	switch out.State {
	case domain.StateS0:
		fl.EmergencyExit = prev.Holding()

	case domain.StateS1:
		fl.BuySignal = sc.TS >= c.BuySignalTS*multiplier(in.TSMultiplier) &&
			s.slopeFast[0] >= 0 && s.slopeFast[1] >= 0

	case domain.StateS2, domain.StateS3:
		ref, _ := reference(out.State, s)
		inHalo := math.Abs(s.price-ref) <= c.DX.HaloATR*s.atr
		fl.BuyFlag = inHalo &&
			sc.DX >= c.BuyFlagDX*multiplier(in.DXMultiplier) &&
			sc.EDX < c.EDXMax*multiplier(in.EDXMultiplier)
		fl.TrimFlag = sc.OX >= c.TrimOX && e.trimAllowed(in.LastTrim, s)

		if out.State == domain.StateS3 && c.FirstDipEnabled && !in.FirstDipConsumed {
			barsInS3 := s.bar - out.TransitionedBar
			fl.FirstDipBuyFlag = barsInS3 >= 0 && barsInS3 <= c.FirstDipBars &&
				math.Abs(s.price-s.fast[0]) <= c.FirstDipATR*s.atr
		}
	}
	return fl
}

// trimAllowed is the anti-flap gate: a cooldown in bars since the last trim
// and a structural change of the nearest support level.
func (e *Engine) trimAllowed(last *domain.LastTrim, s snapshot) bool {
	if last == nil {
		return true
	}
	if s.bar-last.Bar < e.cfg.TrimCooldownBars {
		return false
	}
	if s.support <= 0 {
		return false
	}
	if last.SupportLevel <= 0 {
		return true
	}
	return math.Abs(s.support-last.SupportLevel)/last.SupportLevel > e.cfg.SupportEpsilon
}

func multiplier(m float64) float64 {
	if m <= 0 || !finite(m) {
		return 1
	}
	return m
}

// unit maps x onto [0,1] with x == scale at 1.
func unit(x, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return clamp01(x / scale)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePositive(v float64) bool {
	return finite(v) && v > 0
}
