// Package regime reduces per-driver, per-horizon state outputs into the
// A (aggressiveness) and E (exitness) base scores of one position.
package regime

import (
	"fmt"
	"math"
	"strings"

	"trendloop/internal/config"
	"trendloop/internal/domain"
)

// Method names accepted by config.
const (
	MethodDeltaTable = "delta_table"
	MethodFlagOnly   = "flag_only"
)

// Neutral is the base returned when no regime information applies.
const Neutral = 0.5

// Context is everything the aggregator needs for one position.
type Context struct {
	Bucket        string
	ExecTimeframe string
	Instrument    domain.Instrument
	Snapshot      domain.RegimeSnapshot
}

// Method sums driver contributions onto the neutral base. Implementations
// return unclamped deltas; the aggregator owns clamping and adjustments.
type Method interface {
	Name() string
	Deltas(c Context) (dA, dE float64)
}

// Aggregator computes A_base and E_base.
type Aggregator struct {
	cfg    config.RegimeConfig
	method Method
}

// New builds the aggregator with the configured method.
func New(cfg config.RegimeConfig) (*Aggregator, error) {
	var m Method
	switch cfg.Method {
	case MethodDeltaTable, "":
		m = &deltaTable{cfg: cfg}
	case MethodFlagOnly:
		m = &flagOnly{cfg: cfg}
	default:
		return nil, fmt.Errorf("unknown regime method %q", cfg.Method)
	}
	return &Aggregator{cfg: cfg, method: m}, nil
}

// Method returns the active method name.
func (a *Aggregator) Method() string {
	return a.method.Name()
}

// Compute returns (A_base, E_base), both in [0,1].
func (a *Aggregator) Compute(c Context) (float64, float64) {
	if c.Instrument.NeutralRegime {
		return Neutral, Neutral
	}

	dA, dE := a.method.Deltas(c)
	intent := IntentDelta(a.cfg.Intent, c.Snapshot.Intent)

	aBase := clamp01(Neutral + dA + intent)
	eBase := clamp01(Neutral + dE - intent)

	if a.method.Name() == MethodDeltaTable {
		m := OrderingMultiplier(a.cfg.Ordering, c.Snapshot.Ordering[c.Bucket])
		aBase = clamp01(aBase * m)
		eBase = clamp01(eBase / m)
	}
	return aBase, eBase
}

// IntentDelta is the linear intent term, capped symmetrically. It is added
// to A and subtracted from E.
func IntentDelta(cfg config.IntentConfig, n domain.IntentCounts) float64 {
	d := cfg.BuyWeight*float64(n.Buys) - cfg.SellWeight*float64(n.Sells) + cfg.MockWeight*float64(n.Mocks)
	return clamp(d, -cfg.Cap, cfg.Cap)
}

// OrderingMultiplier maps the bucket's rank and rank momentum to a
// multiplier inside [MinMult, MaxMult]. A leading bucket (rank 0) with
// rising momentum scales A up and E down.
func OrderingMultiplier(cfg config.OrderingConfig, o domain.BucketOrdering) float64 {
	conf := clamp01(o.Confidence)
	if conf == 0 {
		return 1
	}
	raw := 1 + conf*(cfg.RankWeight*(1-2*clamp01(o.Rank))+cfg.SlopeWeight*clamp(o.Slope, -1, 1))
	m := clamp(raw, cfg.MinMult, cfg.MaxMult)
	if m <= 0 {
		return 1
	}
	return m
}

// deltaTable is the weighted state/flag/transition table method.
type deltaTable struct {
	cfg config.RegimeConfig
}

func (d *deltaTable) Name() string { return MethodDeltaTable }

func (d *deltaTable) Deltas(c Context) (float64, float64) {
	var sumA, sumE float64
	execMult := d.cfg.ExecMultipliers[c.ExecTimeframe]
	for _, drv := range domain.Drivers {
		dw := d.cfg.DriverWeights[string(drv)]
		for _, tf := range domain.RegimeTimeframes {
			out, ok := c.Snapshot.Output(drv, c.Bucket, tf)
			if !ok || out.Missing {
				continue
			}
			w := dw * d.cfg.TimeframeWeights[string(tf)] * execWeight(execMult, tf)
			if w == 0 {
				continue
			}

			key := stateKey(out.State)
			a := d.cfg.StateDeltaA[key]
			e := d.cfg.StateDeltaE[key]
			for _, f := range out.Flags.Active() {
				a += d.cfg.FlagDeltaA[f]
				e += d.cfg.FlagDeltaE[f]
			}
			if out.CollapsedToS0() {
				a += d.cfg.TransitionDeltaA
				e += d.cfg.TransitionDeltaE
			}
			sumA += a * w
			sumE += e * w
		}
	}
	return sumA, sumE
}

// flagOnly adds a fixed effect per active flag per driver, signed by the
// driver's direction, with no state term.
type flagOnly struct {
	cfg config.RegimeConfig
}

func (f *flagOnly) Name() string { return MethodFlagOnly }

func (f *flagOnly) Deltas(c Context) (float64, float64) {
	var sumA, sumE float64
	for _, drv := range domain.Drivers {
		sign := sign(f.cfg.DriverWeights[string(drv)])
		if sign == 0 {
			continue
		}
		for _, tf := range domain.RegimeTimeframes {
			out, ok := c.Snapshot.Output(drv, c.Bucket, tf)
			if !ok || out.Missing {
				continue
			}
			for _, fl := range out.Flags.Active() {
				sumA += sign * f.cfg.FlagOnlyEffectA[fl]
				sumE += sign * f.cfg.FlagOnlyEffectE[fl]
			}
		}
	}
	return sumA, sumE
}

// execWeight defaults to 1 when the execution timeframe has no table.
func execWeight(m map[string]float64, tf domain.RegimeTimeframe) float64 {
	if m == nil {
		return 1
	}
	w, ok := m[string(tf)]
	if !ok {
		return 1
	}
	return w
}

func stateKey(s domain.State) string {
	return strings.ToLower(s.String())
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
