// Package overrides turns significant lessons into scoped overrides and
// applies them at decision time.
package overrides

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trendloop/internal/config"
	"trendloop/internal/domain"
	"trendloop/internal/idhash"
)

// Materializer converts lessons into override candidates.
type Materializer struct {
	cfg   config.OverridesConfig
	state config.StateConfig
	log   zerolog.Logger
}

// NewMaterializer creates a materializer. Base thresholds come from the
// state engine config the overrides multiply.
func NewMaterializer(cfg config.OverridesConfig, state config.StateConfig, log zerolog.Logger) *Materializer {
	return &Materializer{cfg: cfg, state: state, log: log.With().Str("component", "materializer").Logger()}
}

// candidate is one threshold adjustment under evaluation.
type candidate struct {
	mults   map[string]float64
	benefit int
	cost    int
}

func (c candidate) ratio() float64 {
	if c.cost == 0 {
		if c.benefit == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return float64(c.benefit) / float64(c.cost)
}

// Materialize returns the gating and posture overrides the lessons support.
// A lesson without a candidate clearing the bar produces nothing.
func (m *Materializer) Materialize(lessons []domain.Lesson, episodes []domain.EpisodeFact, now time.Time) ([]domain.GatingOverride, []domain.PostureOverride) {
	var gating []domain.GatingOverride
	var posture []domain.PostureOverride
	for _, l := range lessons {
		if math.Abs(l.Edge) < m.cfg.Significance {
			continue
		}
		switch l.Kind {
		case domain.LessonGating:
			if o, ok := m.gating(l, episodes, now); ok {
				gating = append(gating, o)
			}
		case domain.LessonPosture:
			posture = append(posture, m.posture(l, now))
		}
	}
	m.log.Info().
		Int("lessons", len(lessons)).
		Int("gating", len(gating)).
		Int("posture", len(posture)).
		Msg("materialization complete")
	return gating, posture
}

func (m *Materializer) gating(l domain.Lesson, episodes []domain.EpisodeFact, now time.Time) (domain.GatingOverride, bool) {
	state := patternState(l.PatternKey)
	thresholds := thresholdsFor(state)
	if len(thresholds) == 0 {
		return domain.GatingOverride{}, false
	}

	var set []domain.Episode
	for _, f := range episodes {
		if f.PatternKey == l.PatternKey && f.Category == l.Category &&
			f.Episode.StateBars > 0 && domain.ScopeContains(f.Episode.Scope, l.Scope) {
			set = append(set, f.Episode)
		}
	}

	// Positive edge means the pattern pays off more than baseline: loosen.
	loosen := l.Edge > 0
	var best candidate
	found := false
	for _, mults := range m.grid(thresholds, loosen) {
		c := candidate{mults: mults}
		for _, ep := range set {
			before := m.fires(state, ep, nil)
			after := m.fires(state, ep, mults)
			switch {
			case after && !before && ep.TargetReached:
				c.benefit++
			case after && !before:
				c.cost++
			case before && !after && !ep.TargetReached:
				c.benefit++
			case before && !after:
				c.cost++
			}
		}
		if c.benefit < m.cfg.MinBenefit || c.ratio() < m.cfg.MinRatio {
			continue
		}
		if !found || better(c, best) {
			best, found = c, true
		}
	}

	if !found {
		m.log.Info().
			Str("lesson_id", l.ID).
			Str("pattern_key", l.PatternKey).
			Str("scope", domain.CanonicalScope(l.Scope)).
			Int("episodes", len(set)).
			Msg("no action - insufficient evidence")
		return domain.GatingOverride{}, false
	}

	ratio := best.ratio()
	if math.IsInf(ratio, 1) {
		ratio = float64(best.benefit)
	}
	return domain.GatingOverride{
		ID:          idhash.ComputeOverrideID(string(domain.LessonGating), l.ID, canonicalMults(best.mults)),
		LessonID:    l.ID,
		PatternKey:  l.PatternKey,
		Category:    l.Category,
		Scope:       domain.CloneScope(l.Scope),
		Multipliers: best.mults,
		Benefit:     best.benefit,
		Cost:        best.cost,
		Ratio:       ratio,
		Confidence:  clamp(l.Reliability*l.Support, 0, 1),
		CreatedAt:   now,
	}, true
}

func (m *Materializer) posture(l domain.Lesson, now time.Time) domain.PostureOverride {
	target := domain.PostureA
	if l.Category == "trim" || l.Category == "exit" {
		target = domain.PostureE
	}
	dir := 0.0
	if m.cfg.EdgeScale > 0 {
		dir = clamp(l.Edge/m.cfg.EdgeScale, -1, 1)
	}
	return domain.PostureOverride{
		ID:         idhash.ComputeOverrideID(string(domain.LessonPosture), l.ID, string(target)),
		LessonID:   l.ID,
		PatternKey: l.PatternKey,
		Category:   l.Category,
		Target:     target,
		Scope:      domain.CloneScope(l.Scope),
		Direction:  dir,
		Confidence: clamp(l.Reliability*l.Support, 0, 1),
		CreatedAt:  now,
	}
}

// grid enumerates multiplier assignments over up to MaxCombo thresholds,
// keeping only multipliers that move each threshold the requested way.
func (m *Materializer) grid(thresholds []string, loosen bool) []map[string]float64 {
	options := make(map[string][]float64, len(thresholds))
	for _, th := range thresholds {
		for _, g := range m.cfg.GridMultipliers {
			if g == 1 || loosens(th, g) != loosen {
				continue
			}
			options[th] = append(options[th], g)
		}
	}

	var out []map[string]float64
	var walk func(i int, cur map[string]float64)
	walk = func(i int, cur map[string]float64) {
		if i == len(thresholds) {
			if len(cur) > 0 {
				c := make(map[string]float64, len(cur))
				for k, v := range cur {
					c[k] = v
				}
				out = append(out, c)
			}
			return
		}
		walk(i+1, cur)
		if len(cur) >= m.cfg.MaxCombo {
			return
		}
		th := thresholds[i]
		for _, g := range options[th] {
			cur[th] = g
			walk(i+1, cur)
			delete(cur, th)
		}
	}
	walk(0, map[string]float64{})
	return out
}

// fires reports whether the entry gate would have opened at some bar of
// the episode under the given multipliers. Peak scores stand in for the
// per-bar series.
func (m *Materializer) fires(state domain.State, ep domain.Episode, mults map[string]float64) bool {
	mult := func(th string) float64 {
		if v, ok := mults[th]; ok && v > 0 {
			return v
		}
		return 1
	}
	if state == domain.StateS1 {
		return ep.MaxTS >= m.state.BuySignalTS*mult(domain.ThresholdTS)
	}
	return ep.MaxDX >= m.state.BuyFlagDX*mult(domain.ThresholdDX) &&
		ep.MinEDX < m.state.EDXMax*mult(domain.ThresholdEDX)
}

func thresholdsFor(s domain.State) []string {
	switch s {
	case domain.StateS1:
		return []string{domain.ThresholdTS}
	case domain.StateS2, domain.StateS3:
		return []string{domain.ThresholdDX, domain.ThresholdEDX}
	default:
		return nil
	}
}

// loosens reports whether multiplier g makes threshold th easier to pass.
// edx_max is an upper bound, the others are lower bounds.
func loosens(th string, g float64) bool {
	if th == domain.ThresholdEDX {
		return g > 1
	}
	return g < 1
}

// better prefers the higher ratio, then more benefit, then the smaller
// total adjustment.
func better(a, b candidate) bool {
	if ra, rb := a.ratio(), b.ratio(); ra != rb {
		return ra > rb
	}
	if a.benefit != b.benefit {
		return a.benefit > b.benefit
	}
	da, db := distance(a.mults), distance(b.mults)
	if da != db {
		return da < db
	}
	return canonicalMults(a.mults) < canonicalMults(b.mults)
}

func distance(mults map[string]float64) float64 {
	d := 0.0
	for _, v := range mults {
		d += math.Abs(v - 1)
	}
	return d
}

func canonicalMults(mults map[string]float64) string {
	keys := make([]string, 0, len(mults))
	for k := range mults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, mults[k])
	}
	return strings.Join(parts, ",")
}

func patternState(patternKey string) domain.State {
	s, _, _ := strings.Cut(patternKey, ".")
	return domain.State(s)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
