package overrides

import (
	"math"
	"sort"

	"trendloop/internal/config"
	"trendloop/internal/domain"
)

// Applier resolves matched overrides into threshold multipliers and
// posture adjustments.
type Applier struct {
	cfg config.OverridesConfig
}

// NewApplier creates an applier.
func NewApplier(cfg config.OverridesConfig) *Applier {
	return &Applier{cfg: cfg}
}

// Gating returns the multiplier per threshold for a pattern in ctx. Each
// threshold takes its value from the single most specific matching
// override; overrides are never blended.
func (a *Applier) Gating(overrides []domain.GatingOverride, patternKey, category string, ctx map[string]string) map[string]float64 {
	matches := make([]domain.GatingOverride, 0, len(overrides))
	for _, o := range overrides {
		if o.PatternKey == patternKey && o.Category == category && domain.ScopeContains(ctx, o.Scope) {
			matches = append(matches, o)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		si, sj := len(matches[i].Scope), len(matches[j].Scope)
		if si != sj {
			return si > sj
		}
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].ID < matches[j].ID
	})

	out := make(map[string]float64)
	for _, o := range matches {
		for th, v := range o.Multipliers {
			if _, taken := out[th]; !taken && v > 0 {
				out[th] = v
			}
		}
	}
	return out
}

// Posture adjusts score x by every matching override for target, blended
// by confidence × (1+specificity)^α, with headroom scaling.
func (a *Applier) Posture(overrides []domain.PostureOverride, target domain.PostureTarget, x float64, ctx map[string]string) float64 {
	var wSum, dirSum, confSum float64
	for _, o := range overrides {
		if o.Target != target || !domain.ScopeContains(ctx, o.Scope) {
			continue
		}
		w := o.Confidence * math.Pow(1+float64(len(o.Scope)), a.cfg.SpecificityAlpha)
		if w <= 0 {
			continue
		}
		wSum += w
		dirSum += w * o.Direction
		confSum += w * o.Confidence
	}
	if wSum == 0 {
		return x
	}
	dir := dirSum / wSum
	conf := confSum / wSum
	delta := clamp(dir*a.cfg.SteeringStrength*conf, -a.cfg.MaxDelta, a.cfg.MaxDelta)
	return ApplyHeadroom(x, delta)
}

// ApplyHeadroom moves x by delta scaled to the room left toward the bound
// it moves to, so the result stays in [0,1].
func ApplyHeadroom(x, delta float64) float64 {
	x = clamp(x, 0, 1)
	delta = clamp(delta, -1, 1)
	if delta >= 0 {
		return x + delta*(1-x)
	}
	return x + delta*x
}
