// Package learning mines lessons from exported evidence.
//
// The statistical unit is the trade or episode, never the action row. Rows
// are deduplicated by unit id inside every slice before n, mean and
// variance are computed, because one trade's actions can land in different
// scope slices.
package learning

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"trendloop/internal/config"
	"trendloop/internal/domain"
	"trendloop/internal/idhash"
)

// Miner recomputes lessons in one batch.
type Miner struct {
	cfg config.LearningConfig
	log zerolog.Logger
}

// NewMiner creates a miner.
func NewMiner(cfg config.LearningConfig, log zerolog.Logger) *Miner {
	return &Miner{cfg: cfg, log: log.With().Str("component", "learning").Logger()}
}

type cellKey struct {
	source     domain.EvidenceSource
	patternKey string
	category   string
}

type baselineKey struct {
	source   domain.EvidenceSource
	category string
}

// unit is one deduplicated trade or episode inside a slice.
type unit struct {
	metric float64
	at     time.Time
}

// Mine groups rows by (source, pattern, category) and partitions each group
// by the configured dimensions. Output order is deterministic.
func (m *Miner) Mine(rows []domain.EvidenceRow, now time.Time) []domain.Lesson {
	groups := make(map[cellKey][]domain.EvidenceRow)
	byCategory := make(map[baselineKey][]domain.EvidenceRow)
	for _, r := range rows {
		if r.UnitID == "" || r.PatternKey == "" {
			continue
		}
		k := cellKey{source: r.Source, patternKey: r.PatternKey, category: r.Category}
		groups[k] = append(groups[k], r)
		bk := baselineKey{source: r.Source, category: r.Category}
		byCategory[bk] = append(byCategory[bk], r)
	}

	baselines := make(map[baselineKey]float64, len(byCategory))
	for bk, rs := range byCategory {
		metrics, _ := unitMetrics(dedup(rs))
		baselines[bk] = computeMean(metrics)
	}

	keys := make([]cellKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		if keys[i].patternKey != keys[j].patternKey {
			return keys[i].patternKey < keys[j].patternKey
		}
		return keys[i].category < keys[j].category
	})

	var lessons []domain.Lesson
	for _, k := range keys {
		baseline := baselines[baselineKey{source: k.source, category: k.category}]
		lessons = m.partition(lessons, k, groups[k], map[string]string{}, 0, baseline, now)
	}

	m.log.Info().
		Int("rows", len(rows)).
		Int("cells", len(keys)).
		Int("lessons", len(lessons)).
		Msg("mining complete")
	return lessons
}

// partition emits the lesson for one slice and recurses into child slices
// that add one dimension after the last one used.
func (m *Miner) partition(out []domain.Lesson, k cellKey, rows []domain.EvidenceRow, scope map[string]string, nextDim int, baseline float64, now time.Time) []domain.Lesson {
	units := dedup(rows)
	if len(units) < m.cfg.MinSamples {
		return out
	}
	out = append(out, m.lesson(k, scope, units, baseline, now))

	if len(scope) >= m.cfg.MaxDepth {
		return out
	}
	for d := nextDim; d < len(m.cfg.Dimensions); d++ {
		dim := m.cfg.Dimensions[d]
		slices := make(map[string][]domain.EvidenceRow)
		for _, r := range rows {
			v, ok := r.Scope[dim]
			if !ok || v == "" {
				continue
			}
			slices[v] = append(slices[v], r)
		}
		values := make([]string, 0, len(slices))
		for v := range slices {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			child := domain.CloneScope(scope)
			child[dim] = v
			out = m.partition(out, k, slices[v], child, d+1, baseline, now)
		}
	}
	return out
}

func (m *Miner) lesson(k cellKey, scope map[string]string, units map[string]unit, baseline float64, now time.Time) domain.Lesson {
	metrics, ats := unitMetrics(units)
	n := len(metrics)
	mean := computeMean(metrics)
	variance := computeVariance(metrics, mean)
	delta := mean - baseline

	rel := reliability(variance, m.cfg.ShrinkagePrior, n)
	sup := support(n, m.cfg.SupportK)
	cons := consistency(metrics, baseline, delta)
	dec := decay(metrics, ats, baseline, delta, now, m.cfg.DecayHalfLife)

	kind := domain.LessonPosture
	if k.source == domain.EvidenceEpisode {
		kind = domain.LessonGating
	}
	return domain.Lesson{
		ID:          idhash.ComputeLessonID(string(kind), k.patternKey, k.category, domain.CanonicalScope(scope)),
		Kind:        kind,
		PatternKey:  k.patternKey,
		Category:    k.category,
		Scope:       domain.CloneScope(scope),
		N:           n,
		Mean:        mean,
		Variance:    variance,
		Baseline:    baseline,
		Delta:       delta,
		Reliability: rel,
		Support:     sup,
		Consistency: cons,
		Decay:       dec,
		Edge:        delta * rel * (sup + m.cfg.ConsistencyWeight*cons) * dec,
		MinedAt:     now,
	}
}

// dedup collapses rows to one entry per unit id: the mean of the unit's
// metrics in this slice, at its latest timestamp.
func dedup(rows []domain.EvidenceRow) map[string]unit {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	latest := make(map[string]time.Time)
	for _, r := range rows {
		sums[r.UnitID] += r.Metric
		counts[r.UnitID]++
		if r.At.After(latest[r.UnitID]) {
			latest[r.UnitID] = r.At
		}
	}
	units := make(map[string]unit, len(sums))
	for id, s := range sums {
		units[id] = unit{metric: s / float64(counts[id]), at: latest[id]}
	}
	return units
}

// unitMetrics flattens units in id order so float sums are reproducible.
func unitMetrics(units map[string]unit) ([]float64, []time.Time) {
	ids := make([]string, 0, len(units))
	for id := range units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	metrics := make([]float64, len(ids))
	ats := make([]time.Time, len(ids))
	for i, id := range ids {
		metrics[i] = units[id].metric
		ats[i] = units[id].at
	}
	return metrics, ats
}
