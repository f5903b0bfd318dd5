package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects malformed configuration before the tick loop starts.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch strings.ToLower(cfg.Storage.Backend) {
	case BackendMemory:
	case BackendSQL:
		if cfg.Storage.PostgresDSN == "" {
			add("storage.postgres_dsn is required for backend sql")
		}
		if cfg.Storage.ClickhouseDSN == "" {
			add("storage.clickhouse_dsn is required for backend sql")
		}
	default:
		add("storage.backend must be memory or sql, got %q", cfg.Storage.Backend)
	}

	s := cfg.State
	if len(s.FastPeriods) != 2 {
		add("state.fast_periods needs exactly 2 periods")
	}
	if len(s.SlowPeriods) != 3 {
		add("state.slow_periods needs exactly 3 periods")
	}
	periods := append(append(append([]int{}, s.FastPeriods...), s.MidPeriod), s.SlowPeriods...)
	for i := 1; i < len(periods); i++ {
		if periods[i] <= periods[i-1] {
			add("state EMA periods must be strictly increasing fast->slow, got %v", periods)
			break
		}
	}
	if len(periods) > 0 && periods[0] <= 0 {
		add("state EMA periods must be positive")
	}
	if s.SlopeScale <= 0 {
		add("state.slope_scale must be > 0")
	}
	for name, v := range map[string]float64{
		"state.ts.sep_atr":    s.TS.SepATR,
		"state.ts.pos_atr":    s.TS.PosATR,
		"state.ox.ext_atr":    s.OX.ExtATR,
		"state.ox.sep_atr":    s.OX.SepATR,
		"state.dx.halo_atr":   s.DX.HaloATR,
		"state.edx_atr":       s.EDXATR,
		"state.first_dip_atr": s.FirstDipATR,
	} {
		if v <= 0 {
			add("%s must be > 0", name)
		}
	}
	if s.TrimCooldownBars < 0 || s.FirstDipBars < 0 {
		add("state bar counts must be >= 0")
	}

	switch cfg.Regime.Method {
	case "delta_table", "flag_only":
	default:
		add("regime.method must be delta_table or flag_only, got %q", cfg.Regime.Method)
	}
	if o := cfg.Regime.Ordering; o.MinMult <= 0 || o.MinMult > 1 || o.MaxMult < 1 {
		add("regime.ordering band must satisfy 0 < min_mult <= 1 <= max_mult")
	}
	if cfg.Regime.Intent.Cap < 0 {
		add("regime.intent.cap must be >= 0")
	}

	d := cfg.Decision
	if !(0 <= d.ANormalMin && d.ANormalMin < d.AggressiveMin && d.AggressiveMin <= 1) {
		add("decision A tiers must satisfy 0 <= a_normal_min < aggressive_min <= 1")
	}
	if !(0 <= d.ENormalMin && d.ENormalMin < d.EHighMin && d.EHighMin <= 1) {
		add("decision E tiers must satisfy 0 <= e_normal_min < e_high_min <= 1")
	}
	for name, t := range map[string]ATiers{
		"s1_entry": d.S1Entry, "s2_entry": d.S2Entry, "s2_pool": d.S2Pool,
		"s3_entry": d.S3Entry, "dx_pool": d.DXPool, "reclaim": d.Reclaim,
	} {
		if !fraction(t.Aggressive) || !fraction(t.Normal) || !fraction(t.Patient) {
			add("decision.%s fractions must be in [0,1]", name)
		}
	}
	if !fraction(d.Trim.High) || !fraction(d.Trim.Normal) || !fraction(d.Trim.Low) {
		add("decision.trim fractions must be in [0,1]")
	}
	if d.MaxDXBuys < 0 {
		add("decision.max_dx_buys must be >= 0")
	}
	if d.ReclaimPeriod <= 0 {
		add("decision.reclaim_period must be > 0")
	}

	if cfg.Episode.MaxWindowSamples <= 0 {
		add("episode.max_window_samples must be > 0")
	}

	l := cfg.Learning
	if l.MinSamples <= 0 {
		add("learning.min_samples must be > 0")
	}
	if l.SupportK <= 0 {
		add("learning.support_k must be > 0")
	}
	if l.ShrinkagePrior < 0 {
		add("learning.shrinkage_prior must be >= 0")
	}
	if l.DecayHalfLife <= 0 {
		add("learning.decay_half_life must be > 0")
	}

	o := cfg.Overrides
	if len(o.GridMultipliers) == 0 {
		add("overrides.grid_multipliers must not be empty")
	}
	for _, m := range o.GridMultipliers {
		if m <= 0 {
			add("overrides.grid_multipliers must be > 0")
			break
		}
	}
	if o.MinRatio <= 0 {
		add("overrides.min_ratio must be > 0")
	}
	if o.EdgeScale <= 0 {
		add("overrides.edge_scale must be > 0")
	}
	if o.MaxDelta < 0 || o.MaxDelta > 1 {
		add("overrides.max_delta must be in [0,1]")
	}

	if cfg.Tick.Workers <= 0 {
		add("tick.workers must be > 0")
	}
	if cfg.Tick.Interval <= 0 {
		add("tick.interval must be > 0")
	}
	if cfg.Jobs.LearningInterval <= 0 {
		add("jobs.learning_interval must be > 0")
	}
	if cfg.Tick.SlippageBps < 0 {
		add("tick.slippage_bps must be >= 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func fraction(v float64) bool {
	return v >= 0 && v <= 1
}
