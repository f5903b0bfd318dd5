package config

import "time"

// Default returns the production defaults. Load decodes the config file on
// top of these, so a file only needs to carry what it changes.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Env:         "dev",
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsAddr: ":9102",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		State: StateConfig{
			FastPeriods: []int{20, 30},
			MidPeriod:   60,
			SlowPeriods: []int{144, 250, 333},
			SlopeScale:  0.01,
			TS: TSConfig{
				SlopeFast: 0.3,
				SlopeMid:  0.3,
				Sep:       0.2,
				Pos:       0.2,
				SepATR:    2.0,
				PosATR:    2.0,
			},
			OX: OXConfig{
				Ext:    0.5,
				Sep:    0.3,
				Decel:  0.2,
				ExtATR: 3.0,
				SepATR: 4.0,
			},
			DX: DXConfig{
				Prox:    0.7,
				Slope:   0.3,
				HaloATR: 1.0,
			},
			EDXATR:                 2.0,
			BuySignalTS:            0.60,
			BuyFlagDX:              0.55,
			EDXMax:                 0.5,
			TrimOX:                 0.7,
			TrimCooldownBars:       6,
			SupportEpsilon:         0.005,
			FirstDipEnabled:        true,
			FirstDipBars:           10,
			FirstDipATR:            0.5,
			AllowDirectS3Bootstrap: false,
		},
		Regime: RegimeConfig{
			Method:      "delta_table",
			StateDeltaA: map[string]float64{"s0": -0.20, "s1": 0.10, "s2": 0.05, "s3": 0.20, "s4": 0},
			StateDeltaE: map[string]float64{"s0": 0.20, "s1": -0.05, "s2": 0.05, "s3": -0.10, "s4": 0},
			FlagDeltaA: map[string]float64{
				"buy_signal": 0.10, "buy_flag": 0.05, "first_dip_buy_flag": 0.05,
				"trim_flag": -0.05, "emergency_exit": -0.15,
			},
			FlagDeltaE: map[string]float64{
				"buy_signal": -0.05, "buy_flag": -0.05, "first_dip_buy_flag": -0.02,
				"trim_flag": 0.10, "emergency_exit": 0.15,
			},
			TransitionDeltaA: -0.10,
			TransitionDeltaE: 0.10,
			DriverWeights: map[string]float64{
				"btc": 1.0, "alt": 1.0, "bucket": 1.5,
				"btc_dominance": -2.0, "usdt_dominance": -2.0,
			},
			TimeframeWeights: map[string]float64{"macro": 0.5, "meso": 0.3, "micro": 0.2},
			ExecMultipliers: map[string]map[string]float64{
				"1m":  {"macro": 0.6, "meso": 1.0, "micro": 1.4},
				"15m": {"macro": 0.8, "meso": 1.1, "micro": 1.1},
				"1h":  {"macro": 1.0, "meso": 1.1, "micro": 0.9},
				"4h":  {"macro": 1.2, "meso": 1.0, "micro": 0.8},
				"1d":  {"macro": 1.4, "meso": 0.9, "micro": 0.7},
			},
			FlagOnlyEffectA: map[string]float64{
				"buy_signal": 0.05, "buy_flag": 0.03, "first_dip_buy_flag": 0.02,
				"trim_flag": -0.03, "emergency_exit": -0.08,
			},
			FlagOnlyEffectE: map[string]float64{
				"buy_signal": -0.03, "buy_flag": -0.02, "first_dip_buy_flag": -0.01,
				"trim_flag": 0.05, "emergency_exit": 0.08,
			},
			Intent: IntentConfig{
				BuyWeight:  0.05,
				SellWeight: 0.05,
				MockWeight: 0.02,
				Cap:        0.4,
			},
			Ordering: OrderingConfig{
				RankWeight:  0.3,
				SlopeWeight: 0.2,
				MinMult:     0.7,
				MaxMult:     1.3,
			},
		},
		Decision: DecisionConfig{
			AggressiveMin:  0.7,
			ANormalMin:     0.3,
			EHighMin:       0.7,
			ENormalMin:     0.3,
			S1Entry:        ATiers{Aggressive: 0.9, Normal: 0.6, Patient: 0.3},
			S2Entry:        ATiers{Aggressive: 0.6, Normal: 0.3, Patient: 0.1},
			S2Pool:         ATiers{Aggressive: 0.6, Normal: 0.3, Patient: 0.1},
			S3Entry:        ATiers{Aggressive: 0.5, Normal: 0.25, Patient: 0.1},
			DXPool:         ATiers{Aggressive: 0.3, Normal: 0.2, Patient: 0.1},
			Reclaim:        ATiers{Aggressive: 0.6, Normal: 0.3, Patient: 0.1},
			Trim:           ETiers{High: 0.5, Normal: 0.25, Low: 0.1},
			MaxDXBuys:      3,
			DXArmATR:       1.0,
			ReclaimPeriod:  60,
			MinNotionalUSD: 1.0,
		},
		Episode: EpisodeConfig{
			MaxWindowSamples: 32,
			S3TargetATR:      2.0,
			OutcomeMetric: map[string]float64{
				"success": 1, "missed": 1, "failure": -1, "correct_skip": -1,
			},
		},
		Learning: LearningConfig{
			MinSamples:        33,
			Dimensions:        []string{"timeframe", "chain", "bucket", "a_tier"},
			MaxDepth:          3,
			ShrinkagePrior:    1.0,
			SupportK:          50,
			ConsistencyWeight: 0.5,
			DecayHalfLife:     30 * 24 * time.Hour,
			Lookback:          90 * 24 * time.Hour,
		},
		Overrides: OverridesConfig{
			Significance:     0.02,
			GridMultipliers:  []float64{0.8, 0.85, 0.9, 0.95, 1.05, 1.1, 1.15, 1.2},
			MaxCombo:         2,
			MinRatio:         2.0,
			MinBenefit:       3,
			EdgeScale:        0.2,
			SteeringStrength: 0.3,
			MaxDelta:         0.25,
			SpecificityAlpha: 1.0,
		},
		Jobs: JobsConfig{
			LearningInterval: 6 * time.Hour,
			MaxRuntime:       30 * time.Minute,
		},
		Tick: TickConfig{
			Interval:    time.Minute,
			Workers:     8,
			SlippageBps: 10,
		},
	}
}
