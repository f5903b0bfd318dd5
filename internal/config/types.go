package config

import "time"

// Config is the immutable process configuration. It is built once by Load
// (or Default in tests) and handed to every component constructor.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	State     StateConfig     `mapstructure:"state"`
	Regime    RegimeConfig    `mapstructure:"regime"`
	Decision  DecisionConfig  `mapstructure:"decision"`
	Episode   EpisodeConfig   `mapstructure:"episode"`
	Learning  LearningConfig  `mapstructure:"learning"`
	Overrides OverridesConfig `mapstructure:"overrides"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Tick      TickConfig      `mapstructure:"tick"`
}

type AppConfig struct {
	Env         string `mapstructure:"env"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json | console
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // memory | sql
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// StateConfig parameterizes the trend-state engine.
type StateConfig struct {
	FastPeriods []int `mapstructure:"fast_periods"` // fast band, fastest first
	MidPeriod   int   `mapstructure:"mid_period"`
	SlowPeriods []int `mapstructure:"slow_periods"` // slow stack, fastest first

	SlopeScale float64 `mapstructure:"slope_scale"` // slope mapped to 1.0

	TS TSConfig `mapstructure:"ts"`
	OX OXConfig `mapstructure:"ox"`
	DX DXConfig `mapstructure:"dx"`

	EDXATR float64 `mapstructure:"edx_atr"`

	BuySignalTS      float64 `mapstructure:"buy_signal_ts"`
	BuyFlagDX        float64 `mapstructure:"buy_flag_dx"`
	EDXMax           float64 `mapstructure:"edx_max"`
	TrimOX           float64 `mapstructure:"trim_ox"`
	TrimCooldownBars int64   `mapstructure:"trim_cooldown_bars"`
	SupportEpsilon   float64 `mapstructure:"support_epsilon"` // relative move counted as structural

	FirstDipEnabled bool    `mapstructure:"first_dip_enabled"`
	FirstDipBars    int64   `mapstructure:"first_dip_bars"`
	FirstDipATR     float64 `mapstructure:"first_dip_atr"`

	AllowDirectS3Bootstrap bool `mapstructure:"allow_direct_s3_bootstrap"`
}

type TSConfig struct {
	SlopeFast float64 `mapstructure:"slope_fast"`
	SlopeMid  float64 `mapstructure:"slope_mid"`
	Sep       float64 `mapstructure:"sep"`
	Pos       float64 `mapstructure:"pos"`
	SepATR    float64 `mapstructure:"sep_atr"`
	PosATR    float64 `mapstructure:"pos_atr"`
}

type OXConfig struct {
	Ext    float64 `mapstructure:"ext"`
	Sep    float64 `mapstructure:"sep"`
	Decel  float64 `mapstructure:"decel"`
	ExtATR float64 `mapstructure:"ext_atr"`
	SepATR float64 `mapstructure:"sep_atr"`
}

type DXConfig struct {
	Prox    float64 `mapstructure:"prox"`
	Slope   float64 `mapstructure:"slope"`
	HaloATR float64 `mapstructure:"halo_atr"`
}

// RegimeConfig holds the hand-authored regime tables. Map keys are lower
// case because viper folds keys: states are "s0".."s4", flags use the
// domain flag names, drivers and horizons use the domain identifiers.
type RegimeConfig struct {
	Method string `mapstructure:"method"` // delta_table | flag_only

	StateDeltaA      map[string]float64            `mapstructure:"state_delta_a"`
	StateDeltaE      map[string]float64            `mapstructure:"state_delta_e"`
	FlagDeltaA       map[string]float64            `mapstructure:"flag_delta_a"`
	FlagDeltaE       map[string]float64            `mapstructure:"flag_delta_e"`
	TransitionDeltaA float64                       `mapstructure:"transition_delta_a"`
	TransitionDeltaE float64                       `mapstructure:"transition_delta_e"`
	DriverWeights    map[string]float64            `mapstructure:"driver_weights"`
	TimeframeWeights map[string]float64            `mapstructure:"timeframe_weights"`
	ExecMultipliers  map[string]map[string]float64 `mapstructure:"exec_multipliers"`

	FlagOnlyEffectA map[string]float64 `mapstructure:"flag_only_effect_a"`
	FlagOnlyEffectE map[string]float64 `mapstructure:"flag_only_effect_e"`

	Intent   IntentConfig   `mapstructure:"intent"`
	Ordering OrderingConfig `mapstructure:"ordering"`
}

type IntentConfig struct {
	BuyWeight  float64 `mapstructure:"buy_weight"`
	SellWeight float64 `mapstructure:"sell_weight"`
	MockWeight float64 `mapstructure:"mock_weight"`
	Cap        float64 `mapstructure:"cap"`
}

type OrderingConfig struct {
	RankWeight  float64 `mapstructure:"rank_weight"`
	SlopeWeight float64 `mapstructure:"slope_weight"`
	MinMult     float64 `mapstructure:"min_mult"`
	MaxMult     float64 `mapstructure:"max_mult"`
}

// ATiers are entry/add fractions keyed by aggressiveness tier.
type ATiers struct {
	Aggressive float64 `mapstructure:"aggressive"`
	Normal     float64 `mapstructure:"normal"`
	Patient    float64 `mapstructure:"patient"`
}

// ETiers are trim fractions keyed by exitness tier.
type ETiers struct {
	High   float64 `mapstructure:"high"`
	Normal float64 `mapstructure:"normal"`
	Low    float64 `mapstructure:"low"`
}

// DecisionConfig holds sizing tiers and gate parameters of the planner.
type DecisionConfig struct {
	AggressiveMin float64 `mapstructure:"aggressive_min"`
	ANormalMin    float64 `mapstructure:"a_normal_min"`
	EHighMin      float64 `mapstructure:"e_high_min"`
	ENormalMin    float64 `mapstructure:"e_normal_min"`

	S1Entry ATiers `mapstructure:"s1_entry"` // of remaining allocation
	S2Entry ATiers `mapstructure:"s2_entry"` // of remaining allocation, flat only
	S2Pool  ATiers `mapstructure:"s2_pool"`  // of trim pool basis
	S3Entry ATiers `mapstructure:"s3_entry"` // of remaining allocation, flat only
	DXPool  ATiers `mapstructure:"dx_pool"`  // of trim pool basis
	Reclaim ATiers `mapstructure:"reclaim"`  // of emergency exit value
	Trim    ETiers `mapstructure:"trim"`     // of quantity

	MaxDXBuys      int     `mapstructure:"max_dx_buys"`
	DXArmATR       float64 `mapstructure:"dx_arm_atr"`
	ReclaimPeriod  int     `mapstructure:"reclaim_period"`
	MinNotionalUSD float64 `mapstructure:"min_notional_usd"`
}

// EpisodeConfig parameterizes the outcome recorder.
type EpisodeConfig struct {
	MaxWindowSamples int                `mapstructure:"max_window_samples"`
	S3TargetATR      float64            `mapstructure:"s3_target_atr"`
	OutcomeMetric    map[string]float64 `mapstructure:"outcome_metric"`
}

// LearningConfig parameterizes the miner.
type LearningConfig struct {
	MinSamples        int           `mapstructure:"min_samples"`
	Dimensions        []string      `mapstructure:"dimensions"`
	MaxDepth          int           `mapstructure:"max_depth"`
	ShrinkagePrior    float64       `mapstructure:"shrinkage_prior"`
	SupportK          float64       `mapstructure:"support_k"`
	ConsistencyWeight float64       `mapstructure:"consistency_weight"`
	DecayHalfLife     time.Duration `mapstructure:"decay_half_life"`
	Lookback          time.Duration `mapstructure:"lookback"`
}

// OverridesConfig parameterizes the materializer and the runtime applier.
type OverridesConfig struct {
	Significance     float64   `mapstructure:"significance"`
	GridMultipliers  []float64 `mapstructure:"grid_multipliers"`
	MaxCombo         int       `mapstructure:"max_combo"`
	MinRatio         float64   `mapstructure:"min_ratio"`
	MinBenefit       int       `mapstructure:"min_benefit"`
	EdgeScale        float64   `mapstructure:"edge_scale"`
	SteeringStrength float64   `mapstructure:"steering_strength"`
	MaxDelta         float64   `mapstructure:"max_delta"`
	SpecificityAlpha float64   `mapstructure:"specificity_alpha"`
}

type JobsConfig struct {
	LearningInterval time.Duration `mapstructure:"learning_interval"`
	MaxRuntime       time.Duration `mapstructure:"max_runtime"`
}

type TickConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Workers  int           `mapstructure:"workers"`
	FeedPath string        `mapstructure:"feed_path"`

	// SlippageBps is applied by the paper executor against the tick price.
	SlippageBps float64 `mapstructure:"slippage_bps"`
}
