package decision

import "trendloop/internal/domain"

// Gate names a gating rule that suppressed a signal.
type Gate string

const (
	GateEpisodeBlocked   Gate = "episode_blocked"
	GateOnePerEpisode    Gate = "one_per_episode"
	GatePoolRecovering   Gate = "pool_recovering"
	GatePoolEmpty        Gate = "pool_empty"
	GateLadderExhausted  Gate = "ladder_exhausted"
	GateLadderUnarmed    Gate = "ladder_unarmed"
	GateBelowMinNotional Gate = "below_min_notional"
	GateRebuyConsumed    Gate = "rebuy_consumed"
)

// Action categories used in pattern keys.
const (
	CategoryEntry = "entry"
	CategoryAdd   = "add"
	CategoryTrim  = "trim"
	CategoryExit  = "exit"
)

// Tier labels.
const (
	TierAggressive = "aggressive"
	TierNormal     = "normal"
	TierPatient    = "patient"

	TierHigh = "high"
	TierLow  = "low"
)

// Input is the read-only snapshot one planning call works on.
type Input struct {
	Output   domain.StateOutput
	Features domain.Features
	A        float64
	E        float64
	Position *domain.Position
	Block    domain.BlockRecord
}

// Suppression records a signal that fired but was gated.
type Suppression struct {
	Gate       Gate   `json:"gate"`
	PatternKey string `json:"pattern_key"`
	Detail     string `json:"detail,omitempty"`
}

// Plan is the planner result. An empty plan with no suppressions means no
// signal fired.
type Plan struct {
	Actions    []domain.Action `json:"actions"`
	Suppressed []Suppression   `json:"suppressed,omitempty"`
}

// Empty reports whether nothing is to be executed.
func (p Plan) Empty() bool {
	return len(p.Actions) == 0
}
