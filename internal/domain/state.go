package domain

import "time"

// State is the trend regime classification of one token/timeframe.
type State string

const (
	StateNone State = ""   // never observed
	StateS0   State = "S0" // pure downtrend
	StateS1   State = "S1" // primer: fast band reclaimed the mid EMA
	StateS2   State = "S2" // defensive: above the slowest EMA, not fully aligned
	StateS3   State = "S3" // confirmed uptrend: full bullish EMA ordering
	StateS4   State = "S4" // bootstrap watch, waiting for an order condition
)

// String returns the string representation of State.
func (s State) String() string {
	if s == StateNone {
		return "none"
	}
	return string(s)
}

// Rank orders the forward ladder S0 < S1 < S2 < S3. Watch and none rank -1.
func (s State) Rank() int {
	switch s {
	case StateS0:
		return 0
	case StateS1:
		return 1
	case StateS2:
		return 2
	case StateS3:
		return 3
	default:
		return -1
	}
}

// Holding reports whether the state is one a position can be held in.
func (s State) Holding() bool {
	return s == StateS1 || s == StateS2 || s == StateS3
}

// Scores are the continuous sub-scores of one classification.
type Scores struct {
	TS  float64 `json:"ts"`  // trend strength [0,1]
	OX  float64 `json:"ox"`  // exhaustion [0,1]
	DX  float64 `json:"dx"`  // dip-buy strength [0,1]
	EDX float64 `json:"edx"` // extended-dip suppression [0,1]
}

// Flags are the state-conditional booleans of one classification.
// They are recomputed every tick and never sticky.
type Flags struct {
	BuySignal       bool `json:"buy_signal"`
	BuyFlag         bool `json:"buy_flag"`
	FirstDipBuyFlag bool `json:"first_dip_buy_flag"`
	TrimFlag        bool `json:"trim_flag"`
	EmergencyExit   bool `json:"emergency_exit"`
}

// Flag names used in pattern keys and regime tables.
const (
	FlagBuySignal     = "buy_signal"
	FlagBuyFlag       = "buy_flag"
	FlagFirstDipBuy   = "first_dip_buy_flag"
	FlagTrim          = "trim_flag"
	FlagEmergencyExit = "emergency_exit"
	FlagReclaim       = "reclaim"
)

// Active returns the names of the flags that are set, in a fixed order.
func (f Flags) Active() []string {
	var out []string
	if f.BuySignal {
		out = append(out, FlagBuySignal)
	}
	if f.BuyFlag {
		out = append(out, FlagBuyFlag)
	}
	if f.FirstDipBuyFlag {
		out = append(out, FlagFirstDipBuy)
	}
	if f.TrimFlag {
		out = append(out, FlagTrim)
	}
	if f.EmergencyExit {
		out = append(out, FlagEmergencyExit)
	}
	return out
}

// Any reports whether at least one flag is set.
func (f Flags) Any() bool {
	return len(f.Active()) > 0
}

// StateOutput is the state engine result for one token/timeframe/tick.
type StateOutput struct {
	State           State     `json:"state"`
	PrevState       State     `json:"prev_state"`
	TransitionedAt  time.Time `json:"transitioned_at"`
	TransitionedBar int64     `json:"transitioned_bar"`
	Bar             int64     `json:"bar"`
	Scores          Scores    `json:"scores"`
	Flags           Flags     `json:"flags"`

	// Missing is set when required indicator inputs were absent; the state
	// is carried over from the previous output and nothing fires.
	Missing bool   `json:"missing,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Transitioned reports whether the state changed on this tick.
func (o StateOutput) Transitioned() bool {
	return o.State != o.PrevState
}

// CollapsedToS0 reports a direct transition from a holding state to S0.
func (o StateOutput) CollapsedToS0() bool {
	return o.State == StateS0 && o.PrevState.Holding()
}
