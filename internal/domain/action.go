package domain

import "strings"

// ActionType is the kind of trading action proposed by the planner.
type ActionType string

const (
	ActionEntry         ActionType = "entry"
	ActionAdd           ActionType = "add"
	ActionTrim          ActionType = "trim"
	ActionEmergencyExit ActionType = "emergency_exit"
)

// Reason is the audit record attached to every proposed action. It carries
// everything the episode recorder and the miner need.
type Reason struct {
	PatternKey string  `json:"pattern_key"`
	Category   string  `json:"category"`
	State      State   `json:"state"`
	Flag       string  `json:"flag"`
	Flags      Flags   `json:"flags"`
	Scores     Scores  `json:"scores"`
	A          float64 `json:"a"`
	E          float64 `json:"e"`
	Tier       string  `json:"tier,omitempty"`
}

// Action is one proposed trade.
// SizeFraction is a fraction of quantity for trims and exits, and a fraction
// of the sizing base (allocation, trim pool or exit value) for entries/adds.
type Action struct {
	Type         ActionType   `json:"type"`
	SignalClass  SignalClass  `json:"signal_class"`
	EpisodeClass EpisodeClass `json:"episode_class,omitempty"`
	SizeFraction float64      `json:"size_fraction"`
	NotionalUSD  float64      `json:"notional_usd,omitempty"`
	Reason       Reason       `json:"reason"`
}

// Buy reports whether the action increases exposure.
func (a Action) Buy() bool {
	return a.Type == ActionEntry || a.Type == ActionAdd
}

// PatternKey builds the canonical "<state>.<flag>.<category>" key.
func PatternKey(state State, flag, category string) string {
	return strings.Join([]string{state.String(), flag, category}, ".")
}
