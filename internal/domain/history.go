package domain

import "time"

// SignalClass names one slot of last-action bookkeeping.
type SignalClass string

const (
	SignalS1Buy         SignalClass = "s1_buy"
	SignalS2Buy         SignalClass = "s2_buy"
	SignalS3Buy         SignalClass = "s3_buy"
	SignalReclaimBuy    SignalClass = "reclaim_buy"
	SignalTrim          SignalClass = "trim"
	SignalEmergencyExit SignalClass = "emergency_exit"
)

// LastAction is the most recent realized action of one signal class.
type LastAction struct {
	At    time.Time `json:"at"`
	Price float64   `json:"price"`
}

// DXLadder tracks dip-buy adds inside a confirmed uptrend since the last trim.
type DXLadder struct {
	BuysSinceTrim  int     `json:"buys_since_trim"`
	LastBuyPrice   float64 `json:"last_buy_price"`
	NextArmedPrice float64 `json:"next_armed_price"`
}

// TrimPool holds quote value extracted by trims and earmarked for rebuys.
type TrimPool struct {
	USDBasis        float64  `json:"usd_basis"`
	RecoveryStarted bool     `json:"recovery_started"`
	LockedProfitUSD float64  `json:"locked_profit_usd"`
	DX              DXLadder `json:"dx"`
}

// LastTrim is the anti-flap reference for the trim flag.
type LastTrim struct {
	Bar          int64   `json:"bar"`
	SupportLevel float64 `json:"support_level"`
}

// EmergencyExitRecord remembers the last full exit for reclaim sizing.
type EmergencyExitRecord struct {
	At            time.Time `json:"at"`
	Price         float64   `json:"price"`
	ExitValueUSD  float64   `json:"exit_value_usd"`
	RebuyConsumed bool      `json:"rebuy_consumed"`
}

// ActionRecord is a realized action inside the open trade, kept so trade
// closure can export one evidence row per action without re-deriving context.
type ActionRecord struct {
	At         time.Time         `json:"at"`
	PatternKey string            `json:"pattern_key"`
	Category   string            `json:"category"`
	Scope      map[string]string `json:"scope,omitempty"`
}

// ExecutionHistory is the per-position bag read by the planner and mutated
// only by post-execution write-back.
type ExecutionHistory struct {
	LastActions   map[SignalClass]LastAction `json:"last_actions,omitempty"`
	TrimPool      TrimPool                   `json:"trim_pool"`
	LastTrim      *LastTrim                  `json:"last_trim,omitempty"`
	EmergencyExit *EmergencyExitRecord       `json:"emergency_exit,omitempty"`

	// Episodes holds the in-flight opportunity window per class.
	Episodes map[EpisodeClass]*Episode `json:"episodes,omitempty"`

	// Open trade bookkeeping.
	DidTrim      bool           `json:"did_trim"`
	ReachedS3    bool           `json:"reached_s3"`
	EntryContext *EntryContext  `json:"entry_context,omitempty"`
	TradeActions []ActionRecord `json:"trade_actions,omitempty"`
}

// Last returns the last action of a class.
func (h ExecutionHistory) Last(class SignalClass) (LastAction, bool) {
	la, ok := h.LastActions[class]
	return la, ok
}

// OpenEpisode returns the in-flight episode of a class, if any.
func (h ExecutionHistory) OpenEpisode(class EpisodeClass) *Episode {
	if h.Episodes == nil {
		return nil
	}
	return h.Episodes[class]
}

// Clone returns a deep copy.
func (h ExecutionHistory) Clone() ExecutionHistory {
	c := h
	if h.LastActions != nil {
		c.LastActions = make(map[SignalClass]LastAction, len(h.LastActions))
		for k, v := range h.LastActions {
			c.LastActions[k] = v
		}
	}
	if h.LastTrim != nil {
		lt := *h.LastTrim
		c.LastTrim = &lt
	}
	if h.EmergencyExit != nil {
		ee := *h.EmergencyExit
		c.EmergencyExit = &ee
	}
	if h.Episodes != nil {
		c.Episodes = make(map[EpisodeClass]*Episode, len(h.Episodes))
		for k, v := range h.Episodes {
			c.Episodes[k] = v.Clone()
		}
	}
	if h.EntryContext != nil {
		ec := *h.EntryContext
		ec.Scope = CloneScope(h.EntryContext.Scope)
		c.EntryContext = &ec
	}
	if h.TradeActions != nil {
		c.TradeActions = make([]ActionRecord, len(h.TradeActions))
		for i, a := range h.TradeActions {
			a.Scope = CloneScope(a.Scope)
			c.TradeActions[i] = a
		}
	}
	return c
}
