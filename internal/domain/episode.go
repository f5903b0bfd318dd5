package domain

import "time"

// EpisodeClass is the signal type an opportunity window tracks.
type EpisodeClass string

const (
	EpisodeS1Entry  EpisodeClass = "s1_entry"
	EpisodeS2Retest EpisodeClass = "s2_retest"
	EpisodeS3Dip    EpisodeClass = "s3_dip"
)

// EpisodeClasses lists every class in canonical order.
var EpisodeClasses = []EpisodeClass{EpisodeS1Entry, EpisodeS2Retest, EpisodeS3Dip}

// State returns the trend state an episode class belongs to.
func (c EpisodeClass) State() State {
	switch c {
	case EpisodeS1Entry:
		return StateS1
	case EpisodeS2Retest:
		return StateS2
	case EpisodeS3Dip:
		return StateS3
	default:
		return StateNone
	}
}

// Flag returns the entry flag an episode class opens windows on.
func (c EpisodeClass) Flag() string {
	if c == EpisodeS1Entry {
		return FlagBuySignal
	}
	return FlagBuyFlag
}

// PatternKey is the entry pattern episodes of this class are scored under.
func (c EpisodeClass) PatternKey() string {
	return PatternKey(c.State(), c.Flag(), "entry")
}

// EpisodeClassFor returns the class opened by entering state.
func EpisodeClassFor(s State) (EpisodeClass, bool) {
	switch s {
	case StateS1:
		return EpisodeS1Entry, true
	case StateS2:
		return EpisodeS2Retest, true
	case StateS3:
		return EpisodeS3Dip, true
	default:
		return "", false
	}
}

// Outcome is the terminal classification of an episode.
type Outcome string

const (
	OutcomeNone        Outcome = ""
	OutcomeSuccess     Outcome = "success"      // entered, target reached
	OutcomeFailure     Outcome = "failure"      // entered, target not reached
	OutcomeMissed      Outcome = "missed"       // skipped, target reached
	OutcomeCorrectSkip Outcome = "correct_skip" // skipped, target not reached
)

// ClassifyOutcome maps the (entered, target reached) cross to an outcome.
func ClassifyOutcome(entered, targetReached bool) Outcome {
	switch {
	case entered && targetReached:
		return OutcomeSuccess
	case entered:
		return OutcomeFailure
	case targetReached:
		return OutcomeMissed
	default:
		return OutcomeCorrectSkip
	}
}

// Sample is one captured signal-value reading inside a window.
type Sample struct {
	At    time.Time `json:"at"`
	Price float64   `json:"price"`
	ATR   float64   `json:"atr"`
	TS    float64   `json:"ts"`
	DX    float64   `json:"dx"`
	EDX   float64   `json:"edx"`
	A     float64   `json:"a"`
	E     float64   `json:"e"`
}

// Window is a contiguous sub-period where the entry condition held.
type Window struct {
	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at,omitempty"`
	Samples  []Sample  `json:"samples,omitempty"`
	Outcome  Outcome   `json:"outcome,omitempty"`
}

// Open reports whether the window has not lapsed yet.
func (w Window) Open() bool {
	return w.ClosedAt.IsZero()
}

// Episode is one opportunity window for a signal class.
type Episode struct {
	ID            string            `json:"id"`
	Class         EpisodeClass      `json:"class"`
	PositionKey   PositionKey       `json:"position_key"`
	StartedAt     time.Time         `json:"started_at"`
	Windows       []Window          `json:"windows,omitempty"`
	Entered       bool              `json:"entered"`
	TargetReached bool              `json:"target_reached"`
	Outcome       Outcome           `json:"outcome,omitempty"`
	ClosedAt      time.Time         `json:"closed_at,omitempty"`
	Scope         map[string]string `json:"scope,omitempty"`

	// Peak gate scores seen while in the class's state, windows or not.
	// Threshold simulation reads these.
	MaxTS     float64 `json:"max_ts"`
	MaxDX     float64 `json:"max_dx"`
	MinEDX    float64 `json:"min_edx"`
	StateBars int     `json:"state_bars"`
}

// Closed reports whether the outcome has been assigned.
func (e *Episode) Closed() bool {
	return e.Outcome != OutcomeNone
}

// Clone returns a deep copy.
func (e *Episode) Clone() *Episode {
	if e == nil {
		return nil
	}
	c := *e
	if e.Windows != nil {
		c.Windows = make([]Window, len(e.Windows))
		for i, w := range e.Windows {
			if w.Samples != nil {
				s := make([]Sample, len(w.Samples))
				copy(s, w.Samples)
				w.Samples = s
			}
			c.Windows[i] = w
		}
	}
	c.Scope = CloneScope(e.Scope)
	return &c
}

// BlockRecord holds episode-failure blocks for one (token, chain, timeframe).
// Blocked maps a blocked class to the class whose failure caused it.
type BlockRecord struct {
	Key       PositionKey                   `json:"key"`
	Blocked   map[EpisodeClass]EpisodeClass `json:"blocked,omitempty"`
	UpdatedAt time.Time                     `json:"updated_at"`
}

// IsBlocked reports whether entries of class are currently blocked.
func (b BlockRecord) IsBlocked(class EpisodeClass) bool {
	_, ok := b.Blocked[class]
	return ok
}
