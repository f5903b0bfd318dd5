package domain

import "time"

// EvidenceSource distinguishes the statistical unit behind an evidence row.
type EvidenceSource string

const (
	EvidenceTrade   EvidenceSource = "trade"
	EvidenceEpisode EvidenceSource = "episode"
)

// EvidenceRow is one exported decision fact. Several rows may share a
// UnitID (one trade or episode); the miner counts units, not rows.
type EvidenceRow struct {
	UnitID     string            `json:"unit_id"`
	Source     EvidenceSource    `json:"source"`
	PatternKey string            `json:"pattern_key"`
	Category   string            `json:"category"`
	Scope      map[string]string `json:"scope"`
	Metric     float64           `json:"metric"`
	At         time.Time         `json:"at"`
}

// TradeFact is the atomic trade-closure record.
type TradeFact struct {
	TradeID     string       `json:"trade_id"`
	PositionKey PositionKey  `json:"position_key"`
	Summary     TradeSummary `json:"summary"`
	ClosedAt    time.Time    `json:"closed_at"`

	// Actions are the realized actions of the trade, one evidence row each.
	Actions []ActionRecord `json:"actions,omitempty"`
}

// EpisodeFact is a closed episode exported for the materializer.
type EpisodeFact struct {
	Episode    Episode `json:"episode"`
	PatternKey string  `json:"pattern_key"`
	Category   string  `json:"category"`
}

// LessonKind is the override class a lesson feeds.
type LessonKind string

const (
	LessonGating  LessonKind = "gating"
	LessonPosture LessonKind = "posture"
)

// Lesson is the mined summary for one (pattern, category, scope) cell.
type Lesson struct {
	ID          string            `json:"id"`
	Kind        LessonKind        `json:"kind"`
	PatternKey  string            `json:"pattern_key"`
	Category    string            `json:"category"`
	Scope       map[string]string `json:"scope"`
	N           int               `json:"n"` // distinct units, never raw rows
	Mean        float64           `json:"mean"`
	Variance    float64           `json:"variance"`
	Baseline    float64           `json:"baseline"`
	Delta       float64           `json:"delta"`
	Reliability float64           `json:"reliability"`
	Support     float64           `json:"support"`
	Consistency float64           `json:"consistency"`
	Decay       float64           `json:"decay"`
	Edge        float64           `json:"edge"`
	MinedAt     time.Time         `json:"mined_at"`
}

// Specificity is the number of scope dimensions.
func (l Lesson) Specificity() int {
	return len(l.Scope)
}

// Threshold names adjustable by gating overrides.
const (
	ThresholdTS  = "ts_threshold"
	ThresholdDX  = "dx_threshold"
	ThresholdEDX = "edx_max"
)

// GatingOverride multiplies entry-gate thresholds for a scope.
type GatingOverride struct {
	ID          string             `json:"id"`
	LessonID    string             `json:"lesson_id"`
	PatternKey  string             `json:"pattern_key"`
	Category    string             `json:"category"`
	Scope       map[string]string  `json:"scope"`
	Multipliers map[string]float64 `json:"multipliers"`
	Benefit     int                `json:"benefit"`
	Cost        int                `json:"cost"`
	Ratio       float64            `json:"ratio"`
	Confidence  float64            `json:"confidence"`
	CreatedAt   time.Time          `json:"created_at"`
}

// PostureTarget is the score a posture override steers.
type PostureTarget string

const (
	PostureA PostureTarget = "A"
	PostureE PostureTarget = "E"
)

// PostureOverride steers A or E for a scope.
type PostureOverride struct {
	ID         string            `json:"id"`
	LessonID   string            `json:"lesson_id"`
	PatternKey string            `json:"pattern_key"`
	Category   string            `json:"category"`
	Target     PostureTarget     `json:"target"`
	Scope      map[string]string `json:"scope"`
	Direction  float64           `json:"direction"`  // [-1,1]
	Confidence float64           `json:"confidence"` // [0,1]
	CreatedAt  time.Time         `json:"created_at"`
}
