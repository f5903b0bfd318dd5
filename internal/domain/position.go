package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned when a token contract address is malformed.
var ErrInvalidAddress = errors.New("invalid token address")

// PositionStatus is the lifecycle status of a position.
type PositionStatus string

const (
	StatusWatchlist PositionStatus = "watchlist"
	StatusActive    PositionStatus = "active"
	StatusDormant   PositionStatus = "dormant"
)

// PositionKey identifies one managed (token, chain, timeframe) tuple.
type PositionKey struct {
	Token     string `json:"token"`
	Chain     string `json:"chain"`
	Timeframe string `json:"timeframe"`
}

// String returns "chain:token:timeframe".
func (k PositionKey) String() string {
	return k.Chain + ":" + k.Token + ":" + k.Timeframe
}

// InstrumentKind separates the crypto regime domain from everything else.
type InstrumentKind string

const (
	InstrumentCrypto InstrumentKind = "crypto"
	InstrumentEquity InstrumentKind = "equity"
)

// Instrument carries discovery-time classification of a token.
type Instrument struct {
	Kind   InstrumentKind `json:"kind"`
	Bucket string         `json:"bucket"` // market-cap bucket, e.g. "nano", "small", "mid", "large"

	// NeutralRegime is decided once at discovery; positions with it set
	// always receive the neutral (0.5, 0.5) regime.
	NeutralRegime bool `json:"neutral_regime"`
}

// ClassifyInstrument returns the instrument record for a newly discovered token.
// Anything outside the crypto domain gets a neutral regime.
func ClassifyInstrument(kind InstrumentKind, bucket string) Instrument {
	return Instrument{
		Kind:          kind,
		Bucket:        bucket,
		NeutralRegime: kind != InstrumentCrypto,
	}
}

// TradeSummary is the closed-trade record appended to a position.
type TradeSummary struct {
	TradeID         string       `json:"trade_id"`
	EntryAt         time.Time    `json:"entry_at"`
	ExitAt          time.Time    `json:"exit_at"`
	EntryPrice      float64      `json:"entry_price"`
	ExitPrice       float64      `json:"exit_price"`
	AllocatedUSD    float64      `json:"allocated_usd"`
	ExtractedUSD    float64      `json:"extracted_usd"`
	PnLUSD          float64      `json:"pnl_usd"`
	ROI             float64      `json:"roi"` // pnl / allocated
	RR              float64      `json:"rr"`  // pnl / initial risk
	DidTrim         bool         `json:"did_trim"`
	ReachedS3       bool         `json:"reached_s3"`
	EntryContext    EntryContext `json:"entry_context"`
	ClosedByState   State        `json:"closed_by_state"`
	ClosedReasonKey string       `json:"closed_reason_key,omitempty"`
}

// EntryContext snapshots what the engines saw when a trade was opened.
type EntryContext struct {
	State      State             `json:"state"`
	PatternKey string            `json:"pattern_key"`
	Scores     Scores            `json:"scores"`
	A          float64           `json:"a"`
	E          float64           `json:"e"`
	Price      float64           `json:"price"`
	ATR        float64           `json:"atr"`
	Scope      map[string]string `json:"scope,omitempty"`
}

// Position is one (token, chain, execution timeframe) under management.
// Execution history and episodes are owned by the position.
type Position struct {
	Key        PositionKey    `json:"key"`
	Ticker     string         `json:"ticker"`
	Status     PositionStatus `json:"status"`
	Instrument Instrument     `json:"instrument"`

	Quantity         float64 `json:"quantity"`
	SoldQuantity     float64 `json:"sold_quantity"` // sold in current trade, for the exit average
	AvgEntryPrice    float64 `json:"avg_entry_price"`
	AvgExitPrice     float64 `json:"avg_exit_price"`
	AllocationUSD    float64 `json:"allocation_usd"` // budget for this position
	AllocatedUSD     float64 `json:"allocated_usd"`  // cumulative deployed in current trade
	ExtractedUSD     float64 `json:"extracted_usd"`  // cumulative extracted in current trade
	RealizedPnLUSD   float64 `json:"realized_pnl_usd"`
	UnrealizedPnLUSD float64 `json:"unrealized_pnl_usd"`

	CurrentTradeID  string         `json:"current_trade_id,omitempty"`
	TradeOpenedAt   time.Time      `json:"trade_opened_at,omitempty"`
	CompletedTrades []TradeSummary `json:"completed_trades,omitempty"`

	LastOutput StateOutput      `json:"last_output"`
	History    ExecutionHistory `json:"execution_history"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Flat reports whether no quantity is held.
func (p *Position) Flat() bool {
	return p.Quantity <= 0
}

// RemainingAllocationUSD is budget not yet deployed in the open trade.
func (p *Position) RemainingAllocationUSD() float64 {
	rem := p.AllocationUSD - p.AllocatedUSD + p.ExtractedUSD
	if rem > p.AllocationUSD {
		rem = p.AllocationUSD
	}
	if rem < 0 {
		return 0
	}
	return rem
}

// CheckInvariant verifies current_trade_id is set iff status is active.
func (p *Position) CheckInvariant() error {
	hasTrade := p.CurrentTradeID != ""
	active := p.Status == StatusActive
	if hasTrade != active {
		return fmt.Errorf("position %s: status %s with trade id %q", p.Key, p.Status, p.CurrentTradeID)
	}
	return nil
}

// Clone returns a deep copy so readers never alias live position state.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	c := *p
	if p.CompletedTrades != nil {
		c.CompletedTrades = make([]TradeSummary, len(p.CompletedTrades))
		copy(c.CompletedTrades, p.CompletedTrades)
	}
	c.History = p.History.Clone()
	return &c
}

// ValidateTokenAddress checks the token contract format for chains with a
// known address encoding. Unknown chains are accepted as long as the
// address is non-empty.
func ValidateTokenAddress(chain, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	switch strings.ToLower(chain) {
	case "solana":
		raw, err := base58.Decode(address)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("%w: decoded length %d, want 32", ErrInvalidAddress, len(raw))
		}
	case "ethereum", "base", "bsc", "arbitrum":
		if !strings.HasPrefix(address, "0x") || len(address) != 42 {
			return fmt.Errorf("%w: expected 0x-prefixed 20-byte hex", ErrInvalidAddress)
		}
	}
	return nil
}
