// Package execution holds the order boundary between the planner and a venue.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trendloop/internal/domain"
	"trendloop/internal/ledger"
	"trendloop/internal/money"
)

// ErrRejected is returned when an order cannot be filled.
var ErrRejected = errors.New("order rejected")

// Order is one planned action priced against the tick.
type Order struct {
	Key    domain.PositionKey
	Action domain.Action
	At     time.Time
	Price  float64 // reference price of the tick

	// Buys spend NotionalUSD; sells dispose of Quantity.
	NotionalUSD float64
	Quantity    float64
}

// Paper fills every order immediately at the reference price moved against
// the trader by a fixed slippage.
type Paper struct {
	slippage float64
	log      zerolog.Logger
}

// NewPaper creates a paper executor. slippageBps is in basis points.
func NewPaper(slippageBps float64, log zerolog.Logger) *Paper {
	return &Paper{
		slippage: slippageBps / 10_000,
		log:      log.With().Str("component", "paper_executor").Logger(),
	}
}

// Execute fills the order or returns ErrRejected.
func (p *Paper) Execute(ctx context.Context, o Order) (ledger.Fill, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Fill{}, err
	}
	if o.Price <= 0 {
		return ledger.Fill{}, fmt.Errorf("%w: %s non-positive price %v", ErrRejected, o.Key, o.Price)
	}

	var fill ledger.Fill
	fill.At = o.At
	if o.Action.Buy() {
		if !money.Positive(o.NotionalUSD) {
			return ledger.Fill{}, fmt.Errorf("%w: %s empty notional", ErrRejected, o.Key)
		}
		fill.Price = money.Mul(o.Price, 1+p.slippage)
		fill.NotionalUSD = o.NotionalUSD
		fill.Quantity = money.Div(o.NotionalUSD, fill.Price)
	} else {
		if !money.Positive(o.Quantity) {
			return ledger.Fill{}, fmt.Errorf("%w: %s empty quantity", ErrRejected, o.Key)
		}
		fill.Price = money.Mul(o.Price, 1-p.slippage)
		fill.Quantity = o.Quantity
		fill.NotionalUSD = money.Mul(o.Quantity, fill.Price)
	}

	p.log.Debug().
		Str("position", o.Key.String()).
		Str("action", string(o.Action.Type)).
		Float64("price", fill.Price).
		Float64("quantity", fill.Quantity).
		Float64("notional_usd", fill.NotionalUSD).
		Msg("paper fill")
	return fill, nil
}
