package execution

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/domain"
)

var key = domain.PositionKey{Token: "tok", Chain: "solana", Timeframe: "1h"}

func TestPaper_BuyPaysSlippage(t *testing.T) {
	p := NewPaper(100, zerolog.Nop())
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	fill, err := p.Execute(context.Background(), Order{
		Key:         key,
		Action:      domain.Action{Type: domain.ActionEntry},
		At:          at,
		Price:       10,
		NotionalUSD: 101,
	})
	require.NoError(t, err)
	assert.Equal(t, at, fill.At)
	assert.InDelta(t, 10.1, fill.Price, 1e-9)
	assert.InDelta(t, 10, fill.Quantity, 1e-9)
	assert.InDelta(t, 101, fill.NotionalUSD, 1e-9)
}

func TestPaper_SellReceivesLess(t *testing.T) {
	p := NewPaper(100, zerolog.Nop())

	fill, err := p.Execute(context.Background(), Order{
		Key:      key,
		Action:   domain.Action{Type: domain.ActionTrim},
		Price:    10,
		Quantity: 5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 9.9, fill.Price, 1e-9)
	assert.InDelta(t, 5, fill.Quantity, 1e-9)
	assert.InDelta(t, 49.5, fill.NotionalUSD, 1e-9)
}

func TestPaper_Rejects(t *testing.T) {
	p := NewPaper(0, zerolog.Nop())
	ctx := context.Background()

	_, err := p.Execute(ctx, Order{Key: key, Action: domain.Action{Type: domain.ActionEntry}, Price: 0, NotionalUSD: 10})
	assert.ErrorIs(t, err, ErrRejected)

	_, err = p.Execute(ctx, Order{Key: key, Action: domain.Action{Type: domain.ActionEntry}, Price: 1})
	assert.ErrorIs(t, err, ErrRejected)

	_, err = p.Execute(ctx, Order{Key: key, Action: domain.Action{Type: domain.ActionEmergencyExit}, Price: 1})
	assert.ErrorIs(t, err, ErrRejected)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Execute(cancelled, Order{Key: key, Action: domain.Action{Type: domain.ActionEntry}, Price: 1, NotionalUSD: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
