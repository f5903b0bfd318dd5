package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendloop/internal/domain"
)

const solMint = "So11111111111111111111111111111111111111112"

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestPosition(t *testing.T) *domain.Position {
	t.Helper()
	p, err := NewPosition(
		domain.PositionKey{Token: solMint, Chain: "solana", Timeframe: "1h"},
		"SOL", domain.ClassifyInstrument(domain.InstrumentCrypto, "large"), 1000, t0,
	)
	require.NoError(t, err)
	return p
}

func TestNewPosition_Validation(t *testing.T) {
	inst := domain.ClassifyInstrument(domain.InstrumentCrypto, "small")
	tests := []struct {
		name  string
		key   domain.PositionKey
		alloc float64
	}{
		{"bad solana address", domain.PositionKey{Token: "not-base58-0OIl", Chain: "solana", Timeframe: "1h"}, 100},
		{"short evm address", domain.PositionKey{Token: "0x1234", Chain: "base", Timeframe: "1h"}, 100},
		{"missing timeframe", domain.PositionKey{Token: solMint, Chain: "solana"}, 100},
		{"zero allocation", domain.PositionKey{Token: solMint, Chain: "solana", Timeframe: "1h"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPosition(tt.key, "X", inst, tt.alloc, t0)
			assert.ErrorIs(t, err, ErrInvalidPosition)
		})
	}

	p := newTestPosition(t)
	assert.Equal(t, domain.StatusWatchlist, p.Status)
	assert.NoError(t, p.CheckInvariant())
}

func TestApplyBuySell_OpensAndClosesTrade(t *testing.T) {
	p := newTestPosition(t)

	entry := domain.EntryContext{State: domain.StateS1, PatternKey: "S1.buy_signal.entry", Price: 10, ATR: 0.5}
	require.NoError(t, ApplyBuy(p, t0, 10, 60, 600, entry))
	assert.Equal(t, domain.StatusActive, p.Status)
	assert.NotEmpty(t, p.CurrentTradeID)
	assert.NoError(t, p.CheckInvariant())
	tradeID := p.CurrentTradeID

	require.NoError(t, ApplyBuy(p, t0.Add(time.Hour), 12, 10, 120, domain.EntryContext{}))
	assert.Equal(t, tradeID, p.CurrentTradeID, "adds stay in the open trade")
	assert.InDelta(t, (600.0+120.0)/70.0, p.AvgEntryPrice, 1e-9)
	assert.Equal(t, 720.0, p.AllocatedUSD)
	assert.Equal(t, 400.0, p.RemainingAllocationUSD())

	MarkState(p, domain.StateOutput{State: domain.StateS3})
	assert.True(t, p.History.ReachedS3)

	proceeds, err := ApplySell(p, t0.Add(2*time.Hour), 15, 70)
	require.NoError(t, err)
	assert.Equal(t, 1050.0, proceeds)
	assert.True(t, p.Flat())

	_, err = CloseTrade(p, t0.Add(3*time.Hour), domain.StateS0, "S0.emergency_exit.exit")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWatchlist, p.Status)
	assert.Empty(t, p.CurrentTradeID)
	assert.NoError(t, p.CheckInvariant())
	require.Len(t, p.CompletedTrades, 1)

	s := p.CompletedTrades[0]
	assert.Equal(t, tradeID, s.TradeID)
	assert.Equal(t, 330.0, s.PnLUSD)
	assert.InDelta(t, 330.0/720.0, s.ROI, 1e-6)
	// risk = 720 * 0.5/10 = 36
	assert.InDelta(t, 330.0/36.0, s.RR, 1e-6)
	assert.True(t, s.ReachedS3)
	assert.Equal(t, 15.0, s.ExitPrice)
	assert.Zero(t, p.AllocatedUSD)
	assert.Nil(t, p.History.EntryContext)
}

func TestCloseTrade_Errors(t *testing.T) {
	p := newTestPosition(t)
	_, err := CloseTrade(p, t0, domain.StateS0, "")
	assert.ErrorIs(t, err, ErrNoOpenTrade)

	require.NoError(t, ApplyBuy(p, t0, 10, 1, 10, domain.EntryContext{}))
	_, err = CloseTrade(p, t0, domain.StateS0, "")
	assert.ErrorIs(t, err, ErrNotFlat)
}

func TestApplySell_ClampsToHeld(t *testing.T) {
	p := newTestPosition(t)
	require.NoError(t, ApplyBuy(p, t0, 10, 5, 50, domain.EntryContext{}))
	proceeds, err := ApplySell(p, t0, 10, 8)
	require.NoError(t, err)
	assert.Equal(t, 50.0, proceeds)
	assert.True(t, p.Flat())
}

func TestApplyBuy_InvalidFill(t *testing.T) {
	p := newTestPosition(t)
	assert.ErrorIs(t, ApplyBuy(p, t0, 0, 1, 1, domain.EntryContext{}), ErrInvalidFill)
	_, err := ApplySell(p, t0, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidFill)
}

func TestMarkPrice(t *testing.T) {
	p := newTestPosition(t)
	require.NoError(t, ApplyBuy(p, t0, 10, 5, 50, domain.EntryContext{}))
	MarkPrice(p, 12)
	assert.Equal(t, 10.0, p.UnrealizedPnLUSD)
}
