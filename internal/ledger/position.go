package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/idhash"
	"trendloop/internal/money"
)

var (
	// ErrNoOpenTrade is returned when closing a position without a trade.
	ErrNoOpenTrade = errors.New("no open trade")

	// ErrNotFlat is returned when closing a trade that still holds quantity.
	ErrNotFlat = errors.New("position not flat")

	// ErrInvalidFill is returned for fills with non-positive price or quantity.
	ErrInvalidFill = errors.New("invalid fill")

	// ErrInvalidPosition is returned by NewPosition for malformed identity.
	ErrInvalidPosition = errors.New("invalid position")
)

// NewPosition validates identity and returns a watchlist position.
func NewPosition(key domain.PositionKey, ticker string, instrument domain.Instrument, allocationUSD float64, now time.Time) (*domain.Position, error) {
	if strings.TrimSpace(key.Chain) == "" || strings.TrimSpace(key.Timeframe) == "" {
		return nil, fmt.Errorf("%w: chain and timeframe are required", ErrInvalidPosition)
	}
	if err := domain.ValidateTokenAddress(key.Chain, key.Token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	if allocationUSD <= 0 {
		return nil, fmt.Errorf("%w: allocation must be positive", ErrInvalidPosition)
	}
	return &domain.Position{
		Key:           key,
		Ticker:        ticker,
		Status:        domain.StatusWatchlist,
		Instrument:    instrument,
		AllocationUSD: allocationUSD,
		UpdatedAt:     now,
	}, nil
}

// ApplyBuy adds a filled buy. The first buy of a flat, inactive position
// opens a trade and snapshots the entry context.
func ApplyBuy(p *domain.Position, at time.Time, price, qty, notionalUSD float64, entry domain.EntryContext) error {
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("%w: price %v qty %v", ErrInvalidFill, price, qty)
	}
	if p.CurrentTradeID == "" {
		openTrade(p, at, entry)
	}
	total := p.Quantity + qty
	p.AvgEntryPrice = (p.AvgEntryPrice*p.Quantity + price*qty) / total
	p.Quantity = total
	p.AllocatedUSD = money.Add(p.AllocatedUSD, notionalUSD)
	p.UpdatedAt = at
	return nil
}

func openTrade(p *domain.Position, at time.Time, entry domain.EntryContext) {
	p.CurrentTradeID = idhash.ComputeTradeID(p.Key.Chain, p.Key.Token, p.Key.Timeframe, at.UnixMilli())
	p.TradeOpenedAt = at
	p.Status = domain.StatusActive
	entry.Scope = domain.CloneScope(entry.Scope)
	p.History.EntryContext = &entry
	p.History.DidTrim = false
	p.History.ReachedS3 = entry.State == domain.StateS3
	p.History.TradeActions = nil
}

// ApplySell removes a filled sell and returns its proceeds. Quantity above
// the held amount is clamped.
func ApplySell(p *domain.Position, at time.Time, price, qty float64) (float64, error) {
	if price <= 0 || qty <= 0 {
		return 0, fmt.Errorf("%w: price %v qty %v", ErrInvalidFill, price, qty)
	}
	if qty > p.Quantity {
		qty = p.Quantity
	}
	proceeds := money.Mul(price, qty)
	p.RealizedPnLUSD = money.Add(p.RealizedPnLUSD, money.Mul(price-p.AvgEntryPrice, qty))
	p.ExtractedUSD = money.Add(p.ExtractedUSD, proceeds)
	p.SoldQuantity += qty
	p.AvgExitPrice = p.ExtractedUSD / p.SoldQuantity
	p.Quantity -= qty
	if p.Quantity < 1e-12 {
		p.Quantity = 0
		p.AvgEntryPrice = 0
	}
	p.UpdatedAt = at
	return proceeds, nil
}

// MarkState records per-trade state milestones.
func MarkState(p *domain.Position, out domain.StateOutput) {
	p.LastOutput = out
	if p.CurrentTradeID != "" && out.State == domain.StateS3 {
		p.History.ReachedS3 = true
	}
}

// MarkPrice refreshes unrealized PnL.
func MarkPrice(p *domain.Position, price float64) {
	if p.Flat() || price <= 0 {
		p.UnrealizedPnLUSD = 0
		return
	}
	p.UnrealizedPnLUSD = money.Mul(price-p.AvgEntryPrice, p.Quantity)
}

// CloseTrade atomically closes the open trade of a flat position: the
// summary is appended, per-trade bookkeeping is reset and the closure fact
// is returned for export.
func CloseTrade(p *domain.Position, at time.Time, closedBy domain.State, reasonKey string) (domain.TradeFact, error) {
	if p.CurrentTradeID == "" {
		return domain.TradeFact{}, fmt.Errorf("close %s: %w", p.Key, ErrNoOpenTrade)
	}
	if !p.Flat() {
		return domain.TradeFact{}, fmt.Errorf("close %s: %w (qty %v)", p.Key, ErrNotFlat, p.Quantity)
	}

	var entry domain.EntryContext
	if p.History.EntryContext != nil {
		entry = *p.History.EntryContext
		entry.Scope = domain.CloneScope(entry.Scope)
	}

	pnl := money.Sub(p.ExtractedUSD, p.AllocatedUSD)
	roi := money.Div(pnl, p.AllocatedUSD)
	rr := roi
	if entry.Price > 0 && entry.ATR > 0 {
		// one ATR from entry is the initial risk unit
		risk := money.Mul(p.AllocatedUSD, entry.ATR/entry.Price)
		if risk > 0 {
			rr = money.Div(pnl, risk)
		}
	}

	summary := domain.TradeSummary{
		TradeID:         p.CurrentTradeID,
		EntryAt:         p.TradeOpenedAt,
		ExitAt:          at,
		EntryPrice:      entry.Price,
		ExitPrice:       p.AvgExitPrice,
		AllocatedUSD:    p.AllocatedUSD,
		ExtractedUSD:    p.ExtractedUSD,
		PnLUSD:          pnl,
		ROI:             roi,
		RR:              rr,
		DidTrim:         p.History.DidTrim,
		ReachedS3:       p.History.ReachedS3,
		EntryContext:    entry,
		ClosedByState:   closedBy,
		ClosedReasonKey: reasonKey,
	}
	fact := domain.TradeFact{
		TradeID:     p.CurrentTradeID,
		PositionKey: p.Key,
		Summary:     summary,
		ClosedAt:    at,
	}
	actions := p.History.TradeActions

	p.CompletedTrades = append(p.CompletedTrades, summary)
	p.CurrentTradeID = ""
	p.TradeOpenedAt = time.Time{}
	p.Status = domain.StatusWatchlist
	p.Quantity = 0
	p.SoldQuantity = 0
	p.AvgEntryPrice = 0
	p.AvgExitPrice = 0
	p.AllocatedUSD = 0
	p.ExtractedUSD = 0
	p.UnrealizedPnLUSD = 0

	h := &p.History
	h.TrimPool = domain.TrimPool{}
	h.LastTrim = nil
	h.DidTrim = false
	h.ReachedS3 = false
	h.EntryContext = nil
	h.TradeActions = nil
	p.UpdatedAt = at

	fact.Actions = actions
	return fact, nil
}
