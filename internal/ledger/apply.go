package ledger

import (
	"fmt"
	"time"

	"trendloop/internal/domain"
)

// Fill is a confirmed execution reported by the executor.
type Fill struct {
	At          time.Time
	Price       float64
	Quantity    float64
	NotionalUSD float64
}

// Context is tick data the write-back needs beyond the fill.
type Context struct {
	Bar          int64
	ATR          float64
	SupportLevel float64
	DXArmATR     float64
	Scope        map[string]string
}

// Apply writes one realized action back onto the position. It must be
// called once per confirmed fill and never for proposed-only actions.
func Apply(p *domain.Position, a domain.Action, f Fill, c Context) error {
	h := &p.History
	switch a.Type {
	case domain.ActionEntry, domain.ActionAdd:
		entry := domain.EntryContext{
			State:      a.Reason.State,
			PatternKey: a.Reason.PatternKey,
			Scores:     a.Reason.Scores,
			A:          a.Reason.A,
			E:          a.Reason.E,
			Price:      f.Price,
			ATR:        c.ATR,
			Scope:      c.Scope,
		}
		if err := ApplyBuy(p, f.At, f.Price, f.Quantity, f.NotionalUSD, entry); err != nil {
			return err
		}
		switch {
		case a.SignalClass == domain.SignalS2Buy && a.Type == domain.ActionAdd:
			OnS2DipBuy(h, f.NotionalUSD)
		case a.SignalClass == domain.SignalS3Buy && a.Type == domain.ActionAdd && a.Reason.Flag == domain.FlagBuyFlag:
			OnDXBuy(h, f.NotionalUSD, f.Price, c.DXArmATR*c.ATR)
		case a.SignalClass == domain.SignalReclaimBuy:
			OnReclaimRebuy(h)
		}

	case domain.ActionTrim:
		proceeds, err := ApplySell(p, f.At, f.Price, f.Quantity)
		if err != nil {
			return err
		}
		OnTrim(h, proceeds, c.Bar, c.SupportLevel)

	case domain.ActionEmergencyExit:
		proceeds, err := ApplySell(p, f.At, f.Price, f.Quantity)
		if err != nil {
			return err
		}
		// Losing the reclaim keeps the consumed rebuy of the original exit.
		if a.Reason.Flag != domain.FlagReclaim {
			OnEmergencyExit(h, f.At, f.Price, proceeds)
		}

	default:
		return fmt.Errorf("apply %s: unknown action type %q", p.Key, a.Type)
	}

	RecordAction(h, a.SignalClass, f.At, f.Price)
	if p.CurrentTradeID != "" {
		h.TradeActions = append(h.TradeActions, domain.ActionRecord{
			At:         f.At,
			PatternKey: a.Reason.PatternKey,
			Category:   a.Reason.Category,
			Scope:      domain.CloneScope(c.Scope),
		})
	}
	return nil
}
