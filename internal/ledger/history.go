// Package ledger applies confirmed fills to a position and its execution
// history. Nothing here deduplicates: the executor reports each realized
// action exactly once and the ledger applies it exactly once.
package ledger

import (
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/money"
)

// RecordAction stamps the last realized action of a signal class.
func RecordAction(h *domain.ExecutionHistory, class domain.SignalClass, at time.Time, price float64) {
	if h.LastActions == nil {
		h.LastActions = make(map[domain.SignalClass]domain.LastAction)
	}
	h.LastActions[class] = domain.LastAction{At: at, Price: price}
}

// OnTrim adds trim proceeds to the pool. A pool that has started recovery
// is replaced: its unspent remainder becomes locked profit and the new pool
// holds only this trim. A pool not yet in recovery accumulates. Any trim
// resets the DX ladder and moves the anti-flap reference.
func OnTrim(h *domain.ExecutionHistory, valueUSD float64, bar int64, support float64) {
	pool := &h.TrimPool
	if pool.RecoveryStarted {
		pool.LockedProfitUSD = money.Add(pool.LockedProfitUSD, pool.USDBasis)
		pool.USDBasis = valueUSD
		pool.RecoveryStarted = false
	} else {
		pool.USDBasis = money.Add(pool.USDBasis, valueUSD)
	}
	pool.DX = domain.DXLadder{}
	h.LastTrim = &domain.LastTrim{Bar: bar, SupportLevel: support}
	h.DidTrim = true
}

// OnS2DipBuy spends the pool on an S2 retest add and marks recovery as
// started. The unspent remainder is locked in and returned.
func OnS2DipBuy(h *domain.ExecutionHistory, notionalUSD float64) float64 {
	pool := &h.TrimPool
	locked := money.SubFloor(pool.USDBasis, notionalUSD)
	pool.LockedProfitUSD = money.Add(pool.LockedProfitUSD, locked)
	pool.USDBasis = 0
	pool.RecoveryStarted = true
	return locked
}

// OnDXBuy spends pool basis on an S3 dip add and advances the ladder. The
// next rung arms armDistance below this fill.
func OnDXBuy(h *domain.ExecutionHistory, notionalUSD, price, armDistance float64) {
	pool := &h.TrimPool
	pool.USDBasis = money.SubFloor(pool.USDBasis, notionalUSD)
	pool.DX.BuysSinceTrim++
	pool.DX.LastBuyPrice = price
	pool.DX.NextArmedPrice = price - armDistance
}

// OnEmergencyExit remembers the exit for reclaim sizing. A new exit re-arms
// the one-time rebuy.
func OnEmergencyExit(h *domain.ExecutionHistory, at time.Time, price, valueUSD float64) {
	h.EmergencyExit = &domain.EmergencyExitRecord{
		At:           at,
		Price:        price,
		ExitValueUSD: valueUSD,
	}
}

// OnReclaimRebuy consumes the one-time rebuy of the last exit.
func OnReclaimRebuy(h *domain.ExecutionHistory) {
	if h.EmergencyExit != nil {
		h.EmergencyExit.RebuyConsumed = true
	}
}
