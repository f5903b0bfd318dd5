// Package metrics summarizes completed trades into per-group outcome
// statistics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// ErrNoTrades is returned when no completed trades are available.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Trade is a completed trade together with the position it belongs to.
type Trade struct {
	Key     domain.PositionKey
	Bucket  string
	Summary domain.TradeSummary
}

// Aggregate holds outcome statistics for one group of trades.
type Aggregate struct {
	Group string

	TotalTrades  int
	TotalTokens  int
	Wins         int
	Losses       int
	WinRate      float64
	TokenWinRate float64
	TrimRate     float64
	S3Rate       float64

	RRMean   float64
	RRMedian float64
	RRP10    float64
	RRP25    float64
	RRP75    float64
	RRP90    float64
	RRMin    float64
	RRMax    float64
	RRStddev float64

	ROIMean  float64
	PnLTotal float64

	MaxDrawdownUSD       float64
	MaxConsecutiveLosses int
}

// GroupFunc names the group a trade belongs to.
type GroupFunc func(Trade) string

// ByPattern groups trades by the pattern that opened them.
func ByPattern(t Trade) string {
	if t.Summary.EntryContext.PatternKey == "" {
		return "unknown"
	}
	return t.Summary.EntryContext.PatternKey
}

// ByExit groups trades by the state that closed them.
func ByExit(t Trade) string {
	return t.Summary.ClosedByState.String()
}

// ByChain groups trades by chain.
func ByChain(t Trade) string {
	return t.Key.Chain
}

// Overall puts every trade in one group.
func Overall(Trade) string {
	return "all"
}

// Aggregator reads completed trades from the position store.
type Aggregator struct {
	positions storage.PositionStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(positions storage.PositionStore) *Aggregator {
	return &Aggregator{positions: positions}
}

// Trades returns every completed trade across all positions.
func (a *Aggregator) Trades(ctx context.Context) ([]Trade, error) {
	positions, err := a.positions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	var trades []Trade
	for _, p := range positions {
		for _, s := range p.CompletedTrades {
			trades = append(trades, Trade{Key: p.Key, Bucket: p.Instrument.Bucket, Summary: s})
		}
	}
	sortTrades(trades)
	return trades, nil
}

// Compute loads completed trades and aggregates them by group.
// Returns ErrNoTrades if no trade has closed yet.
func (a *Aggregator) Compute(ctx context.Context, group GroupFunc) ([]Aggregate, error) {
	trades, err := a.Trades(ctx)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}
	return Summarize(trades, group), nil
}

// Summarize aggregates trades by group, ordered by group name.
func Summarize(trades []Trade, group GroupFunc) []Aggregate {
	groups := make(map[string][]Trade)
	for _, t := range trades {
		g := group(t)
		groups[g] = append(groups[g], t)
	}

	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)

	out := make([]Aggregate, 0, len(names))
	for _, g := range names {
		out = append(out, computeFromTrades(g, groups[g]))
	}
	return out
}
