package reporting

import (
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/metrics"
)

// Report is the portfolio performance report.
type Report struct {
	GeneratedAt time.Time

	Portfolio PortfolioSummary

	// Overall is nil until a trade has closed.
	Overall *metrics.Aggregate

	// Sorted by group name.
	ByPattern []metrics.Aggregate
	ByExit    []metrics.Aggregate
	ByChain   []metrics.Aggregate

	// Lessons sorted by |edge| DESC, id ASC.
	Lessons []domain.Lesson

	// Trades in exit order, for CSV export.
	Trades []metrics.Trade
}

// PortfolioSummary describes the book at report time.
type PortfolioSummary struct {
	Positions        int
	Active           int
	Watchlist        int
	Dormant          int
	AllocationUSD    float64
	DeployedUSD      float64
	RealizedPnLUSD   float64
	UnrealizedPnLUSD float64
	TotalTrades      int
	FirstEntry       time.Time
	LastExit         time.Time
}
