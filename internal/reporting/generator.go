// Package reporting renders trade and lesson reports from the stores.
package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/metrics"
	"trendloop/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	positions  storage.PositionStore
	lessons    storage.LessonStore
	aggregator *metrics.Aggregator
	maxLessons int
	now        func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a new report generator. maxLessons <= 0 keeps every lesson.
func NewGenerator(positions storage.PositionStore, lessons storage.LessonStore, maxLessons int) *Generator {
	return &Generator{
		positions:  positions,
		lessons:    lessons,
		aggregator: metrics.NewAggregator(positions),
		maxLessons: maxLessons,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	positions, err := g.positions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	trades, err := g.aggregator.Trades(ctx)
	if err != nil {
		return nil, err
	}

	lessons, err := g.lessons.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		Portfolio:   summarizePortfolio(positions, trades),
		Lessons:     g.rankLessons(lessons),
		Trades:      trades,
	}

	if len(trades) > 0 {
		overall := metrics.Summarize(trades, metrics.Overall)[0]
		report.Overall = &overall
		report.ByPattern = metrics.Summarize(trades, metrics.ByPattern)
		report.ByExit = metrics.Summarize(trades, metrics.ByExit)
		report.ByChain = metrics.Summarize(trades, metrics.ByChain)
	}
	return report, nil
}

func summarizePortfolio(positions []*domain.Position, trades []metrics.Trade) PortfolioSummary {
	var s PortfolioSummary
	s.Positions = len(positions)
	for _, p := range positions {
		switch p.Status {
		case domain.StatusActive:
			s.Active++
			s.DeployedUSD += p.AllocatedUSD - p.ExtractedUSD
		case domain.StatusWatchlist:
			s.Watchlist++
		case domain.StatusDormant:
			s.Dormant++
		}
		s.AllocationUSD += p.AllocationUSD
		s.RealizedPnLUSD += p.RealizedPnLUSD
		s.UnrealizedPnLUSD += p.UnrealizedPnLUSD
	}

	s.TotalTrades = len(trades)
	for _, t := range trades {
		if s.FirstEntry.IsZero() || t.Summary.EntryAt.Before(s.FirstEntry) {
			s.FirstEntry = t.Summary.EntryAt
		}
		if t.Summary.ExitAt.After(s.LastExit) {
			s.LastExit = t.Summary.ExitAt
		}
	}
	return s
}

func (g *Generator) rankLessons(lessons []domain.Lesson) []domain.Lesson {
	out := make([]domain.Lesson, len(lessons))
	copy(out, lessons)
	sort.Slice(out, func(i, j int) bool {
		ei, ej := math.Abs(out[i].Edge), math.Abs(out[j].Edge)
		if ei != ej {
			return ei > ej
		}
		return out[i].ID < out[j].ID
	})
	if g.maxLessons > 0 && len(out) > g.maxLessons {
		out = out[:g.maxLessons]
	}
	return out
}

// IsEmpty reports whether a report carries neither trades nor lessons.
func IsEmpty(r *Report) bool {
	return r == nil || (len(r.Trades) == 0 && len(r.Lessons) == 0)
}
