// Package verification checks that completed trades are reproduced exactly
// when the recorded feed is replayed.
package verification

import (
	"math"
	"sort"

	"trendloop/internal/metrics"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single trade.
type VerificationResult struct {
	TradeID     string
	Match       bool
	Divergences []FieldDivergence
	StoredPnL   float64
	ReplayedPnL float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalTrades     int // stored trades verified
	MatchedTrades   int
	DivergentTrades int
	MissingTrades   int // stored but never replayed
	ExtraTrades     int // replayed but never stored
	Results         []VerificationResult
}

// Match reports whether every trade was reproduced and nothing extra appeared.
func (r *VerificationReport) Match() bool {
	return r.DivergentTrades == 0 && r.MissingTrades == 0 && r.ExtraTrades == 0
}

// CompareSets matches stored and replayed trades by trade id.
// Results are ordered by trade id.
func CompareSets(stored, replayed []metrics.Trade) *VerificationReport {
	byID := make(map[string]metrics.Trade, len(replayed))
	for _, t := range replayed {
		byID[t.Summary.TradeID] = t
	}

	report := &VerificationReport{TotalTrades: len(stored)}
	seen := make(map[string]bool, len(stored))
	for _, s := range stored {
		id := s.Summary.TradeID
		seen[id] = true

		r, ok := byID[id]
		if !ok {
			report.MissingTrades++
			report.Results = append(report.Results, VerificationResult{
				TradeID:     id,
				Divergences: []FieldDivergence{{Field: "TradeID", Expected: id, Actual: nil}},
				StoredPnL:   s.Summary.PnLUSD,
			})
			continue
		}

		divs := CompareTrades(s, r)
		res := VerificationResult{
			TradeID:     id,
			Match:       len(divs) == 0,
			Divergences: divs,
			StoredPnL:   s.Summary.PnLUSD,
			ReplayedPnL: r.Summary.PnLUSD,
		}
		if res.Match {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
		report.Results = append(report.Results, res)
	}

	for _, r := range replayed {
		if !seen[r.Summary.TradeID] {
			report.ExtraTrades++
		}
	}

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].TradeID < report.Results[j].TradeID
	})
	return report
}

// CompareTrades compares two trades and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTrades(stored, replayed metrics.Trade) []FieldDivergence {
	var divs []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divs = append(divs, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	s, r := stored.Summary, replayed.Summary

	if stored.Key != replayed.Key {
		add("Key", stored.Key, replayed.Key)
	}
	if !s.EntryAt.Equal(r.EntryAt) {
		add("EntryAt", s.EntryAt, r.EntryAt)
	}
	if !s.ExitAt.Equal(r.ExitAt) {
		add("ExitAt", s.ExitAt, r.ExitAt)
	}

	floats := []struct {
		field    string
		expected float64
		actual   float64
	}{
		{"EntryPrice", s.EntryPrice, r.EntryPrice},
		{"ExitPrice", s.ExitPrice, r.ExitPrice},
		{"AllocatedUSD", s.AllocatedUSD, r.AllocatedUSD},
		{"ExtractedUSD", s.ExtractedUSD, r.ExtractedUSD},
		{"PnLUSD", s.PnLUSD, r.PnLUSD},
		{"ROI", s.ROI, r.ROI},
		{"RR", s.RR, r.RR},
	}
	for _, f := range floats {
		if !floatEquals(f.expected, f.actual) {
			add(f.field, f.expected, f.actual)
		}
	}

	if s.DidTrim != r.DidTrim {
		add("DidTrim", s.DidTrim, r.DidTrim)
	}
	if s.ReachedS3 != r.ReachedS3 {
		add("ReachedS3", s.ReachedS3, r.ReachedS3)
	}
	if s.EntryContext.PatternKey != r.EntryContext.PatternKey {
		add("EntryPattern", s.EntryContext.PatternKey, r.EntryContext.PatternKey)
	}
	if s.ClosedByState != r.ClosedByState {
		add("ClosedByState", s.ClosedByState, r.ClosedByState)
	}
	if s.ClosedReasonKey != r.ClosedReasonKey {
		add("ClosedReasonKey", s.ClosedReasonKey, r.ClosedReasonKey)
	}
	return divs
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
