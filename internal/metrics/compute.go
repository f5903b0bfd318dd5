package metrics

import (
	"math"
	"sort"
)

// computeFromTrades calculates the aggregate of one group. Trades are
// sorted by ExitAt ASC, TradeID ASC before computing order-dependent
// metrics (MaxDrawdownUSD, MaxConsecutiveLosses).
func computeFromTrades(group string, trades []Trade) Aggregate {
	n := len(trades)
	if n == 0 {
		return Aggregate{Group: group}
	}

	sorted := make([]Trade, n)
	copy(sorted, trades)
	sortTrades(sorted)

	wins := 0
	trims := 0
	reachedS3 := 0
	pnl := make([]float64, n)
	rr := make([]float64, n)
	roi := make([]float64, n)
	for i, t := range sorted {
		if t.Summary.PnLUSD > 0 {
			wins++
		}
		if t.Summary.DidTrim {
			trims++
		}
		if t.Summary.ReachedS3 {
			reachedS3++
		}
		pnl[i] = t.Summary.PnLUSD
		rr[i] = t.Summary.RR
		roi[i] = t.Summary.ROI
	}

	sortedRR := make([]float64, n)
	copy(sortedRR, rr)
	sort.Float64s(sortedRR)

	rrMean := computeMean(rr)
	totalTokens, tokenWinRate := computeTokenWinRate(sorted)

	return Aggregate{
		Group: group,

		TotalTrades:  n,
		TotalTokens:  totalTokens,
		Wins:         wins,
		Losses:       n - wins,
		WinRate:      computeRate(wins, n),
		TokenWinRate: tokenWinRate,
		TrimRate:     computeRate(trims, n),
		S3Rate:       computeRate(reachedS3, n),

		RRMean:   rrMean,
		RRMedian: computePercentile(sortedRR, 0.50),
		RRP10:    computePercentile(sortedRR, 0.10),
		RRP25:    computePercentile(sortedRR, 0.25),
		RRP75:    computePercentile(sortedRR, 0.75),
		RRP90:    computePercentile(sortedRR, 0.90),
		RRMin:    sortedRR[0],
		RRMax:    sortedRR[n-1],
		RRStddev: computeStddev(rr, rrMean),

		ROIMean:  computeMean(roi),
		PnLTotal: computeSum(pnl),

		MaxDrawdownUSD:       computeMaxDrawdown(pnl),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(pnl),
	}
}

func sortTrades(trades []Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].Summary.ExitAt.Equal(trades[j].Summary.ExitAt) {
			return trades[i].Summary.ExitAt.Before(trades[j].Summary.ExitAt)
		}
		return trades[i].Summary.TradeID < trades[j].Summary.TradeID
	})
}

// computeTokenWinRate groups trades by position key and counts a token as
// winning if at least one of its trades made money.
func computeTokenWinRate(trades []Trade) (int, float64) {
	if len(trades) == 0 {
		return 0, 0
	}

	won := make(map[string]bool)
	for _, t := range trades {
		k := t.Key.String()
		if t.Summary.PnLUSD > 0 {
			won[k] = true
		} else if _, ok := won[k]; !ok {
			won[k] = false
		}
	}

	winning := 0
	for _, w := range won {
		if w {
			winning++
		}
	}
	return len(won), float64(winning) / float64(len(won))
}

func computeRate(hits, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func computeSum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return computeSum(values) / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative values.
// Values must be in chronological order.
func computeMaxDrawdown(values []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range values {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of pnl <= 0.
func computeMaxConsecutiveLosses(values []float64) int {
	maxStreak := 0
	streak := 0
	for _, v := range values {
		if v <= 0 {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return maxStreak
}
