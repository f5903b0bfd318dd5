package learning

import (
	"math"
	"time"
)

// computeMean calculates the arithmetic mean.
func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// computeVariance calculates sample variance (n-1 denominator).
func computeVariance(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return sumSq / float64(n-1)
}

// reliability shrinks toward zero for small n so one or two units never
// report perfect reliability.
func reliability(variance, prior float64, n int) float64 {
	return 1 / (1 + variance + prior/float64(n))
}

// support saturates toward 1 as n grows past k.
func support(n int, k float64) float64 {
	if k <= 0 {
		return 1
	}
	return 1 - math.Exp(-float64(n)/k)
}

// consistency is the share of units deviating from baseline in the same
// direction as delta.
func consistency(metrics []float64, baseline, delta float64) float64 {
	if len(metrics) == 0 || delta == 0 {
		return 0
	}
	agree := 0
	for _, m := range metrics {
		if (m-baseline)*delta > 0 {
			agree++
		}
	}
	return float64(agree) / float64(len(metrics))
}

// decay fits the lesson's deviations from baseline over time. It is the
// mean recency weight 0.5^(age/halfLife) times the share of delta that a
// least-squares line of deviation against age still predicts at age zero.
// An edge that has faded toward now scores lower than a steady one.
func decay(metrics []float64, ats []time.Time, baseline, delta float64, now time.Time, halfLife time.Duration) float64 {
	if len(ats) == 0 {
		return 0
	}
	if halfLife <= 0 {
		return 1
	}
	ages := make([]float64, len(ats))
	for i, at := range ats {
		age := now.Sub(at)
		if age < 0 {
			age = 0
		}
		ages[i] = float64(age) / float64(halfLife)
	}
	return recency(ages) * trend(metrics, ages, baseline, delta)
}

// recency is the mean of 0.5^age over ages in half-lives.
func recency(ages []float64) float64 {
	sum := 0.0
	for _, a := range ages {
		sum += math.Pow(0.5, a)
	}
	return sum / float64(len(ages))
}

// trend is the intercept of the deviation-on-age regression over delta,
// clamped to [0,1]. Evidence without age spread has no trend and scores 1.
func trend(metrics, ages []float64, baseline, delta float64) float64 {
	if delta == 0 || len(metrics) != len(ages) {
		return 1
	}
	devs := make([]float64, len(metrics))
	for i, m := range metrics {
		devs[i] = m - baseline
	}
	meanAge := computeMean(ages)
	meanDev := computeMean(devs)

	var cov, varAge float64
	for i := range ages {
		da := ages[i] - meanAge
		cov += da * (devs[i] - meanDev)
		varAge += da * da
	}
	if varAge == 0 {
		return 1
	}
	intercept := meanDev - cov/varAge*meanAge
	return math.Max(0, math.Min(1, intercept/delta))
}
