package decision

import "trendloop/internal/config"

// ATier maps aggressiveness to a sizing tier.
func ATier(cfg config.DecisionConfig, a float64) string {
	switch {
	case a >= cfg.AggressiveMin:
		return TierAggressive
	case a >= cfg.ANormalMin:
		return TierNormal
	default:
		return TierPatient
	}
}

// ETier maps exitness to a trim tier.
func ETier(cfg config.DecisionConfig, e float64) string {
	switch {
	case e >= cfg.EHighMin:
		return TierHigh
	case e >= cfg.ENormalMin:
		return TierNormal
	default:
		return TierLow
	}
}

func aFraction(t config.ATiers, tier string) float64 {
	switch tier {
	case TierAggressive:
		return t.Aggressive
	case TierNormal:
		return t.Normal
	default:
		return t.Patient
	}
}

func eFraction(t config.ETiers, tier string) float64 {
	switch tier {
	case TierHigh:
		return t.High
	case TierNormal:
		return t.Normal
	default:
		return t.Low
	}
}
