package metrics

// Tier is a coarse qualitative bucket for an accuracy percentage, used by
// presentation layers (CLI tables, API responses) to label results.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
	TierBad       Tier = "bad"
)

// Rating maps an accuracy percentage to its tier using fixed thresholds:
// >=95 excellent, >=85 good, >=70 fair, >=50 poor, below that bad.
func Rating(accuracy float64) Tier {
	switch {
	case accuracy >= 95:
		return TierExcellent
	case accuracy >= 85:
		return TierGood
	case accuracy >= 70:
		return TierFair
	case accuracy >= 50:
		return TierPoor
	default:
		return TierBad
	}
}
