package scoring

// Composite weights and scales.
const (
	weightAmount  = 0.40
	weightWeekend = 0.20
	weightOddHour = 0.20
	weightVendor  = 0.20

	zscoreScale    = 4.0
	vendorBaseline = 2
	vendorScale    = 10.0
)

// Band ceilings. A score equal to a ceiling stays in the lower band.
const (
	LowCeiling    = 0.35
	MediumCeiling = 0.65
)

// RiskScore combines the per-row features into a composite score in [0, 1].
func RiskScore(zscore float64, isWeekend, isOddHour, vendorCount7d int) float64 {
	score := 0.0
	score += clip(zscore/zscoreScale, 0, 1) * weightAmount
	score += float64(isWeekend) * weightWeekend
	score += float64(isOddHour) * weightOddHour
	score += clip(float64(vendorCount7d-vendorBaseline)/vendorScale, 0, 1) * weightVendor
	return clip(score, 0, 1)
}

// LabelFor maps a composite score to its band.
func LabelFor(score float64) Label {
	switch {
	case score <= LowCeiling:
		return LabelLow
	case score <= MediumCeiling:
		return LabelMedium
	default:
		return LabelHigh
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
