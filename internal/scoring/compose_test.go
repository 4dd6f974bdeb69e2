package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Label
	}{
		{0, LabelLow},
		{0.2, LabelLow},
		{0.35, LabelLow},
		{math.Nextafter(0.35, 1), LabelMedium},
		{0.5, LabelMedium},
		{0.65, LabelMedium},
		{math.Nextafter(0.65, 1), LabelHigh},
		{0.8, LabelHigh},
		{1, LabelHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelFor(tt.score), "score=%v", tt.score)
	}
}

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name        string
		zscore      float64
		weekend     int
		oddHour     int
		vendorCount int
		want        float64
	}{
		{"nothing unusual", 0, 0, 0, 1, 0},
		{"vendor baseline contributes nothing", 0, 0, 0, 2, 0},
		{"weekend only", 0, 1, 0, 1, 0.2},
		{"odd hour only", 0, 0, 1, 1, 0.2},
		{"z-score halfway", 2, 0, 0, 1, 0.2},
		{"z-score saturates", 40, 0, 0, 1, 0.4},
		{"vendor partial", 0, 0, 0, 7, 0.1},
		{"vendor saturates", 0, 0, 0, 50, 0.2},
		{"weekend and odd hour", 0, 1, 1, 1, 0.4},
		{"everything", 10, 1, 1, 12, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RiskScore(tt.zscore, tt.weekend, tt.oddHour, tt.vendorCount)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestRiskScore_AlwaysInRangeAndConsistentWithLabel(t *testing.T) {
	for z := 0.0; z <= 6; z += 0.25 {
		for weekend := 0; weekend <= 1; weekend++ {
			for odd := 0; odd <= 1; odd++ {
				for vc := 1; vc <= 15; vc++ {
					score := RiskScore(z, weekend, odd, vc)
					assert.GreaterOrEqual(t, score, 0.0)
					assert.LessOrEqual(t, score, 1.0)

					label := LabelFor(score)
					assert.Equal(t, score <= LowCeiling, label == LabelLow)
					assert.Equal(t, score > LowCeiling && score <= MediumCeiling, label == LabelMedium)
					assert.Equal(t, score > MediumCeiling, label == LabelHigh)
				}
			}
		}
	}
}
