package scoring

import (
	"fmt"
	"time"
)

// Table is a parsed batch of raw transaction rows keyed by column name.
// Columns preserves the header as received so schema checks can report
// exactly what is missing.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Label is the discrete risk band assigned to a scored transaction.
type Label string

const (
	// LabelLow covers scores up to and including LowCeiling.
	LabelLow Label = "Low"
	// LabelMedium covers scores above LowCeiling up to MediumCeiling.
	LabelMedium Label = "Medium"
	// LabelHigh covers scores above MediumCeiling.
	LabelHigh Label = "High"
)

// Transaction is one scored row: the raw fields plus every derived feature.
type Transaction struct {
	TransactionID string  `json:"transaction_id"`
	Department    string  `json:"department"`
	Vendor        string  `json:"vendor"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"` // as received
	Time          string  `json:"time"` // as received

	Datetime      time.Time `json:"datetime"` // effective timestamp
	AmountZScore  float64   `json:"amount_zscore"`
	IsWeekend     int       `json:"is_weekend"`
	IsOddHour     int       `json:"is_odd_hour"`
	VendorCount7d int       `json:"vendor_count_7d"`
	RiskScore     float64   `json:"risk_score"`
	RiskLabel     Label     `json:"risk_label"`

	// InputRow is the zero-based position of the row in the submitted table.
	InputRow int `json:"-"`
}

// DepartmentStats holds the per-batch amount statistics for one department.
type DepartmentStats struct {
	Count int
	Mean  float64
	Std   float64 // sample standard deviation, already floored to 1 when zero
}

// FlaggedTransaction is the display projection of a High-risk row.
type FlaggedTransaction struct {
	TransactionID string  `json:"transaction_id"`
	Department    string  `json:"department"`
	Vendor        string  `json:"vendor"`
	Amount        float64 `json:"amount"`
	RiskScore     float64 `json:"risk_score"`
}

// Summary aggregates a scored batch.
type Summary struct {
	TotalTransactions    int                  `json:"total_transactions"`
	HighRiskCount        int                  `json:"high_risk_count"`
	MediumRiskCount      int                  `json:"medium_risk_count"`
	LowRiskCount         int                  `json:"low_risk_count"`
	HighRiskAmount       float64              `json:"high_risk_amount"`
	AvgRiskScore         float64              `json:"avg_risk_score"`
	TopFlaggedDepartment string               `json:"top_flagged_department"`
	TopFlaggedVendor     string               `json:"top_flagged_vendor"`
	TimeFallbackApplied  bool                 `json:"time_fallback_applied"`
	HighRiskTransactions []FlaggedTransaction `json:"high_risk_transactions"`

	// PeriodStart and PeriodEnd are the earliest and latest effective
	// timestamps in the batch; nil when the batch is empty.
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

// Distribution returns the band counts keyed by label name.
func (s *Summary) Distribution() map[Label]int {
	return map[Label]int{
		LabelHigh:   s.HighRiskCount,
		LabelMedium: s.MediumRiskCount,
		LabelLow:    s.LowRiskCount,
	}
}

// TimeFallback selects how a failed time-of-day parse degrades timestamps.
type TimeFallback int

const (
	// FallbackBatch drops time-of-day for every row when any row's time
	// cannot be parsed. This is the long-standing default.
	FallbackBatch TimeFallback = iota

	// FallbackPerRow drops time-of-day only for the rows that failed.
	FallbackPerRow
)

// String implements fmt.Stringer.
func (f TimeFallback) String() string {
	switch f {
	case FallbackBatch:
		return "batch"
	case FallbackPerRow:
		return "row"
	default:
		return fmt.Sprintf("TimeFallback(%d)", int(f))
	}
}

// ParseTimeFallback maps "batch" or "row" to a TimeFallback. Empty selects
// the default.
func ParseTimeFallback(s string) (TimeFallback, error) {
	switch s {
	case "", "batch":
		return FallbackBatch, nil
	case "row":
		return FallbackPerRow, nil
	default:
		return FallbackBatch, fmt.Errorf("unknown time fallback %q (want batch or row)", s)
	}
}

// Options tunes a single scoring call.
type Options struct {
	TimeFallback TimeFallback
}

// Result is the output of a scoring call. Scored is in canonical order:
// ascending effective timestamp, ties kept in input order.
type Result struct {
	Scored  []*Transaction
	Summary *Summary
}
