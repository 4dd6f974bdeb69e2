package scoring

// NotAvailable is reported for top department/vendor when nothing is High.
const NotAvailable = "N/A"

// MaxFlaggedTransactions caps the High-risk rows carried in a Summary.
const MaxFlaggedTransactions = 50

// Summarize aggregates rows, which must be in canonical order. Ties for the
// top department and vendor go to the lexicographically smallest name.
func Summarize(rows []*Transaction) *Summary {
	s := &Summary{
		TotalTransactions:    len(rows),
		TopFlaggedDepartment: NotAvailable,
		TopFlaggedVendor:     NotAvailable,
		HighRiskTransactions: []FlaggedTransaction{},
	}

	deptAmount := make(map[string]float64)
	vendorCount := make(map[string]int)
	var scoreSum float64

	for _, tx := range rows {
		scoreSum += tx.RiskScore

		switch tx.RiskLabel {
		case LabelLow:
			s.LowRiskCount++
		case LabelMedium:
			s.MediumRiskCount++
		case LabelHigh:
			s.HighRiskCount++
			s.HighRiskAmount += tx.Amount
			deptAmount[tx.Department] += tx.Amount
			vendorCount[tx.Vendor]++
			if len(s.HighRiskTransactions) < MaxFlaggedTransactions {
				s.HighRiskTransactions = append(s.HighRiskTransactions, FlaggedTransaction{
					TransactionID: tx.TransactionID,
					Department:    tx.Department,
					Vendor:        tx.Vendor,
					Amount:        tx.Amount,
					RiskScore:     tx.RiskScore,
				})
			}
		}
	}

	if len(rows) > 0 {
		s.AvgRiskScore = scoreSum / float64(len(rows))
		start, end := rows[0].Datetime, rows[len(rows)-1].Datetime
		s.PeriodStart, s.PeriodEnd = &start, &end
	}
	if name, ok := argmax(deptAmount); ok {
		s.TopFlaggedDepartment = name
	}
	if name, ok := argmax(vendorCount); ok {
		s.TopFlaggedVendor = name
	}

	return s
}

// argmax returns the key with the largest value, preferring the smaller key
// on ties.
func argmax[V int | float64](m map[string]V) (string, bool) {
	var (
		best    string
		bestVal V
		found   bool
	)
	for k, v := range m {
		if !found || v > bestVal || (v == bestVal && k < best) {
			best, bestVal, found = k, v, true
		}
	}
	return best, found
}
