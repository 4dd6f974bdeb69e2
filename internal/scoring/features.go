package scoring

import (
	"math"
	"sort"
	"time"
)

// vendorWindow is the trailing interval used for vendor frequency counts.
const vendorWindow = 7 * 24 * time.Hour

// departmentStats computes mean and sample standard deviation of amount per
// department. Welford's update keeps the variance of identical amounts at
// exactly zero, which is then floored to 1 along with singletons.
func departmentStats(rows []*Transaction) map[string]DepartmentStats {
	type acc struct {
		n    int
		mean float64
		m2   float64
	}
	accs := make(map[string]*acc)

	for _, tx := range rows {
		a := accs[tx.Department]
		if a == nil {
			a = &acc{}
			accs[tx.Department] = a
		}
		a.n++
		delta := tx.Amount - a.mean
		a.mean += delta / float64(a.n)
		a.m2 += delta * (tx.Amount - a.mean)
	}

	stats := make(map[string]DepartmentStats, len(accs))
	for dept, a := range accs {
		std := 0.0
		if a.n > 1 {
			std = math.Sqrt(a.m2 / float64(a.n-1))
		}
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		stats[dept] = DepartmentStats{Count: a.n, Mean: a.mean, Std: std}
	}
	return stats
}

// deriveFeatures sets the z-score and calendar flags on every row.
func deriveFeatures(rows []*Transaction, stats map[string]DepartmentStats) {
	for _, tx := range rows {
		ds := stats[tx.Department]
		z := math.Abs(tx.Amount-ds.Mean) / ds.Std
		// Sums of amounts near the float64 limit overflow the statistics.
		if math.IsNaN(z) || math.IsInf(z, 0) {
			z = math.MaxFloat64
		}
		tx.AmountZScore = z
		tx.IsWeekend = boolToInt(isWeekend(tx.Datetime))
		tx.IsOddHour = boolToInt(isOddHour(tx.Datetime))
	}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// isOddHour reports hours before 08:00 or after 19:59.
func isOddHour(t time.Time) bool {
	h := t.Hour()
	return h < 8 || h > 19
}

// sortCanonical orders rows by effective timestamp, keeping input order for
// equal timestamps.
func sortCanonical(rows []*Transaction) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Datetime.Before(rows[j].Datetime)
	})
}

// countVendorWindows sets VendorCount7d: the number of same-vendor rows whose
// timestamp falls in [t-7d, t], the row itself included. rows must already be
// in canonical order.
func countVendorWindows(rows []*Transaction) {
	byVendor := make(map[string][]*Transaction)
	for _, tx := range rows {
		byVendor[tx.Vendor] = append(byVendor[tx.Vendor], tx)
	}

	for _, group := range byVendor {
		for _, tx := range group {
			t := tx.Datetime
			from := t.Add(-vendorWindow)
			lo := sort.Search(len(group), func(i int) bool { return !group[i].Datetime.Before(from) })
			hi := sort.Search(len(group), func(i int) bool { return group[i].Datetime.After(t) })
			tx.VendorCount7d = hi - lo
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
