// Package report renders scored batches for export.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/auditor-agent/internal/scoring"
)

// Columns is the header of a scored CSV report.
var Columns = []string{
	"transaction_id", "department", "vendor", "amount", "date", "time",
	"datetime", "amount_zscore", "is_weekend", "is_odd_hour",
	"vendor_count_7d", "risk_score", "risk_label",
}

// WriteCSV writes rows in the order given, which callers keep canonical.
func WriteCSV(w io.Writer, rows []*scoring.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, tx := range rows {
		rec := []string{
			tx.TransactionID,
			tx.Department,
			tx.Vendor,
			formatFloat(tx.Amount),
			tx.Date,
			tx.Time,
			tx.Datetime.Format(time.DateTime),
			formatFloat(tx.AmountZScore),
			strconv.Itoa(tx.IsWeekend),
			strconv.Itoa(tx.IsOddHour),
			strconv.Itoa(tx.VendorCount7d),
			formatFloat(tx.RiskScore),
			string(tx.RiskLabel),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", tx.TransactionID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// CSVBytes renders rows as an in-memory CSV document.
func CSVBytes(rows []*scoring.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatFloat prints the shortest decimal that round-trips to f.
func formatFloat(f float64) string {
	return decimal.NewFromFloat(f).String()
}
