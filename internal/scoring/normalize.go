package scoring

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/auditor-agent/internal/logger"
	"github.com/shopspring/decimal"
)

// RequiredColumns are the column names every batch must carry (case-sensitive).
var RequiredColumns = []string{"transaction_id", "department", "vendor", "amount", "date", "time"}

// clockLayout is the strict hour:minute pattern accepted for the time column.
const clockLayout = "15:04"

// dateLayouts are tried in order when parsing the date column. Slash dates
// are month-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

var (
	errEmpty     = errors.New("empty value")
	errNonFinite = errors.New("amount is out of range")
)

// checkSchema reports every required column absent from columns.
func checkSchema(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// normalize validates the table and builds one Transaction per row with its
// effective timestamp set. degraded reports whether any row lost its
// time-of-day.
func normalize(ctx context.Context, table Table, fallback TimeFallback) (rows []*Transaction, degraded bool, err error) {
	if err := checkSchema(table.Columns); err != nil {
		return nil, false, err
	}

	rows = make([]*Transaction, 0, len(table.Rows))
	failedTimes := 0

	for i, rec := range table.Rows {
		amount, err := parseAmount(rec["amount"])
		if err != nil {
			return nil, false, &ParseError{Row: i, Column: "amount", Value: rec["amount"], Err: err}
		}

		date, err := parseDate(rec["date"])
		if err != nil {
			return nil, false, &ParseError{Row: i, Column: "date", Value: rec["date"], Err: err}
		}

		tx := &Transaction{
			TransactionID: rec["transaction_id"],
			Department:    rec["department"],
			Vendor:        rec["vendor"],
			Amount:        amount,
			Date:          rec["date"],
			Time:          rec["time"],
			Datetime:      date,
			InputRow:      i,
		}

		if clock, err := parseClock(rec["time"]); err != nil {
			failedTimes++
		} else {
			tx.Datetime = date.Add(clock)
		}

		rows = append(rows, tx)
	}

	if failedTimes == 0 {
		return rows, false, nil
	}

	log := logger.FromContext(ctx)
	if fallback == FallbackBatch {
		for _, tx := range rows {
			tx.Datetime = midnight(tx.Datetime)
		}
		log.Warn().
			Int("failed_rows", failedTimes).
			Int("rows", len(rows)).
			Msg("Time column could not be parsed; using date only for the whole batch")
	} else {
		log.Warn().
			Int("failed_rows", failedTimes).
			Int("rows", len(rows)).
			Msg("Time column could not be parsed for some rows; using date only for those rows")
	}

	return rows, true, nil
}

// parseAmount coerces an amount cell to float64 via exact decimal parsing.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errNonFinite
	}
	return f, nil
}

// parseDate parses a date cell and truncates it to midnight UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmpty
	}

	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return midnight(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseClock parses a strict HH:MM cell into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
