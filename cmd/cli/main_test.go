package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/auditor-agent/internal/report"
	"github.com/dvloznov/auditor-agent/internal/scoring"
)

func TestPrintInspection(t *testing.T) {
	s := &scoring.Summary{
		TotalTransactions:    4,
		HighRiskCount:        1,
		MediumRiskCount:      1,
		LowRiskCount:         2,
		HighRiskAmount:       9000,
		AvgRiskScore:         0.3,
		TopFlaggedDepartment: "Finance",
		TopFlaggedVendor:     "Acme",
		TimeFallbackApplied:  true,
		HighRiskTransactions: []scoring.FlaggedTransaction{
			{TransactionID: "t9", Department: "Finance", Vendor: "Acme", Amount: 9000, RiskScore: 0.81},
		},
	}

	var buf bytes.Buffer
	printInspection(&buf, s)
	out := buf.String()

	assert.Contains(t, out, "High/Medium/Low:  1 / 1 / 2")
	assert.Contains(t, out, "High-risk amount: 9000.00")
	assert.Contains(t, out, "Top department:   Finance")
	assert.Contains(t, out, "date-only timestamps")
	assert.Contains(t, out, "(1 shown)")
	assert.Contains(t, out, "1. t9")
	assert.Contains(t, out, "Score:      0.8100")
}

func TestPrintInspection_NoFlagged(t *testing.T) {
	var buf bytes.Buffer
	printInspection(&buf, &scoring.Summary{
		TopFlaggedDepartment: scoring.NotAvailable,
		TopFlaggedVendor:     scoring.NotAvailable,
		HighRiskTransactions: []scoring.FlaggedTransaction{},
	})

	assert.Contains(t, buf.String(), "Top vendor:       N/A")
	assert.Contains(t, buf.String(), "(0 shown)")
	assert.NotContains(t, buf.String(), "date-only")
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scored.csv")
	rows := []*scoring.Transaction{{
		TransactionID: "t1",
		Department:    "Ops",
		Vendor:        "Acme",
		Amount:        12.5,
		Date:          "2024-01-03",
		Time:          "09:00",
		Datetime:      time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
		VendorCount7d: 1,
		RiskLabel:     scoring.LabelLow,
	}}

	require.NoError(t, writeReport(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(report.Columns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "t1,Ops,Acme,12.5,"), lines[1])
}
