package table

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/auditor-agent/internal/scoring"
)

func TestRead(t *testing.T) {
	in := "\ufefftransaction_id, department ,vendor,amount,date,time\n" +
		"t1,Ops,Acme,12.50,2024-01-03,09:30\n" +
		"t2,\"Research, EU\",Globex, 7 ,2024-01-04,\n"

	got, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, scoring.RequiredColumns, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "12.50", got.Rows[0]["amount"])
	assert.Equal(t, "Research, EU", got.Rows[1]["department"])
	assert.Equal(t, " 7 ", got.Rows[1]["amount"], "cells are not trimmed")
	assert.Equal(t, "", got.Rows[1]["time"])
}

func TestRead_HeaderOnly(t *testing.T) {
	got, err := Read(strings.NewReader("transaction_id,amount\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"transaction_id", "amount"}, got.Columns)
	assert.Empty(t, got.Rows)
}

func TestRead_FeedsScoring(t *testing.T) {
	in := "transaction_id,department,vendor,amount,date\nt1,Ops,Acme,1,2024-01-03\n"

	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	_, err = scoring.Score(t.Context(), tbl, scoring.Options{})
	var schemaErr *scoring.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"time"}, schemaErr.Missing)
}

func TestRead_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantLine int
	}{
		{"empty", "", 0},
		{"ragged row", "a,b\n1,2\n3\n", 3},
		{"bare quote", "a,b\n1,2\"x\n", 2},
		{"duplicate column", "a,b,a\n1,2,3\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))

			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.wantLine, fe.Line)
			assert.Contains(t, fe.Error(), "malformed CSV")
		})
	}
}
