package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/auditor-agent/internal/scoring"
	"github.com/dvloznov/auditor-agent/internal/table"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{fmt.Errorf("step 1: %w", &scoring.SchemaError{Missing: []string{"time"}}), OutcomeSchemaError},
		{&scoring.ParseError{Row: 3, Column: "amount"}, OutcomeParseError},
		{&table.FormatError{Line: 2, Err: errors.New("bad")}, OutcomeFormatError},
		{errors.New("network"), OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}

func TestObserveAnalysis(t *testing.T) {
	AnalysesTotal.Reset()
	TransactionsScoredTotal.Reset()
	fallbacks := testutil.ToFloat64(TimeFallbacksTotal)

	ObserveAnalysis("upload", time.Now(), &scoring.Summary{
		HighRiskCount:       2,
		MediumRiskCount:     1,
		LowRiskCount:        7,
		TimeFallbackApplied: true,
	}, nil)
	ObserveAnalysis("upload", time.Now(), nil, &scoring.SchemaError{Missing: []string{"vendor"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(AnalysesTotal.WithLabelValues("upload", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(AnalysesTotal.WithLabelValues("upload", OutcomeSchemaError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(TransactionsScoredTotal.WithLabelValues("High")))
	assert.Equal(t, 1.0, testutil.ToFloat64(TransactionsScoredTotal.WithLabelValues("Medium")))
	assert.Equal(t, 7.0, testutil.ToFloat64(TransactionsScoredTotal.WithLabelValues("Low")))
	assert.Equal(t, fallbacks+1, testutil.ToFloat64(TimeFallbacksTotal))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	JobsTotal.WithLabelValues("completed").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auditor_jobs_total")
}
