package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/auditor-agent/internal/logger"
	"github.com/dvloznov/auditor-agent/internal/scoring"
)

// maxErrorMessageLen caps error_message so one bad upload cannot bloat the row.
const maxErrorMessageLen = 2000

// DefaultListLimit is used when ListAnalysisRuns is given a non-positive limit.
const DefaultListLimit = 50

// EnsureAnalysisRunsTableWithClient creates the analysis_runs table if it
// does not exist.
func EnsureAnalysisRunsTableWithClient(ctx context.Context, client *bigquery.Client, datasetID string) error {
	return runDML(ctx, client.Query(createRunsTableSQL(client.Project(), datasetID)))
}

// StartAnalysisRunWithClient inserts a new row with status=RUNNING and
// returns the generated analysis_run_id.
func StartAnalysisRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, source, sourceURI, filename string) (string, error) {
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			analysis_run_id,
			source,
			source_uri,
			filename,
			started_ts,
			status
		)
		VALUES (
			@analysis_run_id,
			@source,
			@source_uri,
			@filename,
			@started_ts,
			@status
		)
	`, datasetID, analysisRunsTable))
	q.Parameters = startParams(runID, source, sourceURI, filename, time.Now())

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartAnalysisRun: %w", err)
	}
	return runID, nil
}

// MarkAnalysisRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged rather than returned so the caller can
// keep reporting the original error.
func MarkAnalysisRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE analysis_run_id = @analysis_run_id
	`, datasetID, analysisRunsTable))
	q.Parameters = failedParams(runID, runErr, time.Now())

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("analysis_run_id", runID).
			Msg("MarkAnalysisRunFailed: update failed")
	}
}

// MarkAnalysisRunSucceededWithClient sets status=SUCCESS, finished_ts, the
// batch summary and the report location.
func MarkAnalysisRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, summary *scoring.Summary, reportURI string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    total_transactions = @total_transactions,
		    high_risk_count = @high_risk_count,
		    medium_risk_count = @medium_risk_count,
		    low_risk_count = @low_risk_count,
		    high_risk_amount = @high_risk_amount,
		    avg_risk_score = @avg_risk_score,
		    top_flagged_department = @top_flagged_department,
		    top_flagged_vendor = @top_flagged_vendor,
		    time_fallback_applied = @time_fallback_applied,
		    report_uri = @report_uri,
		    batch_start_date = @batch_start_date,
		    batch_end_date = @batch_end_date
		WHERE analysis_run_id = @analysis_run_id
	`, datasetID, analysisRunsTable))
	q.Parameters = successParams(runID, summary, reportURI, time.Now())

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkAnalysisRunSucceeded: %w", err)
	}
	return nil
}

// ListAnalysisRunsWithClient returns the most recent runs, newest first.
func ListAnalysisRunsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, limit int) ([]*AnalysisRunRow, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			analysis_run_id,
			source,
			source_uri,
			filename,
			started_ts,
			finished_ts,
			status,
			error_message,
			total_transactions,
			high_risk_count,
			medium_risk_count,
			low_risk_count,
			high_risk_amount,
			avg_risk_score,
			top_flagged_department,
			top_flagged_vendor,
			time_fallback_applied,
			report_uri,
			batch_start_date,
			batch_end_date
		FROM `+"`%s.%s.%s`"+`
		ORDER BY started_ts DESC
		LIMIT @limit
	`, client.Project(), datasetID, analysisRunsTable))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAnalysisRuns: reading query: %w", err)
	}

	var runs []*AnalysisRunRow
	for {
		var row AnalysisRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAnalysisRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}

	return runs, nil
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func createRunsTableSQL(projectID, datasetID string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.%s`"+` (
			analysis_run_id        STRING NOT NULL,
			source                 STRING NOT NULL,
			source_uri             STRING,
			filename               STRING,
			started_ts             TIMESTAMP NOT NULL,
			finished_ts            TIMESTAMP,
			status                 STRING NOT NULL,
			error_message          STRING,
			total_transactions     INT64,
			high_risk_count        INT64,
			medium_risk_count      INT64,
			low_risk_count         INT64,
			high_risk_amount       FLOAT64,
			avg_risk_score         FLOAT64,
			top_flagged_department STRING,
			top_flagged_vendor     STRING,
			time_fallback_applied  BOOL,
			report_uri             STRING,
			batch_start_date       DATE,
			batch_end_date         DATE
		)
		PARTITION BY DATE(started_ts)
	`, projectID, datasetID, analysisRunsTable)
}

func startParams(runID, source, sourceURI, filename string, started time.Time) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "analysis_run_id", Value: runID},
		{Name: "source", Value: source},
		{Name: "source_uri", Value: sourceURI},
		{Name: "filename", Value: filename},
		{Name: "started_ts", Value: started},
		{Name: "status", Value: StatusRunning},
	}
}

func failedParams(runID string, runErr error, finished time.Time) []bigquery.QueryParameter {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		if len(errMsg) > maxErrorMessageLen {
			errMsg = errMsg[:maxErrorMessageLen]
		}
	}
	return []bigquery.QueryParameter{
		{Name: "status", Value: StatusFailed},
		{Name: "finished_ts", Value: finished},
		{Name: "error_message", Value: errMsg},
		{Name: "analysis_run_id", Value: runID},
	}
}

func successParams(runID string, s *scoring.Summary, reportURI string, finished time.Time) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "status", Value: StatusSuccess},
		{Name: "finished_ts", Value: finished},
		{Name: "total_transactions", Value: s.TotalTransactions},
		{Name: "high_risk_count", Value: s.HighRiskCount},
		{Name: "medium_risk_count", Value: s.MediumRiskCount},
		{Name: "low_risk_count", Value: s.LowRiskCount},
		{Name: "high_risk_amount", Value: s.HighRiskAmount},
		{Name: "avg_risk_score", Value: s.AvgRiskScore},
		{Name: "top_flagged_department", Value: s.TopFlaggedDepartment},
		{Name: "top_flagged_vendor", Value: s.TopFlaggedVendor},
		{Name: "time_fallback_applied", Value: s.TimeFallbackApplied},
		{Name: "report_uri", Value: reportURI},
		{Name: "batch_start_date", Value: nullDate(s.PeriodStart)},
		{Name: "batch_end_date", Value: nullDate(s.PeriodEnd)},
		{Name: "analysis_run_id", Value: runID},
	}
}

func nullDate(t *time.Time) bigquery.NullDate {
	if t == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: civil.DateOf(*t), Valid: true}
}
