package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/auditor-agent/internal/scoring"
)

// RunRepository records analysis runs. Implementations must be safe for
// concurrent use.
type RunRepository interface {
	// StartRun inserts a RUNNING row and returns its analysis_run_id.
	StartRun(ctx context.Context, source, sourceURI, filename string) (string, error)

	// MarkRunFailed sets status=FAILED with the error message.
	MarkRunFailed(ctx context.Context, runID string, runErr error)

	// MarkRunSucceeded sets status=SUCCESS with the batch summary.
	MarkRunSucceeded(ctx context.Context, runID string, summary *scoring.Summary, reportURI string) error

	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*AnalysisRunRow, error)
}

// BigQueryRunRepository is the concrete implementation of RunRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryRunRepository struct {
	client    *bigquery.Client
	datasetID string
}

// NewBigQueryRunRepository creates a new instance of BigQueryRunRepository
// with a shared BigQuery client.
func NewBigQueryRunRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRunRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRunRepository: creating client: %w", err)
	}
	return &BigQueryRunRepository{client: client, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureSchema creates the analysis_runs table if needed.
func (r *BigQueryRunRepository) EnsureSchema(ctx context.Context) error {
	if err := EnsureAnalysisRunsTableWithClient(ctx, r.client, r.datasetID); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

// StartRun delegates to StartAnalysisRunWithClient with the shared client.
func (r *BigQueryRunRepository) StartRun(ctx context.Context, source, sourceURI, filename string) (string, error) {
	return StartAnalysisRunWithClient(ctx, r.client, r.datasetID, source, sourceURI, filename)
}

// MarkRunFailed delegates to MarkAnalysisRunFailedWithClient with the shared client.
func (r *BigQueryRunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkAnalysisRunFailedWithClient(ctx, r.client, r.datasetID, runID, runErr)
}

// MarkRunSucceeded delegates to MarkAnalysisRunSucceededWithClient with the shared client.
func (r *BigQueryRunRepository) MarkRunSucceeded(ctx context.Context, runID string, summary *scoring.Summary, reportURI string) error {
	return MarkAnalysisRunSucceededWithClient(ctx, r.client, r.datasetID, runID, summary, reportURI)
}

// ListRuns delegates to ListAnalysisRunsWithClient with the shared client.
func (r *BigQueryRunRepository) ListRuns(ctx context.Context, limit int) ([]*AnalysisRunRow, error) {
	return ListAnalysisRunsWithClient(ctx, r.client, r.datasetID, limit)
}
