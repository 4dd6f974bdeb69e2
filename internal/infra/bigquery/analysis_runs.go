package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

const analysisRunsTable = "analysis_runs"

// Analysis run statuses.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// AnalysisRunRow is one scoring call recorded in the analysis_runs ledger.
// Only batch metadata and the summary are stored, never transactions.
type AnalysisRunRow struct {
	AnalysisRunID string `bigquery:"analysis_run_id" json:"analysis_run_id"` // REQUIRED
	Source        string `bigquery:"source" json:"source"`                   // REQUIRED: upload, gcs or cli
	SourceURI     string `bigquery:"source_uri" json:"source_uri"`           // NULLABLE
	Filename      string `bigquery:"filename" json:"filename"`               // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts" json:"started_ts"`   // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts" json:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status" json:"status"`               // REQUIRED
	ErrorMessage string `bigquery:"error_message" json:"error_message"` // NULLABLE

	TotalTransactions    bigquery.NullInt64   `bigquery:"total_transactions" json:"total_transactions"`
	HighRiskCount        bigquery.NullInt64   `bigquery:"high_risk_count" json:"high_risk_count"`
	MediumRiskCount      bigquery.NullInt64   `bigquery:"medium_risk_count" json:"medium_risk_count"`
	LowRiskCount         bigquery.NullInt64   `bigquery:"low_risk_count" json:"low_risk_count"`
	HighRiskAmount       bigquery.NullFloat64 `bigquery:"high_risk_amount" json:"high_risk_amount"`
	AvgRiskScore         bigquery.NullFloat64 `bigquery:"avg_risk_score" json:"avg_risk_score"`
	TopFlaggedDepartment bigquery.NullString  `bigquery:"top_flagged_department" json:"top_flagged_department"`
	TopFlaggedVendor     bigquery.NullString  `bigquery:"top_flagged_vendor" json:"top_flagged_vendor"`
	TimeFallbackApplied  bigquery.NullBool    `bigquery:"time_fallback_applied" json:"time_fallback_applied"`
	ReportURI            bigquery.NullString  `bigquery:"report_uri" json:"report_uri"`

	// Calendar dates covered by the batch.
	BatchStartDate bigquery.NullDate `bigquery:"batch_start_date" json:"batch_start_date"`
	BatchEndDate   bigquery.NullDate `bigquery:"batch_end_date" json:"batch_end_date"`
}
