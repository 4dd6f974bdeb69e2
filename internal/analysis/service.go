// Package analysis runs a CSV export through scoring and records the outcome.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/auditor-agent/internal/gcs"
	infra "github.com/dvloznov/auditor-agent/internal/infra/bigquery"
	"github.com/dvloznov/auditor-agent/internal/jobs"
	"github.com/dvloznov/auditor-agent/internal/logger"
	"github.com/dvloznov/auditor-agent/internal/metrics"
	"github.com/dvloznov/auditor-agent/internal/report"
	"github.com/dvloznov/auditor-agent/internal/scoring"
	"github.com/dvloznov/auditor-agent/internal/table"
)

// Sources recorded on analysis runs and metrics.
const (
	SourceUpload = "upload"
	SourceGCS    = "gcs"
	SourceCLI    = "cli"
)

// reportPrefix is the object prefix under which scored reports are written.
const reportPrefix = "reports/"

var (
	// ErrStorageUnavailable is returned for gs:// inputs when no storage
	// service is configured.
	ErrStorageUnavailable = errors.New("analysis: object storage is not configured")

	// ErrRunsUnavailable is returned by ListRuns when no run ledger is configured.
	ErrRunsUnavailable = errors.New("analysis: run ledger is not configured")
)

// Request describes one batch to analyze.
type Request struct {
	Source    string
	SourceURI string
	Filename  string
	Options   scoring.Options
}

// Outcome is the result of a successful analysis.
type Outcome struct {
	RunID     string
	Result    *scoring.Result
	ReportURI string
}

// Deps are the collaborators of a Service. Storage and Runs may be nil, in
// which case report export and run recording are skipped.
type Deps struct {
	Storage      gcs.StorageService
	Runs         infra.RunRepository
	ReportBucket string
	Defaults     scoring.Options
}

// Service orchestrates read, score, export and record for one batch.
type Service struct {
	storage      gcs.StorageService
	runs         infra.RunRepository
	reportBucket string
	defaults     scoring.Options
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	return &Service{
		storage:      d.Storage,
		runs:         d.Runs,
		reportBucket: d.ReportBucket,
		defaults:     d.Defaults,
	}
}

// Defaults returns the scoring options used when a caller expresses no
// preference.
func (s *Service) Defaults() scoring.Options {
	return s.defaults
}

// AnalyzeCSV reads a CSV document from r and scores it.
func (s *Service) AnalyzeCSV(ctx context.Context, r io.Reader, req Request) (*Outcome, error) {
	started := time.Now()
	log := logger.FromContext(ctx).With().
		Str("source", req.Source).
		Str("filename", req.Filename).
		Logger()
	ctx = logger.WithContext(ctx, log)

	runID := s.startRun(ctx, req)
	if runID != "" {
		log = log.With().Str("analysis_run_id", runID).Logger()
		ctx = logger.WithContext(ctx, log)
	}

	out, err := s.analyze(ctx, r, req, runID)
	if err != nil {
		if s.runs != nil && runID != "" {
			s.runs.MarkRunFailed(ctx, runID, err)
		}
		metrics.ObserveAnalysis(req.Source, started, nil, err)
		log.Warn().Err(err).Msg("Analysis failed")
		return nil, err
	}

	if s.runs != nil && runID != "" {
		if err := s.runs.MarkRunSucceeded(ctx, runID, out.Result.Summary, out.ReportURI); err != nil {
			log.Error().Err(err).Msg("Failed to record analysis run")
		}
	}
	metrics.ObserveAnalysis(req.Source, started, out.Result.Summary, nil)

	log.Info().
		Int("total_transactions", out.Result.Summary.TotalTransactions).
		Int("high_risk_count", out.Result.Summary.HighRiskCount).
		Bool("time_fallback_applied", out.Result.Summary.TimeFallbackApplied).
		Dur("duration", time.Since(started)).
		Msg("Analysis complete")

	return out, nil
}

func (s *Service) analyze(ctx context.Context, r io.Reader, req Request, runID string) (*Outcome, error) {
	tbl, err := table.Read(r)
	if err != nil {
		return nil, err
	}

	res, err := scoring.Score(ctx, tbl, req.Options)
	if err != nil {
		return nil, err
	}

	out := &Outcome{RunID: runID, Result: res}
	out.ReportURI = s.exportReport(ctx, runID, res.Scored)
	return out, nil
}

// AnalyzeGCS fetches a CSV export from object storage and scores it.
func (s *Service) AnalyzeGCS(ctx context.Context, gcsURI string, opts scoring.Options) (*Outcome, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	if _, _, err := gcs.ParseURI(gcsURI); err != nil {
		return nil, err
	}

	data, err := s.storage.FetchFromGCS(ctx, gcsURI)
	if err != nil {
		return nil, fmt.Errorf("AnalyzeGCS: %w", err)
	}

	return s.AnalyzeCSV(ctx, bytes.NewReader(data), Request{
		Source:    SourceGCS,
		SourceURI: gcsURI,
		Filename:  s.storage.ExtractFilenameFromGCSURI(gcsURI),
		Options:   opts,
	})
}

// HandleJob is a jobs.JobHandler for AnalyzeJob. Input errors are marked
// permanent so the queue does not retry them.
func (s *Service) HandleJob(ctx context.Context, job jobs.Job) error {
	aj, ok := job.(*jobs.AnalyzeJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
	}

	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With().Str("job_id", aj.JobID).Logger())

	opts := s.defaults
	if aj.TimeFallback != "" {
		fb, err := scoring.ParseTimeFallback(aj.TimeFallback)
		if err != nil {
			return jobs.Permanent(err)
		}
		opts.TimeFallback = fb
	}

	out, err := s.AnalyzeGCS(ctx, aj.GCSURI, opts)
	if err != nil {
		if IsInputError(err) {
			return jobs.Permanent(err)
		}
		return err
	}

	aj.AnalysisRunID = out.RunID
	aj.Summary = out.Result.Summary
	aj.ReportURI = out.ReportURI
	return nil
}

// ListRuns returns recent analysis runs from the ledger.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*infra.AnalysisRunRow, error) {
	if s.runs == nil {
		return nil, ErrRunsUnavailable
	}
	return s.runs.ListRuns(ctx, limit)
}

// IsInputError reports whether err was caused by the submitted data rather
// than by infrastructure.
func IsInputError(err error) bool {
	var (
		schemaErr *scoring.SchemaError
		parseErr  *scoring.ParseError
		formatErr *table.FormatError
	)
	return errors.As(err, &schemaErr) ||
		errors.As(err, &parseErr) ||
		errors.As(err, &formatErr) ||
		errors.Is(err, gcs.ErrInvalidURI) ||
		errors.Is(err, gcs.ErrObjectNotFound) ||
		errors.Is(err, gcs.ErrObjectTooLarge) ||
		errors.Is(err, ErrStorageUnavailable)
}

// startRun records a RUNNING ledger row. A ledger outage does not block
// scoring; the run is simply not recorded.
func (s *Service) startRun(ctx context.Context, req Request) string {
	if s.runs == nil {
		return ""
	}
	runID, err := s.runs.StartRun(ctx, req.Source, req.SourceURI, req.Filename)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to start analysis run")
		return ""
	}
	return runID
}

// exportReport uploads the scored table and returns its URI, or "" when
// export is disabled or fails.
func (s *Service) exportReport(ctx context.Context, runID string, rows []*scoring.Transaction) string {
	if s.storage == nil || s.reportBucket == "" {
		return ""
	}
	log := logger.FromContext(ctx)

	data, err := report.CSVBytes(rows)
	if err != nil {
		log.Error().Err(err).Msg("Failed to render report")
		return ""
	}

	name := runID
	if name == "" {
		name = uuid.NewString()
	}
	uri, err := s.storage.UploadBytes(ctx, s.reportBucket, reportPrefix+name+".csv", data, "text/csv")
	if err != nil {
		log.Error().Err(err).Msg("Failed to upload report")
		return ""
	}
	return uri
}
