package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/auditor-agent/internal/analysis"
	"github.com/dvloznov/auditor-agent/internal/config"
	"github.com/dvloznov/auditor-agent/internal/gcs"
	infraBQ "github.com/dvloznov/auditor-agent/internal/infra/bigquery"
	"github.com/dvloznov/auditor-agent/internal/logger"
	"github.com/dvloznov/auditor-agent/internal/report"
	"github.com/dvloznov/auditor-agent/internal/scoring"
)

// Exit codes
const (
	exitError      = 1
	exitInputError = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitError)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	// Logs go to stderr so stdout stays machine-readable
	log := logger.NewWithOptions(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Writer: os.Stderr,
	})

	switch os.Args[1] {
	case "score":
		runScore(cfg, log, os.Args[2:])
	case "inspect":
		runInspect(cfg, log, os.Args[2:])
	case "runs":
		runRuns(cfg, log, os.Args[2:])
	case "migrate":
		runMigrate(cfg, log, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(exitError)
	}
}

func printUsage() {
	fmt.Println("Auditor Agent CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  score     Score a CSV export (local path or gs:// URI) and print the summary as JSON")
	fmt.Println("  inspect   Score a CSV export and list its high-risk transactions")
	fmt.Println("  runs      List recorded analysis runs")
	fmt.Println("  migrate   Create the BigQuery analysis_runs table")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// scoreFlags are shared by score and inspect.
type scoreFlags struct {
	output       string
	timeFallback string
}

func parseScoreFlags(name string, args []string) (scoreFlags, string) {
	var f scoreFlags
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&f.output, "o", "", "Write the scored table as CSV to this path")
	fs.StringVar(&f.timeFallback, "time-fallback", "", "Time fallback: batch or row (default from TIME_FALLBACK)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: cli %s [options] <file.csv|gs://bucket/object>\n", name)
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(exitError)
	}
	return f, fs.Arg(0)
}

func runScore(cfg *config.Config, log zerolog.Logger, args []string) {
	f, input := parseScoreFlags("score", args)

	out := analyze(cfg, log, f, input)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out.Result.Summary); err != nil {
		log.Fatal().Err(err).Msg("Failed to write summary")
	}
}

func runInspect(cfg *config.Config, log zerolog.Logger, args []string) {
	f, input := parseScoreFlags("inspect", args)

	out := analyze(cfg, log, f, input)
	printInspection(os.Stdout, out.Result.Summary)
}

// analyze scores one input and optionally writes the scored CSV. Input
// problems exit with exitInputError.
func analyze(cfg *config.Config, log zerolog.Logger, f scoreFlags, input string) *analysis.Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	opts := cfg.ScoringOptions()
	if f.timeFallback != "" {
		fb, err := scoring.ParseTimeFallback(f.timeFallback)
		if err != nil {
			fail(log, err)
		}
		opts.TimeFallback = fb
	}

	deps := analysis.Deps{Defaults: opts}
	if cfg.BigQueryEnabled() {
		repo, err := infraBQ.NewBigQueryRunRepository(ctx, cfg.GCPProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create analysis run repository")
		}
		defer repo.Close()
		deps.Runs = repo
	}

	var (
		out *analysis.Outcome
		err error
	)
	if strings.HasPrefix(input, "gs://") {
		storageSvc, serr := gcs.NewGCSStorageService(ctx, cfg.MaxUploadBytes)
		if serr != nil {
			log.Fatal().Err(serr).Msg("Failed to create storage client")
		}
		defer storageSvc.Close()
		deps.Storage = storageSvc

		out, err = analysis.NewService(deps).AnalyzeGCS(ctx, input, opts)
	} else {
		file, ferr := os.Open(input)
		if ferr != nil {
			fail(log, ferr)
		}
		defer file.Close()

		out, err = analysis.NewService(deps).AnalyzeCSV(ctx, file, analysis.Request{
			Source:    analysis.SourceCLI,
			SourceURI: input,
			Filename:  filepath.Base(input),
			Options:   opts,
		})
	}
	if err != nil {
		fail(log, err)
	}

	if f.output != "" {
		if err := writeReport(f.output, out.Result.Scored); err != nil {
			log.Fatal().Err(err).Str("path", f.output).Msg("Failed to write scored CSV")
		}
		log.Info().Str("path", f.output).Int("rows", len(out.Result.Scored)).Msg("Scored CSV written")
	}
	return out
}

func writeReport(path string, rows []*scoring.Transaction) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(file, rows); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func fail(log zerolog.Logger, err error) {
	var schemaErr *scoring.SchemaError
	if errors.As(err, &schemaErr) {
		fmt.Fprintf(os.Stderr, "Missing columns: %s\n", strings.Join(schemaErr.Missing, ", "))
		os.Exit(exitInputError)
	}
	if analysis.IsInputError(err) || errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitInputError)
	}
	log.Error().Err(err).Msg("Analysis failed")
	os.Exit(exitError)
}

func printInspection(w io.Writer, s *scoring.Summary) {
	fmt.Fprintln(w, "\n=== Batch Summary ===")
	fmt.Fprintf(w, "Transactions:     %d\n", s.TotalTransactions)
	fmt.Fprintf(w, "High/Medium/Low:  %d / %d / %d\n", s.HighRiskCount, s.MediumRiskCount, s.LowRiskCount)
	fmt.Fprintf(w, "High-risk amount: %.2f\n", s.HighRiskAmount)
	fmt.Fprintf(w, "Average score:    %.4f\n", s.AvgRiskScore)
	fmt.Fprintf(w, "Top department:   %s\n", s.TopFlaggedDepartment)
	fmt.Fprintf(w, "Top vendor:       %s\n", s.TopFlaggedVendor)
	if s.TimeFallbackApplied {
		fmt.Fprintln(w, "Note: some times could not be parsed; date-only timestamps were used")
	}

	fmt.Fprintf(w, "\n=== High-Risk Transactions (%d shown) ===\n", len(s.HighRiskTransactions))
	for i, f := range s.HighRiskTransactions {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, f.TransactionID)
		fmt.Fprintf(w, "   Department: %s\n", f.Department)
		fmt.Fprintf(w, "   Vendor:     %s\n", f.Vendor)
		fmt.Fprintf(w, "   Amount:     %.2f\n", f.Amount)
		fmt.Fprintf(w, "   Score:      %.4f\n", f.RiskScore)
	}
	fmt.Fprintln(w)
}

func runRuns(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", infraBQ.DefaultListLimit, "Maximum number of runs to list")
	_ = fs.Parse(args)

	if !cfg.BigQueryEnabled() {
		log.Fatal().Msg("GCP_PROJECT and BQ_DATASET must be set")
	}

	ctx := logger.WithContext(context.Background(), log)
	repo, err := infraBQ.NewBigQueryRunRepository(ctx, cfg.GCPProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create analysis run repository")
	}
	defer repo.Close()

	runs, err := repo.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list analysis runs")
	}

	for _, r := range runs {
		total := "-"
		if r.TotalTransactions.Valid {
			total = fmt.Sprint(r.TotalTransactions.Int64)
		}
		high := "-"
		if r.HighRiskCount.Valid {
			high = fmt.Sprint(r.HighRiskCount.Int64)
		}
		fmt.Printf("%s  %-7s  %-6s  %s  rows=%s high=%s  %s\n",
			r.StartedTS.Format(time.RFC3339), r.Status, r.Source, r.AnalysisRunID, total, high, r.Filename)
	}
}

func runMigrate(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	project := fs.String("project", cfg.GCPProject, "GCP project ID (or set GCP_PROJECT)")
	dataset := fs.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID (or set BQ_DATASET)")
	_ = fs.Parse(args)

	if *project == "" || *dataset == "" {
		log.Fatal().Msg("Error: -project and -dataset are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryRunRepository(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create analysis run repository")
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	fmt.Printf("Table %s.%s.analysis_runs is ready.\n", *project, *dataset)
}
