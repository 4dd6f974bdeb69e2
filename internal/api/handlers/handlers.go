package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/auditor-agent/internal/analysis"
	"github.com/dvloznov/auditor-agent/internal/api/middleware"
	"github.com/dvloznov/auditor-agent/internal/logger"
	"github.com/dvloznov/auditor-agent/internal/scoring"
	"github.com/dvloznov/auditor-agent/internal/table"
)

// StatusAnalysisComplete is the status string of a successful /analyze call.
const StatusAnalysisComplete = "Analysis Complete"

// multipartMemory is how much of an upload is held in memory before
// spilling to a temporary file.
const multipartMemory = 8 << 20

// Analyzer scores an uploaded CSV document.
type Analyzer interface {
	AnalyzeCSV(ctx context.Context, r io.Reader, req analysis.Request) (*analysis.Outcome, error)
	Defaults() scoring.Options
}

// AnalyzeHandler handles synchronous uploads.
type AnalyzeHandler struct {
	analyzer Analyzer
	log      zerolog.Logger
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(analyzer Analyzer, log zerolog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: analyzer,
		log:      log,
	}
}

// SummaryView is the summary block of an analyze response.
type SummaryView struct {
	TotalTransactions    int     `json:"total_transactions"`
	HighRiskCount        int     `json:"high_risk_count"`
	MediumRiskCount      int     `json:"medium_risk_count"`
	LowRiskCount         int     `json:"low_risk_count"`
	HighRiskAmount       float64 `json:"high_risk_amount"`
	AvgRiskScore         float64 `json:"avg_risk_score"`
	TopFlaggedDepartment string  `json:"top_flagged_department"`
	TopFlaggedVendor     string  `json:"top_flagged_vendor"`
	TimeFallbackApplied  bool    `json:"time_fallback_applied"`

	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

// AnalyzeResponse is the body of a successful POST /analyze.
type AnalyzeResponse struct {
	Status               string                       `json:"status"`
	AnalysisRunID        string                       `json:"analysis_run_id,omitempty"`
	Summary              SummaryView                  `json:"summary"`
	RiskDistribution     map[scoring.Label]int        `json:"risk_distribution"`
	HighRiskTransactions []scoring.FlaggedTransaction `json:"high_risk_transactions"`
	ReportURI            string                       `json:"report_uri,omitempty"`
	Transactions         []*scoring.Transaction       `json:"transactions,omitempty"`
}

// NewAnalyzeResponse projects an analysis outcome onto the response body.
// The full scored table is included only when withRows is set.
func NewAnalyzeResponse(out *analysis.Outcome, withRows bool) AnalyzeResponse {
	s := out.Result.Summary
	resp := AnalyzeResponse{
		Status:        StatusAnalysisComplete,
		AnalysisRunID: out.RunID,
		Summary: SummaryView{
			TotalTransactions:    s.TotalTransactions,
			HighRiskCount:        s.HighRiskCount,
			MediumRiskCount:      s.MediumRiskCount,
			LowRiskCount:         s.LowRiskCount,
			HighRiskAmount:       s.HighRiskAmount,
			AvgRiskScore:         s.AvgRiskScore,
			TopFlaggedDepartment: s.TopFlaggedDepartment,
			TopFlaggedVendor:     s.TopFlaggedVendor,
			TimeFallbackApplied:  s.TimeFallbackApplied,
			PeriodStart:          s.PeriodStart,
			PeriodEnd:            s.PeriodEnd,
		},
		RiskDistribution:     s.Distribution(),
		HighRiskTransactions: s.HighRiskTransactions,
		ReportURI:            out.ReportURI,
	}
	if withRows {
		resp.Transactions = out.Result.Scored
		if resp.Transactions == nil {
			resp.Transactions = []*scoring.Transaction{}
		}
	}
	return resp
}

// Analyze handles POST /analyze. The CSV is read from the multipart field
// "file". Query parameters: include=transactions adds the scored table,
// time_fallback=batch|row overrides the time fallback for this call.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := h.analyzer.Defaults()
	if v := r.URL.Query().Get("time_fallback"); v != "" {
		fb, err := scoring.ParseTimeFallback(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.TimeFallback = fb
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeUploadError(w, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	defer file.Close()

	out, err := h.analyzer.AnalyzeCSV(ctx, file, analysis.Request{
		Source:   analysis.SourceUpload,
		Filename: header.Filename,
		Options:  opts,
	})
	if err != nil {
		h.writeAnalysisError(ctx, w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, NewAnalyzeResponse(out, includes(r, "transactions")))
}

func (h *AnalyzeHandler) writeUploadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds size limit")
	case errors.Is(err, http.ErrMissingFile):
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
	default:
		h.log.Debug().Err(err).Msg("Rejected upload")
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
	}
}

// writeAnalysisError maps scoring and decoding failures onto HTTP statuses.
func (h *AnalyzeHandler) writeAnalysisError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		schemaErr *scoring.SchemaError
		parseErr  *scoring.ParseError
		formatErr *table.FormatError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &schemaErr):
		middleware.WriteError(w, http.StatusBadRequest, "Missing columns: "+strings.Join(schemaErr.Missing, ", "))
	case errors.As(err, &parseErr):
		middleware.WriteError(w, http.StatusUnprocessableEntity, parseErr.Error())
	case errors.As(err, &maxErr):
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds size limit")
	case errors.As(err, &formatErr):
		middleware.WriteError(w, http.StatusBadRequest, formatErr.Error())
	default:
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Analysis failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Analysis failed")
	}
}

// includes reports whether the comma-separated include parameter names part.
func includes(r *http.Request, part string) bool {
	for _, v := range r.URL.Query()["include"] {
		for _, p := range strings.Split(v, ",") {
			if strings.TrimSpace(p) == part {
				return true
			}
		}
	}
	return false
}
