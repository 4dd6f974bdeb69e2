package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/auditor-agent/internal/analysis"
	"github.com/dvloznov/auditor-agent/internal/api/middleware"
	infra "github.com/dvloznov/auditor-agent/internal/infra/bigquery"
)

// RunLister lists recorded analysis runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*infra.AnalysisRunRow, error)
}

// RunsHandler handles the analysis-run ledger endpoints.
type RunsHandler struct {
	runs RunLister
	log  zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs RunLister, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		runs: runs,
		log:  log,
	}
}

// List handles GET /api/runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if errors.Is(err, analysis.ErrRunsUnavailable) {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Analysis run ledger is not configured")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list analysis runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list analysis runs")
		return
	}

	// Return an empty array rather than null
	if runs == nil {
		runs = []*infra.AnalysisRunRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
