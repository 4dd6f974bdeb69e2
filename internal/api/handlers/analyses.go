package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/auditor-agent/internal/api/middleware"
	"github.com/dvloznov/auditor-agent/internal/jobs"
	"github.com/dvloznov/auditor-agent/internal/validation"
)

// AnalysesHandler handles background analyses of CSV exports stored in GCS.
type AnalysesHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	validate  *validation.Validator
	log       zerolog.Logger
}

// NewAnalysesHandler creates a new analyses handler. A nil publisher
// disables enqueueing; listing still works.
func NewAnalysesHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *AnalysesHandler {
	return &AnalysesHandler{
		publisher: publisher,
		store:     store,
		validate:  validation.New("json"),
		log:       log,
	}
}

// EnqueueRequest is the body of POST /api/analyses.
type EnqueueRequest struct {
	GCSURI       string `json:"gcs_uri" validate:"required,gs_uri"`
	TimeFallback string `json:"time_fallback" validate:"omitempty,oneof=batch row"`
}

// Enqueue handles POST /api/analyses
func (h *AnalysesHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Background analysis is not configured")
		return
	}

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()

	// The job belongs to a worker once published.
	jobID := uuid.NewString()
	status := jobs.JobStatusPending
	job := &jobs.AnalyzeJob{
		JobID:        jobID,
		GCSURI:       req.GCSURI,
		TimeFallback: req.TimeFallback,
		Status:       status,
	}

	if err := h.publisher.PublishAnalyze(ctx, job); err != nil {
		h.log.Error().Err(err).Str("gcs_uri", req.GCSURI).Msg("Failed to enqueue analysis job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue analysis job")
		return
	}

	h.log.Info().Str("job_id", jobID).Str("gcs_uri", req.GCSURI).Msg("Analysis job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID,
		"gcs_uri": req.GCSURI,
		"status":  string(status),
	})
}

// Get handles GET /api/analyses/{id}
func (h *AnalysesHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/analyses
func (h *AnalysesHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		GCSURI: query.Get("gcs_uri"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
