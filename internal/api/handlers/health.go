package handlers

import (
	"net/http"
	"strconv"

	"github.com/dvloznov/auditor-agent/internal/api/middleware"
	"github.com/dvloznov/auditor-agent/internal/llm"
)

// StatusRunning is the body status of GET /health.
const StatusRunning = "Auditor Agent API Running"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string      `json:"status"`
	LLM    *llm.Status `json:"llm,omitempty"`
}

// HealthHandler reports liveness and, optionally, LLM readiness.
type HealthHandler struct {
	llm llm.Prober
}

// NewHealthHandler creates a health handler. prober may be nil.
func NewHealthHandler(prober llm.Prober) *HealthHandler {
	return &HealthHandler{llm: prober}
}

// Health handles GET /health. With probe=true the configured model is
// looked up, which makes a network call.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: StatusRunning}
	if h.llm != nil {
		probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))
		s := h.llm.Status(r.Context(), probe)
		resp.LLM = &s
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
