package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/auditor-agent/internal/analysis"
	"github.com/dvloznov/auditor-agent/internal/api/middleware"
	"github.com/dvloznov/auditor-agent/internal/jobs/inmemory"
)

func newTestRouter(t *testing.T, maxUpload int64) http.Handler {
	t.Helper()
	svc := analysis.NewService(analysis.Deps{})
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(10, store)
	t.Cleanup(func() { _ = queue.Close() })

	return NewRouter(RouterConfig{
		Log:            zerolog.Nop(),
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: maxUpload,
		Analyzer:       svc,
		Runs:           svc,
		Publisher:      queue,
		JobStore:       store,
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := serve(newTestRouter(t, 1<<20), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"Auditor Agent API Running"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, 1<<20)
	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `auditor_http_requests_total{method="GET",path="/health",status="200"}`)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_AnalyzeUploadTooLarge(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "big.csv")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("x"), 64<<10))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serve(newTestRouter(t, 1024), req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestRouter_AnalysesRoutes(t *testing.T) {
	r := newTestRouter(t, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(`{"gcs_uri":"gs://b/a.csv"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "no-cache, no-store, no-transform, must-revalidate, private, max-age=0", rec.Header().Get("Cache-Control"))

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/analyses/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RunsWithoutLedger(t *testing.T) {
	rec := serve(newTestRouter(t, 1<<20), httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
