package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/repomotion/repomotion/internal/errors"
	"github.com/repomotion/repomotion/pkg/jobregistry"
	"github.com/repomotion/repomotion/pkg/orchestrator"
)

type fakeSubmitter struct {
	last orchestrator.SubmitRequest
	id   string
}

func (f *fakeSubmitter) Submit(req orchestrator.SubmitRequest) string {
	f.last = req
	return f.id
}

type fakeStore struct {
	jobs       map[string]jobregistry.Job
	stopResult jobregistry.StopResult
}

func (f *fakeStore) Get(id string) (jobregistry.Job, bool) {
	job, ok := f.jobs[id]
	return job, ok
}

func (f *fakeStore) Stop(id string) jobregistry.StopResult {
	return f.stopResult
}

func newTestRouter(h *JobsHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/gource/start", h.Start)
	r.Get("/gource/status/{jobID}", h.Status)
	r.Post("/gource/stop/{jobID}", h.Stop)
	r.Get("/gource/video/{jobID}", h.Video)
	return r
}

func decodeError(t *testing.T, body string) apperrors.HTTPErrorResponse {
	t.Helper()
	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp
}

func TestStart(t *testing.T) {
	submitter := &fakeSubmitter{id: "job-1"}
	h := NewJobsHandler(submitter, &fakeStore{}, t.TempDir(), zap.NewNop())
	router := newTestRouter(h)

	body := `{"repo_url":"https://github.com/acme/widgets","access_token":"aa:bb","settings":{"show_key":false}}`
	req := httptest.NewRequest(http.MethodPost, "/gource/start", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])

	assert.Equal(t, "https://github.com/acme/widgets", submitter.last.RepoURL)
	assert.Equal(t, "aa:bb", submitter.last.AccessToken)
	require.NotNil(t, submitter.last.Settings)
	require.NotNil(t, submitter.last.Settings.ShowKey)
	assert.False(t, *submitter.last.Settings.ShowKey)
}

func TestStartRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"repo_url": `},
		{"missing repo_url", `{"access_token":"aa:bb"}`},
		{"blank repo_url", `{"repo_url":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewJobsHandler(&fakeSubmitter{}, &fakeStore{}, t.TempDir(), zap.NewNop())
			router := newTestRouter(h)

			req := httptest.NewRequest(http.MethodPost, "/gource/start", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec.Body.String())
			assert.Equal(t, apperrors.CodeValidationError, resp.Error.Code)
		})
	}
}

func TestStatus(t *testing.T) {
	store := &fakeStore{jobs: map[string]jobregistry.Job{
		"job-1": {
			ID:      "job-1",
			RepoURL: "https://github.com/acme/widgets",
			Step:    jobregistry.StepGenerating,
		},
	}}
	h := NewJobsHandler(&fakeSubmitter{}, store, t.TempDir(), zap.NewNop())
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/gource/status/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])
	assert.Equal(t, float64(3), resp["step"])
	assert.Equal(t, "generating_visualization", resp["step_name"])
}

func TestStatusNotFound(t *testing.T) {
	h := NewJobsHandler(&fakeSubmitter{}, &fakeStore{}, t.TempDir(), zap.NewNop())
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/gource/status/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec.Body.String())
	assert.Equal(t, apperrors.CodeNotFound, resp.Error.Code)
}

func TestStop(t *testing.T) {
	tests := []struct {
		name       string
		result     jobregistry.StopResult
		wantStatus int
		wantCode   string
	}{
		{"stopped", jobregistry.Stopped, http.StatusOK, ""},
		{"already terminal", jobregistry.StopAlreadyTerminal, http.StatusConflict, apperrors.CodeAlreadyTerminal},
		{"not found", jobregistry.StopNotFound, http.StatusNotFound, apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewJobsHandler(&fakeSubmitter{}, &fakeStore{stopResult: tt.result}, t.TempDir(), zap.NewNop())
			router := newTestRouter(h)

			req := httptest.NewRequest(http.MethodPost, "/gource/stop/job-1", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				resp := decodeError(t, rec.Body.String())
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			} else {
				assert.Contains(t, rec.Body.String(), "stopped")
			}
		})
	}
}

func TestVideo(t *testing.T) {
	dir := t.TempDir()
	content := []byte("not really mp4 bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gource_job-1.mp4"), content, 0o644))

	h := NewJobsHandler(&fakeSubmitter{}, &fakeStore{}, dir, zap.NewNop())
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/gource/video/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestVideoNotFound(t *testing.T) {
	h := NewJobsHandler(&fakeSubmitter{}, &fakeStore{}, t.TempDir(), zap.NewNop())
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/gource/video/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVideoRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	h := NewJobsHandler(&fakeSubmitter{}, &fakeStore{}, dir, zap.NewNop())

	// Bypass the router so the raw id reaches the handler.
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobID", "..\\evil")
	req := httptest.NewRequest(http.MethodGet, "/gource/video/x", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	h.Video(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
