package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/repomotion/repomotion/internal/errors"
	"github.com/repomotion/repomotion/pkg/history"
	"github.com/repomotion/repomotion/pkg/jobregistry"
	"github.com/repomotion/repomotion/pkg/orchestrator"
	"github.com/repomotion/repomotion/pkg/render"
)

type noopCloner struct{}

func (noopCloner) Clone(ctx context.Context, repoURL, accessToken, dir string) error { return nil }

type noopAnalyzer struct{}

func (noopAnalyzer) Analyze(ctx context.Context, repoPath string) (history.Counts, error) {
	return history.Counts{DistinctDays: 10, TotalCommits: 10}, nil
}

type noopRenderer struct{}

func (noopRenderer) Run(ctx context.Context, req render.Request) error { return nil }

func newTestServer(t *testing.T) (*Server, *jobregistry.Registry, *orchestrator.Orchestrator) {
	t.Helper()
	log := zap.NewNop()
	registry := jobregistry.New(log)
	orch := orchestrator.New(registry, noopCloner{}, noopAnalyzer{}, noopRenderer{},
		orchestrator.Config{OutputDir: t.TempDir()}, log)

	srv := New(Options{
		Registry:     registry,
		Orchestrator: orch,
		OutputDir:    t.TempDir(),
		Version:      "test",
		Logger:       log,
	})
	return srv, registry, orch
}

func TestRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"liveness", http.MethodGet, "/health/live", "", http.StatusOK},
		{"readiness", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"version", http.MethodGet, "/version", "", http.StatusOK},
		{"status unknown job", http.MethodGet, "/gource/status/nope", "", http.StatusNotFound},
		{"stop unknown job", http.MethodPost, "/gource/stop/nope", "", http.StatusNotFound},
		{"video unknown job", http.MethodGet, "/gource/video/nope", "", http.StatusNotFound},
		{"start bad body", http.MethodPost, "/gource/start", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestSubmitAndPoll(t *testing.T) {
	srv, registry, orch := newTestServer(t)

	body := `{"repo_url":"https://github.com/acme/widgets"}`
	req := httptest.NewRequest(http.MethodPost, "/gource/start", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var submitted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	jobID := submitted["job_id"]
	require.NotEmpty(t, jobID)

	orch.Wait()

	job, ok := registry.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, orchestrator.VideoPath(jobID), job.VideoURL)

	req = httptest.NewRequest(http.MethodGet, "/gource/status/"+jobID, nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, jobID, status["job_id"])
	assert.Equal(t, orchestrator.VideoPath(jobID), status["video_url"])
}

func TestNotFoundEnvelope(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.CodeNotFound, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)
}

func TestMethodNotAllowedEnvelope(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/gource/start", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.CodeMethodNotAllowed, resp.Error.Code)
}
