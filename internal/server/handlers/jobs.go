package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/repomotion/repomotion/internal/errors"
	"github.com/repomotion/repomotion/internal/server/middleware"
	"github.com/repomotion/repomotion/pkg/jobregistry"
	"github.com/repomotion/repomotion/pkg/orchestrator"
	"github.com/repomotion/repomotion/pkg/render"
)

// JobSubmitter accepts parsed job submissions.
type JobSubmitter interface {
	Submit(req orchestrator.SubmitRequest) string
}

// JobStore is the registry surface the handlers read and stop through.
type JobStore interface {
	Get(id string) (jobregistry.Job, bool)
	Stop(id string) jobregistry.StopResult
}

// JobsHandler serves the job lifecycle endpoints.
type JobsHandler struct {
	submitter JobSubmitter
	store     JobStore
	outputDir string
	log       *zap.Logger
}

func NewJobsHandler(submitter JobSubmitter, store JobStore, outputDir string, log *zap.Logger) *JobsHandler {
	return &JobsHandler{
		submitter: submitter,
		store:     store,
		outputDir: outputDir,
		log:       log,
	}
}

// startRequest is the submission body.
type startRequest struct {
	RepoURL     string           `json:"repo_url"`
	AccessToken string           `json:"access_token,omitempty"`
	Settings    *render.Settings `json:"settings,omitempty"`
}

// statusResponse mirrors the registry snapshot plus the step's
// human-readable name.
type statusResponse struct {
	jobregistry.Job
	StepName string `json:"step_name"`
}

// Start accepts a submission and returns the job id immediately. All
// pipeline work happens after the response.
func (h *JobsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeValidationError(w, r, "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.RepoURL) == "" {
		h.writeValidationError(w, r, "repo_url is required")
		return
	}

	jobID := h.submitter.Submit(orchestrator.SubmitRequest{
		RepoURL:     req.RepoURL,
		AccessToken: req.AccessToken,
		Settings:    req.Settings,
	})

	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

// Status returns the current registry snapshot for a job.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := h.store.Get(jobID)
	if !ok {
		h.writeNotFound(w, r, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Job: job, StepName: job.Step.String()})
}

// Stop marks a running job stopped. Terminal jobs conflict rather than
// silently succeed, so callers can tell a late stop from an effective one.
func (h *JobsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	switch h.store.Stop(jobID) {
	case jobregistry.Stopped:
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
	case jobregistry.StopAlreadyTerminal:
		apperrors.WriteError(w, http.StatusConflict, apperrors.HTTPError{
			Code:      apperrors.CodeAlreadyTerminal,
			Message:   "job already finished",
			RequestID: middleware.GetRequestID(r.Context()),
		})
	default:
		h.writeNotFound(w, r, "job not found")
	}
}

// Video streams a finished job's artifact.
func (h *JobsHandler) Video(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	// The id feeds a filename; reject anything that could escape the
	// output directory.
	if jobID == "" || strings.ContainsAny(jobID, "/\\.") {
		h.writeNotFound(w, r, "video not found")
		return
	}

	path := filepath.Join(h.outputDir, orchestrator.ArtifactName(jobID))
	if _, err := os.Stat(path); err != nil {
		h.writeNotFound(w, r, "video not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

func (h *JobsHandler) writeValidationError(w http.ResponseWriter, r *http.Request, msg string) {
	apperrors.WriteError(w, http.StatusBadRequest, apperrors.HTTPError{
		Code:      apperrors.CodeValidationError,
		Message:   msg,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

func (h *JobsHandler) writeNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	apperrors.WriteError(w, http.StatusNotFound, apperrors.HTTPError{
		Code:      apperrors.CodeNotFound,
		Message:   msg,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
