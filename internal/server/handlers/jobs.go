package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/touchthesun/marvin-sub002/internal/errors"
	"github.com/touchthesun/marvin-sub002/pkg/gateway"
	"github.com/touchthesun/marvin-sub002/pkg/jobengine"
)

// JobsHandler serves the dashboard job API backed by the engine.
type JobsHandler struct {
	engine *jobengine.Engine
}

func NewJobsHandler(engine *jobengine.Engine) *JobsHandler {
	return &JobsHandler{engine: engine}
}

// JobListResponse groups jobs by lifecycle set.
type JobListResponse struct {
	Active    []jobengine.Job `json:"active"`
	Completed []jobengine.Job `json:"completed"`
}

// List returns the active and completed job sets.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := JobListResponse{
		Active:    h.engine.ActiveJobs(),
		Completed: h.engine.CompletedJobs(),
	}
	if resp.Active == nil {
		resp.Active = []jobengine.Job{}
	}
	if resp.Completed == nil {
		resp.Completed = []jobengine.Job{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single job by id.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.engine.JobByID(id)
	if !ok {
		apperrors.WriteError(w, http.StatusNotFound, "NOT_FOUND",
			"no such job: "+id, r.Header.Get("X-Request-ID"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Create submits a new job and begins monitoring it.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var spec gateway.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"malformed job spec: "+err.Error(), r.Header.Get("X-Request-ID"))
		return
	}
	if spec.Kind == "" {
		apperrors.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"job kind is required", r.Header.Get("X-Request-ID"))
		return
	}

	job, err := h.engine.Create(r.Context(), spec)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// Cancel requests cancellation of an active job.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.engine.Cancel(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if !ok {
		apperrors.WriteError(w, http.StatusConflict, "CANCEL_DECLINED",
			"job could not be cancelled: "+id, r.Header.Get("X-Request-ID"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "cancelled": true})
}

// Retry requests a retry of a failed job.
func (h *JobsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.engine.Retry(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if !ok {
		apperrors.WriteError(w, http.StatusConflict, "RETRY_DECLINED",
			"job could not be retried: "+id, r.Header.Get("X-Request-ID"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "retried": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
