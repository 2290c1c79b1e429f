package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/vodcut/internal/app"
	"github.com/okian/vodcut/internal/adapters/repository"
	"github.com/okian/vodcut/internal/domain/model"
)

// maxBodyBytes bounds job submission bodies.
const maxBodyBytes = 1 << 20

// JobsHandler handles job submission, stepping and status requests.
type JobsHandler struct {
	orch Orchestrator
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(orch Orchestrator) *JobsHandler {
	return &JobsHandler{orch: orch}
}

type submitResponse struct {
	JobID string     `json:"job_id"`
	Job   *model.Job `json:"job"`
}

type runNextResponse struct {
	Processed int            `json:"processed"`
	JobID     string         `json:"job_id,omitempty"`
	State     model.JobState `json:"state,omitempty"`
	Stage     model.Stage    `json:"stage,omitempty"`
	Job       *model.Job     `json:"job,omitempty"`
}

type listResponse struct {
	Jobs  []*model.Job `json:"jobs"`
	Count int          `json:"count"`
}

// HandleSubmit handles POST /jobs/vod-highlights and /jobs/clip-montage.
func (h *JobsHandler) HandleSubmit(jobType model.JobType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.submit_job"
		var params model.JobParams
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", model.WrapKind(op, ErrBadRequest, err))
			return
		}
		job, err := h.orch.Submit(r.Context(), jobType, params)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, Job: job})
	}
}

// HandleRunNext handles POST /jobs/run-next by advancing one stage.
func (h *JobsHandler) HandleRunNext(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.Advance(r.Context())
	if errors.Is(err, service.ErrIdle) {
		writeJSON(w, http.StatusOK, runNextResponse{Processed: 0})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runNextResponse{
		Processed: 1,
		JobID:     job.ID,
		State:     job.State,
		Stage:     job.Stage,
		Job:       job,
	})
}

// HandleAdvance handles POST /jobs/{id}/advance.
func (h *JobsHandler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.AdvanceJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleGet handles GET /jobs/{id}.
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleList handles GET /jobs?state=&type=&limit=.
func (h *JobsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	jobs, err := h.orch.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	writeJSON(w, http.StatusOK, listResponse{Jobs: jobs, Count: len(jobs)})
}

func parseFilter(r *http.Request) (repository.Filter, error) {
	const op = "api.list_jobs"
	q := r.URL.Query()
	var f repository.Filter

	if s := strings.ToUpper(strings.TrimSpace(q.Get("state"))); s != "" {
		switch st := model.JobState(s); st {
		case model.StateQueued, model.StateRunning, model.StateDone, model.StateFailed:
			f.State = st
		default:
			return f, model.Errorf(op, ErrBadRequest, "unknown state %q", s)
		}
	}
	if t := strings.TrimSpace(q.Get("type")); t != "" {
		f.Type = model.JobType(t)
		if !f.Type.Valid() {
			return f, model.Errorf(op, ErrBadRequest, "unknown type %q", t)
		}
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return f, model.WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", l))
		}
		f.Limit = n
	}
	return f, nil
}
