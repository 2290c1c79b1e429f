// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/vodcut/internal/adapters/mq/queue"
	"github.com/okian/vodcut/internal/adapters/repository"
	service "github.com/okian/vodcut/internal/app"
	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/logger"
)

// Orchestrator is the job surface the handlers need.
type Orchestrator interface {
	Submit(ctx context.Context, jobType model.JobType, params model.JobParams) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, filter repository.Filter) ([]*model.Job, error)
	Advance(ctx context.Context) (*model.Job, error)
	AdvanceJob(ctx context.Context, id string) (*model.Job, error)
}

// Server wires HTTP routes for the job API.
type Server struct {
	healthHandler  *HealthHandler
	metricsHandler http.Handler
	statsHandler   *StatsHandler
	jobsHandler    *JobsHandler
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(orch Orchestrator, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(),
		metricsHandler: NewMetricsHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		jobsHandler:    NewJobsHandler(orch),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Router returns a chi router with every route registered.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(LoggingMiddleware(s.logger))
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.jobsHandler.HandleList, "jobs_list"))
		r.Post("/vod-highlights", MetricsMiddleware(s.jobsHandler.HandleSubmit(model.JobTypeVODHighlights), "jobs_submit"))
		r.Post("/clip-montage", MetricsMiddleware(s.jobsHandler.HandleSubmit(model.JobTypeClipMontage), "jobs_submit"))
		r.Post("/run-next", MetricsMiddleware(s.jobsHandler.HandleRunNext, "jobs_run_next"))
		r.Get("/{id}", MetricsMiddleware(s.jobsHandler.HandleGet, "jobs_get"))
		r.Post("/{id}/advance", MetricsMiddleware(s.jobsHandler.HandleAdvance, "jobs_advance"))
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps orchestrator errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "validation_error", err)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotNext):
		writeError(w, http.StatusConflict, "not_next", err)
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, queue.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
