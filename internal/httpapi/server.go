// Package httpapi exposes the planning engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

// Planner is the engine surface the API serves.
type Planner interface {
	GeneratePlan(ctx context.Context, studentID, date string) (*planner.DailyPlan, error)
	AdaptPlan(ctx context.Context, studentID, date string) (*planner.DailyPlan, error)
	Plan(ctx context.Context, studentID, date string) (*planner.DailyPlan, error)
	PlanVersion(ctx context.Context, studentID, date string, version int) (*planner.DailyPlan, error)
	Tasks(ctx context.Context, studentID, date string) ([]planner.Task, error)
	StartTask(ctx context.Context, taskID, studentID string) (planner.Task, error)
	EvaluateTask(ctx context.Context, taskID, studentID string, payload planner.PerformancePayload) (planner.Evaluation, error)
}

// Subscriber streams the payloads published on a channel until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

// Config wires a Server.
type Config struct {
	Planner Planner
	Topics  TopicCatalog                  // optional; disables /v1/topics when nil
	Events  Subscriber                    // optional; disables /stream when nil
	Channel func(studentID string) string // pub/sub channel per student
	Checks  map[string]Check              // readiness checks by name
}

// Server serves the planning API.
type Server struct {
	planner  Planner
	topics   TopicCatalog
	events   Subscriber
	channel  func(studentID string) string
	checks   map[string]Check
	validate *validator.Validate
}

// New creates a server.
func New(cfg Config) *Server {
	channel := cfg.Channel
	if channel == nil {
		channel = func(id string) string { return id }
	}
	return &Server{
		planner:  cfg.Planner,
		topics:   cfg.Topics,
		events:   cfg.Events,
		channel:  channel,
		checks:   cfg.Checks,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /v1/students/{id}/plans/{date}", s.handleGeneratePlan)
	mux.HandleFunc("GET /v1/students/{id}/plans/{date}", s.handleGetPlan)
	mux.HandleFunc("POST /v1/students/{id}/plans/{date}/adapt", s.handleAdaptPlan)
	mux.HandleFunc("GET /v1/students/{id}/plans/{date}/tasks", s.handleTasks)
	mux.HandleFunc("GET /v1/students/{id}/plans/{date}/export.xlsx", s.handleExport)
	mux.HandleFunc("GET /v1/students/{id}/stream", s.handleStream)

	mux.HandleFunc("POST /v1/tasks/{taskID}/start", s.handleStartTask)
	mux.HandleFunc("POST /v1/tasks/{taskID}/evaluations", s.handleEvaluateTask)

	if s.topics != nil {
		mux.HandleFunc("GET /v1/topics", s.handleTopics)
		mux.HandleFunc("GET /v1/topics/{topicID}", s.handleTopic)
	}
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		slog.Warn("readiness check failed", "checks", failed)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

// writeError maps engine errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fields})
	case errors.Is(err, planner.ErrInvalidParameter):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, planner.ErrNotFound), errors.Is(err, curriculum.ErrTopicNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, planner.ErrPlanConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
