package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-planner/internal/export"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// planPath holds the path parameters of plan routes.
type planPath struct {
	StudentID string `validate:"required,max=128"`
	Date      string `validate:"required,datetime=2006-01-02"`
}

type startTaskRequest struct {
	StudentID string `json:"student_id" validate:"required,max=128"`
}

type evaluateTaskRequest struct {
	StudentID        string `json:"student_id" validate:"required,max=128"`
	Attempts         int    `json:"attempts" validate:"gte=0"`
	TimeSpentMinutes int    `json:"time_spent_minutes" validate:"gte=0,lte=1440"`
	Correct          int    `json:"correct" validate:"gte=0"`
	Total            int    `json:"total" validate:"gte=0,gtefield=Correct"`
	Notes            string `json:"notes" validate:"max=2000"`
}

func (s *Server) planPath(r *http.Request) (planPath, error) {
	p := planPath{StudentID: r.PathValue("id"), Date: r.PathValue("date")}
	if err := s.validate.Struct(p); err != nil {
		return planPath{}, err
	}
	return p, nil
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", planner.ErrInvalidParameter, err)
	}
	return s.validate.Struct(dst)
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.planPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.planner.GeneratePlan(r.Context(), p.StudentID, p.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.planPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var plan *planner.DailyPlan
	if v := r.URL.Query().Get("version"); v != "" {
		version, convErr := strconv.Atoi(v)
		if convErr != nil || version < 1 {
			writeError(w, r, fmt.Errorf("%w: version %q", planner.ErrInvalidParameter, v))
			return
		}
		plan, err = s.planner.PlanVersion(r.Context(), p.StudentID, p.Date, version)
	} else {
		plan, err = s.planner.Plan(r.Context(), p.StudentID, p.Date)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleAdaptPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.planPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.planner.AdaptPlan(r.Context(), p.StudentID, p.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	p, err := s.planPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tasks, err := s.planner.Tasks(r.Context(), p.StudentID, p.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []planner.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, err := s.planPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.planner.Plan(r.Context(), p.StudentID, p.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tasks, err := s.planner.Tasks(r.Context(), p.StudentID, p.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, plan, tasks); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="plan-%s-%s-v%d.xlsx"`, p.StudentID, p.Date, plan.Version))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	var req startTaskRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := s.planner.StartTask(r.Context(), r.PathValue("taskID"), req.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleEvaluateTask(w http.ResponseWriter, r *http.Request) {
	var req evaluateTaskRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := s.planner.EvaluateTask(r.Context(), r.PathValue("taskID"), req.StudentID, planner.PerformancePayload{
		Attempts:         req.Attempts,
		TimeSpentMinutes: req.TimeSpentMinutes,
		Correct:          req.Correct,
		Total:            req.Total,
		Notes:            req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}
