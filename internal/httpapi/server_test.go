package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-planner/internal/agent"
	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/export"
	"github.com/p-n-ai/pai-planner/internal/httpapi"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

var testNow = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *agent.Engine {
	t.Helper()
	g, err := curriculum.NewGraph([]curriculum.Topic{
		{
			ID: "alg-1", Names: map[string]string{"en": "Linear Equations"}, SubjectID: "algebra",
			Weight: 10, Difficulty: curriculum.DifficultyMedium,
			LearningObjectives: []curriculum.LearningObjective{{ID: "alg-1-1", Text: "Solve linear equations in one variable"}},
		},
		{
			ID: "geo-1", Names: map[string]string{"en": "Angles"}, SubjectID: "geometry",
			Weight: 5, Difficulty: curriculum.DifficultyEasy,
			LearningObjectives: []curriculum.LearningObjective{{ID: "geo-1-1", Text: "Measure angles"}},
		},
	})
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	e, err := agent.NewEngine(agent.EngineConfig{
		Store:    agent.NewMemoryStore(),
		Profiles: agent.NewMemoryProfiles(planner.StudentProfile{StudentID: "s1", DailyBudgetMinutes: 90, AchievementRate: 0.6, Language: "en"}),
		Graph:    g,
		Planner:  planner.DefaultConfig(),
		Now:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func newServer(t *testing.T, cfg httpapi.Config) *httptest.Server {
	t.Helper()
	if cfg.Planner == nil {
		cfg.Planner = newEngine(t)
	}
	srv := httptest.NewServer(httpapi.New(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s status = %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t, httpapi.Config{})

	resp := do(t, http.MethodGet, srv.URL+"/healthz", "")
	wantStatus(t, resp, http.StatusOK)
	if got := decode[map[string]string](t, resp); got["status"] != "ok" {
		t.Errorf("healthz = %v", got)
	}
	wantStatus(t, do(t, http.MethodGet, srv.URL+"/readyz", ""), http.StatusOK)

	failing := newServer(t, httpapi.Config{Checks: map[string]httpapi.Check{
		"database": func(context.Context) error { return errors.New("connection refused") },
		"cache":    func(context.Context) error { return nil },
	}})
	resp = do(t, http.MethodGet, failing.URL+"/readyz", "")
	wantStatus(t, resp, http.StatusServiceUnavailable)
	body := decode[struct {
		Checks map[string]string `json:"checks"`
	}](t, resp)
	if body.Checks["database"] != "connection refused" || len(body.Checks) != 1 {
		t.Errorf("readyz checks = %v", body.Checks)
	}
}

func TestPlanLifecycle(t *testing.T) {
	srv := newServer(t, httpapi.Config{})
	base := srv.URL + "/v1/students/s1/plans/2026-10-17"

	resp := do(t, http.MethodPost, base, "")
	wantStatus(t, resp, http.StatusOK)
	plan := decode[planner.DailyPlan](t, resp)
	if plan.Version != 1 || len(plan.Allocations) == 0 || !plan.Metadata.FallbackUsed {
		t.Fatalf("generated plan = v%d with %d allocations, fallback %v", plan.Version, len(plan.Allocations), plan.Metadata.FallbackUsed)
	}
	if plan.StudyMinutes()+plan.BreakMinutes() != 90 {
		t.Errorf("study + breaks = %d, want 90", plan.StudyMinutes()+plan.BreakMinutes())
	}

	resp = do(t, http.MethodGet, base, "")
	wantStatus(t, resp, http.StatusOK)
	if got := decode[planner.DailyPlan](t, resp); got.ID != plan.ID {
		t.Errorf("GET returned %s, want %s", got.ID, plan.ID)
	}
	wantStatus(t, do(t, http.MethodGet, base+"?version=1", ""), http.StatusOK)
	wantStatus(t, do(t, http.MethodGet, base+"?version=2", ""), http.StatusNotFound)
	wantStatus(t, do(t, http.MethodGet, base+"?version=zero", ""), http.StatusBadRequest)

	resp = do(t, http.MethodGet, base+"/tasks", "")
	wantStatus(t, resp, http.StatusOK)
	tasks := decode[struct {
		Tasks []planner.Task `json:"tasks"`
	}](t, resp).Tasks
	if len(tasks) != len(plan.Allocations) {
		t.Fatalf("tasks = %d, want %d", len(tasks), len(plan.Allocations))
	}
	taskURL := srv.URL + "/v1/tasks/" + tasks[0].ID

	resp = do(t, http.MethodPost, taskURL+"/start", `{"student_id":"s1"}`)
	wantStatus(t, resp, http.StatusOK)
	if got := decode[planner.Task](t, resp); got.Status != planner.TaskInProgress {
		t.Errorf("started task status = %s", got.Status)
	}

	resp = do(t, http.MethodPost, taskURL+"/evaluations", `{"student_id":"s1","attempts":1,"correct":9,"total":10,"time_spent_minutes":20}`)
	wantStatus(t, resp, http.StatusCreated)
	ev := decode[planner.Evaluation](t, resp)
	if ev.Score != 90 || ev.FollowUp != planner.FollowUpExtension || !ev.Degraded {
		t.Errorf("evaluation = %+v", ev)
	}

	wantStatus(t, do(t, http.MethodPost, taskURL+"/evaluations", `{"student_id":"s2","correct":1,"total":1}`), http.StatusNotFound)

	resp = do(t, http.MethodPost, base+"/adapt", "")
	wantStatus(t, resp, http.StatusOK)
	adapted := decode[planner.DailyPlan](t, resp)
	if adapted.Version != 2 || adapted.Metadata.BaseVersion != 1 {
		t.Errorf("adapted plan = v%d base %d, want v2 base 1", adapted.Version, adapted.Metadata.BaseVersion)
	}

	resp = do(t, http.MethodGet, base+"/export.xlsx", "")
	wantStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read export: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("export is not a workbook: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.SheetTasks)
	if err != nil || len(rows) != len(tasks)+1 {
		t.Errorf("task rows = %d (%v), want %d", len(rows), err, len(tasks)+1)
	}
}

func TestErrors(t *testing.T) {
	srv := newServer(t, httpapi.Config{})
	base := srv.URL + "/v1/students/s1/plans/2026-10-17"
	wantStatus(t, do(t, http.MethodPost, base, ""), http.StatusOK)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown student", http.MethodPost, "/v1/students/nobody/plans/2026-10-17", "", http.StatusNotFound},
		{"malformed date", http.MethodPost, "/v1/students/s1/plans/2026-13-40", "", http.StatusBadRequest},
		{"no plan yet", http.MethodGet, "/v1/students/s1/plans/2026-10-18", "", http.StatusNotFound},
		{"export without plan", http.MethodGet, "/v1/students/s1/plans/2026-10-18/export.xlsx", "", http.StatusNotFound},
		{"unknown task", http.MethodPost, "/v1/tasks/missing/start", `{"student_id":"s1"}`, http.StatusNotFound},
		{"missing student", http.MethodPost, "/v1/tasks/missing/evaluations", `{"correct":1,"total":2}`, http.StatusBadRequest},
		{"more correct than total", http.MethodPost, "/v1/tasks/missing/evaluations", `{"student_id":"s1","correct":3,"total":2}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/tasks/missing/evaluations", `{"student_id":"s1","score":100}`, http.StatusBadRequest},
		{"not json", http.MethodPost, "/v1/tasks/missing/start", `student_id=s1`, http.StatusBadRequest},
		{"stream without events", http.MethodGet, "/v1/students/s1/stream", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			wantStatus(t, resp, tt.want)
		})
	}

	resp := do(t, http.MethodPost, srv.URL+"/v1/tasks/missing/evaluations", `{"total":2}`)
	wantStatus(t, resp, http.StatusBadRequest)
	body := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, resp)
	if body.Fields["StudentID"] != "required" {
		t.Errorf("validation fields = %v", body.Fields)
	}
}
