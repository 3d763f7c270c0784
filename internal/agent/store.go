package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/p-n-ai/pai-planner/internal/planner"
)

// ErrDuplicate is returned when a record that must exist at most once
// (an evaluation for a task) is written twice.
var ErrDuplicate = errors.New("agent: already recorded")

// PlanStore persists append-only plan versions.
type PlanStore interface {
	// LatestPlan returns the highest version for (studentID, date).
	LatestPlan(ctx context.Context, studentID, date string) (*planner.DailyPlan, error)
	// PlanVersion returns one specific version.
	PlanVersion(ctx context.Context, studentID, date string, version int) (*planner.DailyPlan, error)
	// SavePlan appends plan together with tasks created for it if the
	// latest stored version is still baseVersion (0 when none exists);
	// otherwise it returns planner.ErrPlanConflict. Nothing is stored when
	// it fails.
	SavePlan(ctx context.Context, plan *planner.DailyPlan, baseVersion int, tasks []planner.Task) error
}

// TaskStore reads tasks written with their plan. Only the status of a task
// changes after creation.
type TaskStore interface {
	GetTask(ctx context.Context, id string) (planner.Task, error)
	ListTasks(ctx context.Context, studentID, date string) ([]planner.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status planner.TaskStatus) error
}

// EvaluationStore persists evaluations, at most one per task.
type EvaluationStore interface {
	SaveEvaluation(ctx context.Context, e planner.Evaluation) error
	EvaluationForTask(ctx context.Context, taskID string) (planner.Evaluation, error)
	ListEvaluations(ctx context.Context, studentID, date string) ([]planner.Evaluation, error)
}

// PerformanceStore is the append-only performance history.
type PerformanceStore interface {
	AppendRecord(ctx context.Context, r planner.PerformanceRecord) error
	// RecentRecords returns up to limit records, oldest first.
	RecentRecords(ctx context.Context, studentID string, limit int) ([]planner.PerformanceRecord, error)
}

// Store is everything the engine persists.
type Store interface {
	PlanStore
	TaskStore
	EvaluationStore
	PerformanceStore
}

type planKey struct {
	studentID string
	date      string
}

// MemoryStore is an in-memory Store for tests and DB-less runs.
type MemoryStore struct {
	mu          sync.RWMutex
	plans       map[planKey][]*planner.DailyPlan
	tasks       map[string]planner.Task
	taskOrder   []string
	evaluations map[string]planner.Evaluation // by task id
	evalOrder   []string
	records     map[string][]planner.PerformanceRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:       make(map[planKey][]*planner.DailyPlan),
		tasks:       make(map[string]planner.Task),
		evaluations: make(map[string]planner.Evaluation),
		records:     make(map[string][]planner.PerformanceRecord),
	}
}

func (s *MemoryStore) LatestPlan(_ context.Context, studentID, date string) (*planner.DailyPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.plans[planKey{studentID, date}]
	if len(versions) == 0 {
		return nil, fmt.Errorf("plan %s/%s: %w", studentID, date, planner.ErrNotFound)
	}
	return versions[len(versions)-1].Clone(), nil
}

func (s *MemoryStore) PlanVersion(_ context.Context, studentID, date string, version int) (*planner.DailyPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.plans[planKey{studentID, date}]
	if version < 1 || version > len(versions) {
		return nil, fmt.Errorf("plan %s/%s v%d: %w", studentID, date, version, planner.ErrNotFound)
	}
	return versions[version-1].Clone(), nil
}

func (s *MemoryStore) SavePlan(_ context.Context, plan *planner.DailyPlan, baseVersion int, tasks []planner.Task) error {
	if plan.Version != baseVersion+1 {
		return fmt.Errorf("plan version %d does not follow base %d", plan.Version, baseVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := planKey{plan.StudentID, plan.Date}
	if len(s.plans[key]) != baseVersion {
		return fmt.Errorf("plan %s/%s base v%d: %w", plan.StudentID, plan.Date, baseVersion, planner.ErrPlanConflict)
	}
	for _, t := range tasks {
		if _, exists := s.tasks[t.ID]; exists {
			return fmt.Errorf("task %s: %w", t.ID, ErrDuplicate)
		}
	}
	s.plans[key] = append(s.plans[key], plan.Clone())
	for _, t := range tasks {
		s.taskOrder = append(s.taskOrder, t.ID)
		s.tasks[t.ID] = t
	}
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (planner.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return planner.Task{}, fmt.Errorf("task %s: %w", id, planner.ErrNotFound)
	}
	return t, nil
}

func (s *MemoryStore) ListTasks(_ context.Context, studentID, date string) ([]planner.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []planner.Task{}
	for _, id := range s.taskOrder {
		t := s.tasks[id]
		if t.StudentID == studentID && t.PlanDate == date {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateTaskStatus(_ context.Context, id string, status planner.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, planner.ErrNotFound)
	}
	t.Status = status
	s.tasks[id] = t
	return nil
}

func (s *MemoryStore) SaveEvaluation(_ context.Context, e planner.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[e.TaskID]; !ok {
		return fmt.Errorf("task %s: %w", e.TaskID, planner.ErrNotFound)
	}
	if _, exists := s.evaluations[e.TaskID]; exists {
		return fmt.Errorf("evaluation for task %s: %w", e.TaskID, ErrDuplicate)
	}
	s.evaluations[e.TaskID] = e
	s.evalOrder = append(s.evalOrder, e.TaskID)
	return nil
}

func (s *MemoryStore) EvaluationForTask(_ context.Context, taskID string) (planner.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.evaluations[taskID]
	if !ok {
		return planner.Evaluation{}, fmt.Errorf("evaluation for task %s: %w", taskID, planner.ErrNotFound)
	}
	return e, nil
}

func (s *MemoryStore) ListEvaluations(_ context.Context, studentID, date string) ([]planner.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []planner.Evaluation
	for _, taskID := range s.evalOrder {
		e := s.evaluations[taskID]
		if e.StudentID == studentID && e.PlanDate == date {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendRecord(_ context.Context, r planner.PerformanceRecord) error {
	if r.StudentID == "" || r.TopicID == "" {
		return fmt.Errorf("performance record needs student and topic")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.StudentID] = append(s.records[r.StudentID], r)
	return nil
}

func (s *MemoryStore) RecentRecords(_ context.Context, studentID string, limit int) ([]planner.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[studentID]
	out := make([]planner.PerformanceRecord, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
