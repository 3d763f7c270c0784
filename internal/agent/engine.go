package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

var tracer = otel.Tracer("github.com/p-n-ai/pai-planner/internal/agent")

const (
	defaultBudgetMinutes = 120
	defaultSignalBuffer  = 64
	historyLimit         = 200
	defaultContextTTL    = 6 * time.Hour
)

// PlanNotifier delivers a freshly generated plan to the student.
type PlanNotifier interface {
	NotifyPlan(ctx context.Context, profile planner.StudentProfile, plan *planner.DailyPlan, tasks []planner.Task) error
}

// EngineConfig holds dependencies for the planning engine.
type EngineConfig struct {
	Store     Store
	Profiles  ProfileSource
	Graph     planner.TopicGraph
	Completer ai.Completer // nil runs every stage on its fallback
	Cache     ContextCache // optional
	Events    EventLogger  // optional
	Notifier  PlanNotifier // optional

	Planner         planner.Config
	ContextTTL      time.Duration
	DefaultBudget   int            // used when a profile has no budget (default 120)
	MaxBudget       int            // upper bound on any budget; 0 means none
	Location        *time.Location // defines "today" for freezing past plans (default UTC)
	TaskConcurrency int            // parallel task generation calls per plan
	SignalBuffer    int            // queued adaptation signals (default 64)
	Now             func() time.Time
}

// Engine runs the planning pipeline for one student at a time. It is safe
// for concurrent use; each call carries its own state.
type Engine struct {
	store     Store
	profiles  ProfileSource
	graph     planner.TopicGraph
	events    EventLogger
	notifier  PlanNotifier
	analyzer  *Analyzer
	tasks     *TaskGenerator
	evaluator *Evaluator
	adviser   *Adviser
	validate  *validator.Validate

	cfg           planner.Config
	defaultBudget int
	maxBudget     int
	loc           *time.Location
	now           func() time.Time

	signals chan adaptSignal
}

type adaptSignal struct {
	studentID string
	date      string
}

// NewEngine creates a new planning engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Graph == nil {
		return nil, errors.New("engine: topic graph is required")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("engine: profile source is required")
	}
	if err := cfg.Planner.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	budget := cfg.DefaultBudget
	if budget <= 0 {
		budget = defaultBudgetMinutes
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.ContextTTL
	if ttl <= 0 {
		ttl = defaultContextTTL
	}
	buffer := cfg.SignalBuffer
	if buffer <= 0 {
		buffer = defaultSignalBuffer
	}

	return &Engine{
		store:         store,
		profiles:      cfg.Profiles,
		graph:         cfg.Graph,
		events:        events,
		notifier:      cfg.Notifier,
		analyzer:      NewAnalyzer(cfg.Completer, cfg.Cache, ttl),
		tasks:         NewTaskGenerator(cfg.Completer, cfg.Graph, cfg.TaskConcurrency),
		evaluator:     NewEvaluator(cfg.Completer),
		adviser:       NewAdviser(cfg.Completer, cfg.Planner),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		cfg:           cfg.Planner,
		defaultBudget: budget,
		maxBudget:     cfg.MaxBudget,
		loc:           loc,
		now:           now,
		signals:       make(chan adaptSignal, buffer),
	}, nil
}

// GeneratePlan returns the student's plan for date, building version 1 if
// none exists yet. A plan is always produced for a known student; stages
// that could not use the generation capability are listed in the plan's
// metadata.
func (e *Engine) GeneratePlan(ctx context.Context, studentID, date string) (plan *planner.DailyPlan, err error) {
	ctx, span := tracer.Start(ctx, "GeneratePlan", trace.WithAttributes(
		attribute.String("student_id", studentID),
		attribute.String("date", date),
	))
	defer func() { endSpan(span, err) }()

	if err := checkDate(date); err != nil {
		return nil, err
	}
	existing, err := e.store.LatestPlan(ctx, studentID, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, planner.ErrNotFound) {
		return nil, err
	}

	profile, err := e.profiles.Profile(ctx, studentID)
	if err != nil {
		return nil, err
	}
	history, err := e.store.RecentRecords(ctx, studentID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	rec := &Degradations{}
	studyCtx := e.analyzer.Analyze(ctx, profile, history, date, rec)

	budget := e.budgetFor(profile)
	ranked := planner.AssessWeakness(e.graph, history, e.cfg)
	selected := planner.SelectTopics(ranked, planner.StudyMinutes(budget, e.cfg), profile.PreferredSubjects, e.cfg)
	allocs, breaks := planner.Allocate(selected, budget, studyCtx, profile.Language, e.cfg)

	now := e.now()
	plan = planner.Assemble(planner.AssembleInput{
		StudentID:      studentID,
		Date:           date,
		Budget:         budget,
		Allocations:    allocs,
		Breaks:         breaks,
		Context:        studyCtx,
		DegradedStages: rec.List(),
		GeneratedAt:    now,
	}, e.cfg)

	tasks := e.tasks.Generate(ctx, plan, profile.Language, now, rec)
	plan.Metadata.DegradedStages = rec.List()
	plan.Metadata.FallbackUsed = len(plan.Metadata.DegradedStages) > 0

	if err := e.store.SavePlan(ctx, plan, 0, tasks); err != nil {
		if errors.Is(err, planner.ErrPlanConflict) {
			// Another run stored a plan first; ours is discarded.
			slog.Info("plan generated concurrently, discarding this run",
				"student_id", studentID,
				"date", date,
			)
			return e.store.LatestPlan(ctx, studentID, date)
		}
		return nil, fmt.Errorf("save plan: %w", err)
	}

	slog.Info("plan generated",
		"student_id", studentID,
		"date", date,
		"topics", len(plan.Allocations),
		"budget", budget,
		"fallback_used", plan.Metadata.FallbackUsed,
	)
	e.logEvent(ctx, Event{
		StudentID: studentID,
		EventType: EventPlanGenerated,
		PlanDate:  date,
		Version:   plan.Version,
		Data: map[string]any{
			"topics":        len(plan.Allocations),
			"tasks":         len(tasks),
			"budget":        budget,
			"fallback_used": plan.Metadata.FallbackUsed,
		},
		CreatedAt: now,
	})
	e.logDegraded(ctx, plan, now)

	if e.notifier != nil {
		if err := e.notifier.NotifyPlan(ctx, profile, plan, tasks); err != nil {
			slog.Warn("plan notification failed", "student_id", studentID, "error", err)
		}
	}
	return plan, nil
}

// AdaptPlan runs one adaptation cycle over the same-day evaluations and
// returns the latest plan. A plan is written only when the schedule changes.
// Plans for past dates are frozen. A version conflict is retried once
// against the newest plan before planner.ErrPlanConflict is returned.
func (e *Engine) AdaptPlan(ctx context.Context, studentID, date string) (plan *planner.DailyPlan, err error) {
	ctx, span := tracer.Start(ctx, "AdaptPlan", trace.WithAttributes(
		attribute.String("student_id", studentID),
		attribute.String("date", date),
	))
	defer func() { endSpan(span, err) }()

	if err := checkDate(date); err != nil {
		return nil, err
	}
	plan, err = e.store.LatestPlan(ctx, studentID, date)
	if errors.Is(err, planner.ErrNotFound) {
		return e.GeneratePlan(ctx, studentID, date)
	}
	if err != nil {
		return nil, err
	}
	if e.frozen(date) {
		return plan, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		next, changed, adviceDegraded, err := e.adaptOnce(ctx, plan)
		if err != nil {
			return nil, err
		}
		if !changed {
			return plan, nil
		}

		err = e.store.SavePlan(ctx, next, plan.Version, nil)
		if err == nil {
			slog.Info("plan adapted",
				"student_id", studentID,
				"date", date,
				"version", next.Version,
			)
			e.logEvent(ctx, Event{
				StudentID: studentID,
				EventType: EventPlanAdapted,
				PlanDate:  date,
				Version:   next.Version,
				Data: map[string]any{
					"base_version":  plan.Version,
					"fallback_used": next.Metadata.FallbackUsed,
					"note":          next.Metadata.Note,
				},
				CreatedAt: next.Metadata.GeneratedAt,
			})
			if adviceDegraded {
				e.logDegradedStage(ctx, next, StageAdaptation, next.Metadata.GeneratedAt)
			}
			return next, nil
		}
		if !errors.Is(err, planner.ErrPlanConflict) {
			return nil, fmt.Errorf("save adapted plan: %w", err)
		}

		slog.Info("plan version moved during adaptation, retrying",
			"student_id", studentID,
			"date", date,
			"base_version", plan.Version,
		)
		if plan, err = e.store.LatestPlan(ctx, studentID, date); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("adapt %s/%s: %w", studentID, date, planner.ErrPlanConflict)
}

// adaptOnce computes the next version of plan. It also reports whether the
// difficulty advice fell back.
func (e *Engine) adaptOnce(ctx context.Context, plan *planner.DailyPlan) (*planner.DailyPlan, bool, bool, error) {
	evals, err := e.store.ListEvaluations(ctx, plan.StudentID, plan.Date)
	if err != nil {
		return nil, false, false, fmt.Errorf("list evaluations: %w", err)
	}
	if len(planner.NewEvaluations(plan, evals)) == 0 {
		return plan, false, false, nil
	}

	rec := &Degradations{}
	adjustments, note := e.adviser.Advise(ctx, plan, planner.Summarize(evals), rec)
	next, changed := planner.Adapt(plan, planner.Cycle{
		Evaluations: evals,
		Adjustments: adjustments,
		Note:        note,
		Now:         e.now(),
	}, e.cfg)
	if !changed {
		return plan, false, false, nil
	}
	next.Metadata.DegradedStages = mergeStages(plan.Metadata.DegradedStages, rec.List())
	next.Metadata.FallbackUsed = len(next.Metadata.DegradedStages) > 0
	return next, true, rec.Has(StageAdaptation), nil
}

// EvaluateTask scores a task attempt, appends it to the student's history
// and signals adaptation. It fails only for unknown or mismatched ids and
// invalid payloads. A task is evaluated once; later calls return the
// existing evaluation.
func (e *Engine) EvaluateTask(ctx context.Context, taskID, studentID string, payload planner.PerformancePayload) (ev planner.Evaluation, err error) {
	ctx, span := tracer.Start(ctx, "EvaluateTask", trace.WithAttributes(
		attribute.String("student_id", studentID),
		attribute.String("task_id", taskID),
	))
	defer func() { endSpan(span, err) }()

	if err := e.validate.Struct(payload); err != nil {
		return planner.Evaluation{}, fmt.Errorf("%w: %v", planner.ErrInvalidParameter, err)
	}
	task, err := e.ownedTask(ctx, taskID, studentID)
	if err != nil {
		return planner.Evaluation{}, err
	}
	if existing, err := e.store.EvaluationForTask(ctx, taskID); err == nil {
		return existing, nil
	} else if !errors.Is(err, planner.ErrNotFound) {
		return planner.Evaluation{}, err
	}

	alloc := planner.TopicAllocation{
		TopicID:    task.TopicID,
		Difficulty: task.Settings.InitialDifficulty,
	}
	if plan, err := e.store.LatestPlan(ctx, task.StudentID, task.PlanDate); err == nil {
		if a, ok := plan.Allocation(task.TopicID); ok {
			alloc = a
		}
	}
	if alloc.Minutes == 0 {
		for _, b := range task.TimeBreakdown {
			alloc.Minutes += b.Minutes
		}
	}

	rec := &Degradations{}
	ev = e.evaluator.Evaluate(ctx, task, alloc, payload, e.now(), rec)

	if err := e.store.SaveEvaluation(ctx, ev); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return e.store.EvaluationForTask(ctx, taskID)
		}
		return planner.Evaluation{}, fmt.Errorf("save evaluation: %w", err)
	}
	if err := e.store.AppendRecord(ctx, planner.PerformanceRecord{
		StudentID:        studentID,
		TopicID:          task.TopicID,
		RecordedAt:       ev.CreatedAt,
		Score:            ev.Score,
		Efficiency:       ev.Effectiveness,
		TimeSpentMinutes: ev.TimeSpentMinutes,
		Notes:            payload.Notes,
	}); err != nil {
		return planner.Evaluation{}, fmt.Errorf("append performance record: %w", err)
	}
	if err := e.store.UpdateTaskStatus(ctx, taskID, planner.TaskCompleted); err != nil {
		return planner.Evaluation{}, fmt.Errorf("complete task: %w", err)
	}

	e.logEvent(ctx, Event{
		StudentID: studentID,
		EventType: EventTaskEvaluated,
		PlanDate:  task.PlanDate,
		Version:   task.PlanVersion,
		Data: map[string]any{
			"task_id":   taskID,
			"topic_id":  task.TopicID,
			"score":     ev.Score,
			"follow_up": string(ev.FollowUp),
			"degraded":  ev.Degraded,
		},
		CreatedAt: ev.CreatedAt,
	})
	if ev.Degraded {
		e.logEvent(ctx, Event{
			StudentID: studentID,
			EventType: EventStageDegraded,
			PlanDate:  task.PlanDate,
			Data:      map[string]any{"stage": string(StageEvaluation), "task_id": taskID},
			CreatedAt: ev.CreatedAt,
		})
	}

	e.Signal(studentID, task.PlanDate)
	return ev, nil
}

// StartTask marks a pending task as in progress.
func (e *Engine) StartTask(ctx context.Context, taskID, studentID string) (planner.Task, error) {
	task, err := e.ownedTask(ctx, taskID, studentID)
	if err != nil {
		return planner.Task{}, err
	}
	if task.Status != planner.TaskPending {
		return task, nil
	}
	if err := e.store.UpdateTaskStatus(ctx, taskID, planner.TaskInProgress); err != nil {
		return planner.Task{}, fmt.Errorf("start task: %w", err)
	}
	task.Status = planner.TaskInProgress
	e.logEvent(ctx, Event{
		StudentID: studentID,
		EventType: EventTaskStarted,
		PlanDate:  task.PlanDate,
		Version:   task.PlanVersion,
		Data:      map[string]any{"task_id": taskID, "topic_id": task.TopicID},
		CreatedAt: e.now(),
	})
	return task, nil
}

// Plan returns the latest stored plan without generating one.
func (e *Engine) Plan(ctx context.Context, studentID, date string) (*planner.DailyPlan, error) {
	return e.store.LatestPlan(ctx, studentID, date)
}

// PlanVersion returns one stored version of a plan.
func (e *Engine) PlanVersion(ctx context.Context, studentID, date string, version int) (*planner.DailyPlan, error) {
	return e.store.PlanVersion(ctx, studentID, date, version)
}

// Tasks returns the tasks generated for a plan date.
func (e *Engine) Tasks(ctx context.Context, studentID, date string) ([]planner.Task, error) {
	return e.store.ListTasks(ctx, studentID, date)
}

// Signal queues an adaptation for (studentID, date). When the queue is full
// the signal is dropped; the next evaluation or scheduled run catches up.
func (e *Engine) Signal(studentID, date string) {
	select {
	case e.signals <- adaptSignal{studentID: studentID, date: date}:
	default:
		slog.Warn("adaptation queue full, dropping signal",
			"student_id", studentID,
			"date", date,
		)
	}
}

// Run drains adaptation signals until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-e.signals:
			if _, err := e.AdaptPlan(ctx, s.studentID, s.date); err != nil {
				slog.Error("adaptation failed",
					"student_id", s.studentID,
					"date", s.date,
					"error", err,
				)
			}
		}
	}
}

// Today returns the current plan date in the engine's location.
func (e *Engine) Today() string {
	return e.now().In(e.loc).Format(planner.DateLayout)
}

func (e *Engine) frozen(date string) bool {
	// DateLayout strings order lexically.
	return date < e.Today()
}

func (e *Engine) budgetFor(profile planner.StudentProfile) int {
	b := profile.DailyBudgetMinutes
	if b <= 0 {
		b = e.defaultBudget
	}
	if e.maxBudget > 0 && b > e.maxBudget {
		b = e.maxBudget
	}
	return b
}

func (e *Engine) ownedTask(ctx context.Context, taskID, studentID string) (planner.Task, error) {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return planner.Task{}, err
	}
	if task.StudentID != studentID {
		return planner.Task{}, fmt.Errorf("task %s for student %s: %w", taskID, studentID, planner.ErrNotFound)
	}
	return task, nil
}

func (e *Engine) logEvent(ctx context.Context, event Event) {
	if err := e.events.LogEvent(ctx, event); err != nil {
		slog.Warn("failed to log event",
			"type", event.EventType,
			"student_id", event.StudentID,
			"error", err,
		)
	}
}

func (e *Engine) logDegraded(ctx context.Context, plan *planner.DailyPlan, at time.Time) {
	for _, s := range plan.Metadata.DegradedStages {
		e.logDegradedStage(ctx, plan, Stage(s), at)
	}
}

func (e *Engine) logDegradedStage(ctx context.Context, plan *planner.DailyPlan, stage Stage, at time.Time) {
	e.logEvent(ctx, Event{
		StudentID: plan.StudentID,
		EventType: EventStageDegraded,
		PlanDate:  plan.Date,
		Version:   plan.Version,
		Data:      map[string]any{"stage": string(stage)},
		CreatedAt: at,
	})
}

func checkDate(date string) error {
	if _, err := time.Parse(planner.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q", planner.ErrInvalidParameter, date)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
