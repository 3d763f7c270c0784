package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

const defaultTaskConcurrency = 4

// TaskGenerator turns plan allocations into concrete tasks.
type TaskGenerator struct {
	completer   ai.Completer
	graph       planner.TopicGraph
	concurrency int
}

// NewTaskGenerator creates a task generator making at most concurrency
// generation calls at once.
func NewTaskGenerator(completer ai.Completer, graph planner.TopicGraph, concurrency int) *TaskGenerator {
	if concurrency <= 0 {
		concurrency = defaultTaskConcurrency
	}
	return &TaskGenerator{completer: completer, graph: graph, concurrency: concurrency}
}

// Generate returns exactly one task per allocation, in allocation order. An
// allocation whose generation fails gets planner.SyntheticTask instead.
func (g *TaskGenerator) Generate(ctx context.Context, plan *planner.DailyPlan, lang string, now time.Time, rec *Degradations) []planner.Task {
	tasks := make([]planner.Task, len(plan.Allocations))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, a := range plan.Allocations {
		eg.Go(func() error {
			tasks[i] = g.one(egCtx, plan, a, lang, now, rec)
			return nil
		})
	}
	_ = eg.Wait()
	return tasks
}

func (g *TaskGenerator) one(ctx context.Context, plan *planner.DailyPlan, a planner.TopicAllocation, lang string, now time.Time, rec *Degradations) planner.Task {
	topic, err := g.graph.GetTopic(a.TopicID)
	if err != nil {
		// Allocations only reference graph topics; keep the allocation's own name.
		topic = curriculum.Topic{ID: a.TopicID, Names: map[string]string{"en": a.TopicName}}
	}

	return RunStage(ctx, rec, StageTaskGeneration,
		func(ctx context.Context) (planner.Task, error) {
			if g.completer == nil {
				return planner.Task{}, ai.ErrUnavailable
			}
			ans, err := ai.CompleteStructured[taskAnswer](ctx, g.completer, ai.GenerateRequest{
				System:      taskSystemPrompt,
				Prompt:      taskPrompt(plan, a, topic, lang),
				MaxTokens:   900,
				Temperature: 0.5,
				Task:        ai.TaskGeneration,
				Owner:       plan.StudentID,
			}, taskSchema)
			if err != nil {
				return planner.Task{}, fmt.Errorf("task for %s: %w", a.TopicID, err)
			}
			t := planner.NewTask(plan, a, now)
			t.Title = ans.Title
			t.Instructions = ans.Instructions
			if ans.Resources != nil {
				t.Resources = ans.Resources
			}
			t.SuccessCriteria = ans.SuccessCriteria
			t.TimeBreakdown = ans.TimeBreakdown
			return t, nil
		},
		func(error) planner.Task {
			return planner.SyntheticTask(plan, a, topic, lang, now)
		},
	)
}
