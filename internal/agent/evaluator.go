package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

// Evaluator scores a task attempt.
type Evaluator struct {
	completer ai.Completer
}

// NewEvaluator creates an evaluator.
func NewEvaluator(completer ai.Completer) *Evaluator {
	return &Evaluator{completer: completer}
}

// Evaluate returns the evaluation of one attempt at task. Scores and
// efficiencies from the generation capability are clamped; when it fails the
// score is computed from correctness alone.
func (e *Evaluator) Evaluate(ctx context.Context, task planner.Task, a planner.TopicAllocation, p planner.PerformancePayload, now time.Time, rec *Degradations) planner.Evaluation {
	ans := RunStage(ctx, rec, StageEvaluation,
		func(ctx context.Context) (evaluationAnswer, error) {
			if e.completer == nil {
				return evaluationAnswer{}, ai.ErrUnavailable
			}
			return ai.CompleteStructured[evaluationAnswer](ctx, e.completer, ai.GenerateRequest{
				System:      evaluationSystemPrompt,
				Prompt:      evaluationPrompt(task, a, p),
				MaxTokens:   500,
				Temperature: 0.1,
				Task:        ai.TaskGrading,
				Owner:       task.StudentID,
			}, evaluationSchema)
		},
		func(error) evaluationAnswer {
			return evaluationAnswer{Score: planner.LocalScore(p)}
		},
	)

	score := planner.ClampScore(ans.Score)
	efficiency := planner.LocalEfficiency(score, a.Minutes, p.TimeSpentMinutes)
	if ans.Efficiency != nil {
		efficiency = planner.ClampEfficiency(*ans.Efficiency)
	}
	followUp := planner.Classify(score)

	current := a.Difficulty
	if current == "" {
		current = task.Settings.InitialDifficulty
	}
	recommended := planner.RecommendDifficulty(current, followUp)
	if ans.RecommendedDifficulty != "" {
		recommended = ans.RecommendedDifficulty
	}

	return planner.Evaluation{
		ID:                    uuid.NewString(),
		TaskID:                task.ID,
		StudentID:             task.StudentID,
		TopicID:               task.TopicID,
		PlanDate:              task.PlanDate,
		Score:                 score,
		Effectiveness:         efficiency,
		RecommendedDifficulty: recommended,
		FollowUp:              followUp,
		TimeSpentMinutes:      p.TimeSpentMinutes,
		Analysis:              strings.TrimSpace(ans.Analysis),
		Degraded:              rec.Has(StageEvaluation),
		CreatedAt:             now,
	}
}
