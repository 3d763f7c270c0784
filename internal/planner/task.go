package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
)

// Adaptive settings stamped on every accepted task.
const (
	TaskRetryAttempts     = 2
	TaskFeedbackImmediate = "immediate"
)

// DefaultTaskSettings returns the settings for a task at difficulty d.
func DefaultTaskSettings(d curriculum.Difficulty) TaskSettings {
	return TaskSettings{
		InitialDifficulty:   d,
		CanAdjustDifficulty: true,
		RetryAttempts:       TaskRetryAttempts,
		FeedbackMechanism:   TaskFeedbackImmediate,
	}
}

// NewTask returns a pending task shell for an allocation of plan.
func NewTask(plan *DailyPlan, a TopicAllocation, now time.Time) Task {
	return Task{
		ID:              uuid.NewString(),
		StudentID:       plan.StudentID,
		PlanDate:        plan.Date,
		TopicID:         a.TopicID,
		PlanVersion:     plan.Version,
		Resources:       []string{},
		SuccessCriteria: []string{},
		TimeBreakdown:   []TimeBlock{},
		Settings:        DefaultTaskSettings(a.Difficulty),
		Status:          TaskPending,
		CreatedAt:       now,
	}
}

// SyntheticTask is the minimal task substituted when generation fails:
// titled after the topic and aimed at its first learning objective.
func SyntheticTask(plan *DailyPlan, a TopicAllocation, topic curriculum.Topic, lang string, now time.Time) Task {
	t := NewTask(plan, a, now)
	t.Title = topic.Name(lang)
	objective := topic.FirstObjective()
	if objective == "" && len(a.Objectives) > 0 {
		objective = a.Objectives[0]
	}
	if objective == "" {
		objective = t.Title
	}
	t.Instructions = objective
	t.SuccessCriteria = []string{fmt.Sprintf("Complete: %s", objective)}
	t.TimeBreakdown = []TimeBlock{{Activity: "study", Minutes: a.Minutes}}
	t.Synthetic = true
	return t
}
