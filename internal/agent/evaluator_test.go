package agent_test

import (
	"context"
	"testing"

	"github.com/p-n-ai/pai-planner/internal/agent"
	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

func TestEvaluator_Evaluate(t *testing.T) {
	alloc := planner.TopicAllocation{TopicID: "alg-1", Minutes: 30, Difficulty: curriculum.DifficultyMedium}
	task := planner.NewTask(testPlan(), alloc, testNow)

	tests := []struct {
		name           string
		completer      ai.Completer
		payload        planner.PerformancePayload
		wantScore      float64
		wantEfficiency float64
		wantFollowUp   planner.FollowUp
		wantDifficulty curriculum.Difficulty
		wantDegraded   bool
	}{
		{
			name:           "score above range is clamped",
			completer:      ai.NewScriptedCompleter().On(ai.TaskGrading, `{"score":140,"efficiency":0.9,"analysis":"ok"}`),
			payload:        planner.PerformancePayload{TimeSpentMinutes: 30},
			wantScore:      100,
			wantEfficiency: 0.9,
			wantFollowUp:   planner.FollowUpExtension,
			wantDifficulty: curriculum.DifficultyHard,
		},
		{
			name:           "negative score and efficiency are clamped",
			completer:      ai.NewScriptedCompleter().On(ai.TaskGrading, `{"score":-12,"efficiency":3,"analysis":"ok"}`),
			payload:        planner.PerformancePayload{TimeSpentMinutes: 30},
			wantScore:      0,
			wantEfficiency: 1,
			wantFollowUp:   planner.FollowUpRemediation,
			wantDifficulty: curriculum.DifficultyEasy,
		},
		{
			name:           "missing efficiency is computed locally",
			completer:      ai.NewScriptedCompleter().On(ai.TaskGrading, `{"score":80,"analysis":"ok"}`),
			payload:        planner.PerformancePayload{TimeSpentMinutes: 60},
			wantScore:      80,
			wantEfficiency: 0.4,
			wantFollowUp:   planner.FollowUpReinforcement,
			wantDifficulty: curriculum.DifficultyMedium,
		},
		{
			name:           "generated difficulty wins",
			completer:      ai.NewScriptedCompleter().On(ai.TaskGrading, `{"score":90,"efficiency":1,"analysis":"ok","recommendedDifficulty":"medium"}`),
			payload:        planner.PerformancePayload{TimeSpentMinutes: 30},
			wantScore:      90,
			wantEfficiency: 1,
			wantFollowUp:   planner.FollowUpExtension,
			wantDifficulty: curriculum.DifficultyMedium,
		},
		{
			name:           "failure scores from correctness",
			completer:      ai.NewScriptedCompleter().Fail(ai.TaskGrading, ai.ErrUnavailable),
			payload:        planner.PerformancePayload{TimeSpentMinutes: 30, Correct: 7, Total: 10},
			wantScore:      70,
			wantEfficiency: 0.7,
			wantFollowUp:   planner.FollowUpReinforcement,
			wantDifficulty: curriculum.DifficultyMedium,
			wantDegraded:   true,
		},
		{
			name:           "out of range generated score is not a failure",
			completer:      ai.NewScriptedCompleter().On(ai.TaskGrading, `{"score":1000,"analysis":""}`),
			payload:        planner.PerformancePayload{TimeSpentMinutes: 30, Correct: 1, Total: 10},
			wantScore:      100,
			wantEfficiency: 1,
			wantFollowUp:   planner.FollowUpExtension,
			wantDifficulty: curriculum.DifficultyHard,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &agent.Degradations{}
			ev := agent.NewEvaluator(tt.completer).Evaluate(context.Background(), task, alloc, tt.payload, testNow, rec)

			if ev.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", ev.Score, tt.wantScore)
			}
			if diff := ev.Effectiveness - tt.wantEfficiency; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Effectiveness = %v, want %v", ev.Effectiveness, tt.wantEfficiency)
			}
			if ev.FollowUp != tt.wantFollowUp {
				t.Errorf("FollowUp = %s, want %s", ev.FollowUp, tt.wantFollowUp)
			}
			if ev.RecommendedDifficulty != tt.wantDifficulty {
				t.Errorf("RecommendedDifficulty = %s, want %s", ev.RecommendedDifficulty, tt.wantDifficulty)
			}
			if ev.Degraded != tt.wantDegraded {
				t.Errorf("Degraded = %v, want %v", ev.Degraded, tt.wantDegraded)
			}
			if ev.TaskID != task.ID || ev.TopicID != "alg-1" || ev.PlanDate != testDate || ev.ID == "" {
				t.Errorf("evaluation identity = %+v", ev)
			}
		})
	}
}
