package agent_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/p-n-ai/pai-planner/internal/agent"
	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

const testDate = "2026-10-17"

var testNow = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

const (
	contextJSON = `{"studentLevel":"intermediate","optimalPace":"moderate","recommendedDifficulty":"medium","studyPatterns":["evening_sessions"]}`
	taskJSON    = `{"title":"Practice set","instructions":"Work through the exercises.","resources":["Textbook chapter 2"],"successCriteria":["8 of 10 correct"],"difficultyCalibration":"medium","timeBreakdown":[{"activity":"practice","minutes":30}]}`
)

func evaluationJSON(score float64) string {
	return fmt.Sprintf(`{"score":%g,"analysis":"Solid attempt."}`, score)
}

func testTopics() []curriculum.Topic {
	objective := func(id, text string) []curriculum.LearningObjective {
		return []curriculum.LearningObjective{{ID: id, Text: text}}
	}
	return []curriculum.Topic{
		{
			ID:                 "alg-1",
			Names:              map[string]string{"en": "Linear Equations", "ms": "Persamaan Linear"},
			SubjectID:          "algebra",
			Weight:             10,
			Difficulty:         curriculum.DifficultyMedium,
			LearningObjectives: objective("alg-1-a", "Solve linear equations in one variable"),
		},
		{
			ID:                 "alg-2",
			Names:              map[string]string{"en": "Simultaneous Equations"},
			SubjectID:          "algebra",
			Weight:             5,
			Difficulty:         curriculum.DifficultyMedium,
			Prerequisites:      []string{"alg-1"},
			LearningObjectives: objective("alg-2-a", "Solve two equations by elimination"),
		},
		{
			ID:                 "geo-1",
			Names:              map[string]string{"en": "Angles"},
			SubjectID:          "geometry",
			Weight:             5,
			Difficulty:         curriculum.DifficultyEasy,
			LearningObjectives: objective("geo-1-a", "Measure angles with a protractor"),
		},
	}
}

func testGraph(t *testing.T) *curriculum.Graph {
	t.Helper()
	g, err := curriculum.NewGraph(testTopics())
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g
}

func testProfile(id string) planner.StudentProfile {
	return planner.StudentProfile{
		StudentID:          id,
		AbilityLevel:       planner.LevelIntermediate,
		DailyBudgetMinutes: 120,
		TargetScore:        80,
		AchievementRate:    0.6,
		Language:           "en",
	}
}

// healthyCompleter answers every stage with valid output.
func healthyCompleter() *ai.ScriptedCompleter {
	return ai.NewScriptedCompleter().
		On(ai.TaskAnalysis, contextJSON).
		On(ai.TaskGeneration, taskJSON).
		On(ai.TaskGrading, evaluationJSON(80)).
		On(ai.TaskAdaptation, `{"adjustments":[],"note":"Keep going."}`)
}

type engineFixture struct {
	engine *agent.Engine
	store  *agent.MemoryStore
	events *agent.MemoryEventLogger
}

func newEngine(t *testing.T, completer ai.Completer, opts ...func(*agent.EngineConfig)) engineFixture {
	t.Helper()
	store := agent.NewMemoryStore()
	events := agent.NewMemoryEventLogger()
	cfg := agent.EngineConfig{
		Store:           store,
		Profiles:        agent.NewMemoryProfiles(testProfile("s1"), testProfile("s2")),
		Graph:           testGraph(t),
		Completer:       completer,
		Events:          events,
		Planner:         planner.DefaultConfig(),
		TaskConcurrency: 1,
		Now:             func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	e, err := agent.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engineFixture{engine: e, store: store, events: events}
}
