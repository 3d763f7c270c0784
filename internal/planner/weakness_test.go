package planner_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

func chainGraph(t *testing.T) *curriculum.Graph {
	t.Helper()
	g, err := curriculum.NewGraph([]curriculum.Topic{
		{ID: "a", Weight: 5, Difficulty: curriculum.DifficultyEasy, SubjectID: "algebra"},
		{ID: "b", Weight: 3, Difficulty: curriculum.DifficultyMedium, SubjectID: "algebra", Prerequisites: []string{"a"}},
		{ID: "c", Weight: 2, Difficulty: curriculum.DifficultyHard, SubjectID: "algebra", Prerequisites: []string{"a", "b"}},
		{ID: "d", Weight: 1, Difficulty: curriculum.DifficultyEasy, SubjectID: "geometry"},
	})
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g
}

func record(topic string, score float64, at time.Time) planner.PerformanceRecord {
	return planner.PerformanceRecord{StudentID: "s1", TopicID: topic, Score: score, RecordedAt: at}
}

func rankedIDs(r []planner.Ranked) []string {
	out := make([]string, len(r))
	for i, x := range r {
		out[i] = x.Topic.ID
	}
	return out
}

func TestAssessWeakness_NoHistory(t *testing.T) {
	got := planner.AssessWeakness(chainGraph(t), nil, planner.DefaultConfig())

	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, rankedIDs(got)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	want := map[string]float64{"a": 2.338, "b": 1.26, "c": 0.7, "d": 0.35}
	for _, r := range got {
		if math.Abs(r.Score-want[r.Topic.ID]) > 1e-9 {
			t.Errorf("score(%s) = %v, want %v", r.Topic.ID, r.Score, want[r.Topic.ID])
		}
		if r.Mastered {
			t.Errorf("%s marked mastered without history", r.Topic.ID)
		}
	}
}

func TestAssessWeakness_MasteredPrerequisite(t *testing.T) {
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	history := []planner.PerformanceRecord{
		record("a", 90, base),
		record("a", 95, base.Add(time.Hour)),
	}
	got := planner.AssessWeakness(chainGraph(t), history, planner.DefaultConfig())

	if diff := cmp.Diff([]string{"b", "c", "d", "a"}, rankedIDs(got)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	last := got[len(got)-1]
	if !last.Mastered {
		t.Error("a should be mastered")
	}
	// Mastered prerequisites receive no propagated share.
	if want := 5 * (0.1 + 0.075*0.075) / 3; math.Abs(last.Score-want) > 1e-9 {
		t.Errorf("score(a) = %v, want %v", last.Score, want)
	}
}

func TestAssessWeakness_TiesBreakByID(t *testing.T) {
	g, err := curriculum.NewGraph([]curriculum.Topic{
		{ID: "y", Weight: 2},
		{ID: "x", Weight: 2},
		{ID: "z", Weight: 2},
	})
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	got := planner.AssessWeakness(g, nil, planner.DefaultConfig())
	if diff := cmp.Diff([]string{"x", "y", "z"}, rankedIDs(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopicStats_RecentWindow(t *testing.T) {
	cfg := planner.DefaultConfig()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	// Five old failures followed by five recent perfect scores, shuffled.
	var history []planner.PerformanceRecord
	for i := 0; i < 5; i++ {
		history = append(history, record("a", 100, base.Add(time.Duration(10+i)*time.Hour)))
		history = append(history, record("a", 0, base.Add(time.Duration(i)*time.Hour)))
	}
	history = append(history, record("b", 140, base))

	stats := planner.TopicStats(history, cfg)
	want := map[string]planner.TopicStat{
		"a": {Attempts: 5, ErrorRate: 0, MasteryDepth: 5, Mastered: true},
		"b": {Attempts: 1, ErrorRate: 0, MasteryDepth: 1, Mastered: true},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}
