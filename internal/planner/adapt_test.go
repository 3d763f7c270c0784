package planner_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

var adaptNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

// twoTopicPlan is version 1 of a plan with A 60 and B 30 minutes.
func twoTopicPlan(t *testing.T) *planner.DailyPlan {
	t.Helper()
	cfg := planner.DefaultConfig()
	allocs := []planner.TopicAllocation{
		{TopicID: "A", TopicName: "A", Minutes: 60, Priority: 2, Difficulty: curriculum.DifficultyMedium, Objectives: []string{"a1"}, Status: planner.StatusPending},
		{TopicID: "B", TopicName: "B", Minutes: 30, Priority: 1, Difficulty: curriculum.DifficultyMedium, Objectives: []string{"b1"}, Status: planner.StatusPending},
	}
	breaks := planner.Schedule(allocs, 95, cfg)
	return planner.Assemble(planner.AssembleInput{
		StudentID:   "s1",
		Date:        "2026-10-17",
		Budget:      95,
		Allocations: allocs,
		Breaks:      breaks,
		GeneratedAt: adaptNow.Add(-4 * time.Hour),
	}, cfg)
}

func evaluation(topic string, score float64, spent int, at time.Time) planner.Evaluation {
	return planner.Evaluation{
		ID:               topic + at.Format("150405"),
		StudentID:        "s1",
		TopicID:          topic,
		PlanDate:         "2026-10-17",
		Score:            score,
		TimeSpentMinutes: spent,
		CreatedAt:        at,
	}
}

func TestAdapt_ShiftsMinutesToStrugglingTopics(t *testing.T) {
	cfg := planner.DefaultConfig()
	plan := twoTopicPlan(t)
	before := plan.Clone()
	evals := []planner.Evaluation{
		evaluation("A", 95, 20, adaptNow.Add(-2*time.Hour)),
		evaluation("B", 60, 10, adaptNow.Add(-time.Hour)),
	}

	next, changed := planner.Adapt(plan, planner.Cycle{Evaluations: evals, Note: "keep going", Now: adaptNow}, cfg)
	if !changed {
		t.Fatal("Adapt() changed = false")
	}

	if diff := cmp.Diff([]int{40, 50}, minutes(next.Allocations)); diff != "" {
		t.Errorf("minutes mismatch (-want +got):\n%s", diff)
	}
	if next.StudyMinutes() != plan.StudyMinutes() {
		t.Errorf("study minutes %d, want %d", next.StudyMinutes(), plan.StudyMinutes())
	}
	if next.StudyMinutes()+next.BreakMinutes() != next.BudgetMinutes {
		t.Errorf("study + breaks = %d, want %d", next.StudyMinutes()+next.BreakMinutes(), next.BudgetMinutes)
	}
	for _, a := range next.Allocations {
		if a.Status != planner.StatusInProgress {
			t.Errorf("%s status = %s, want in_progress", a.TopicID, a.Status)
		}
	}
	if next.Allocations[0].SpentMinutes != 20 || next.Allocations[1].SpentMinutes != 10 {
		t.Errorf("spent = %d/%d, want 20/10", next.Allocations[0].SpentMinutes, next.Allocations[1].SpentMinutes)
	}

	if next.Version != 2 || next.Metadata.BaseVersion != 1 {
		t.Errorf("version = %d base %d, want 2 base 1", next.Version, next.Metadata.BaseVersion)
	}
	if next.ID == plan.ID {
		t.Error("new version reuses the previous ID")
	}
	if !next.Metadata.AdaptedThrough.Equal(adaptNow.Add(-time.Hour)) {
		t.Errorf("AdaptedThrough = %v", next.Metadata.AdaptedThrough)
	}
	if next.Metadata.Note != "keep going" || !next.Metadata.GeneratedAt.Equal(adaptNow) {
		t.Errorf("metadata = %+v", next.Metadata)
	}
	if next.Fingerprint == plan.Fingerprint {
		t.Error("fingerprint unchanged")
	}
	if diff := cmp.Diff(before, plan); diff != "" {
		t.Errorf("Adapt modified its input (-before +after):\n%s", diff)
	}
}

func TestAdapt_NoNewEvaluationsIsIdentity(t *testing.T) {
	cfg := planner.DefaultConfig()
	plan := twoTopicPlan(t)

	got, changed := planner.Adapt(plan, planner.Cycle{Now: adaptNow}, cfg)
	if changed || got != plan {
		t.Fatalf("Adapt(no evaluations) = %v, %v; want the same plan, false", got.Version, changed)
	}

	// Evaluations already folded in are not new.
	evals := []planner.Evaluation{evaluation("A", 95, 20, adaptNow.Add(-2*time.Hour))}
	next, changed := planner.Adapt(plan, planner.Cycle{Evaluations: evals, Now: adaptNow}, cfg)
	if !changed {
		t.Fatal("first cycle changed = false")
	}
	again, changed := planner.Adapt(next, planner.Cycle{Evaluations: evals, Now: adaptNow}, cfg)
	if changed || again != next {
		t.Errorf("second cycle with the same evaluations changed the plan to v%d", again.Version)
	}

	// Other days and other students are ignored.
	foreign := []planner.Evaluation{
		{StudentID: "s2", TopicID: "A", PlanDate: "2026-10-17", Score: 10, CreatedAt: adaptNow},
		{StudentID: "s1", TopicID: "A", PlanDate: "2026-10-16", Score: 10, CreatedAt: adaptNow},
	}
	if _, changed := planner.Adapt(plan, planner.Cycle{Evaluations: foreign, Now: adaptNow}, cfg); changed {
		t.Error("foreign evaluations changed the plan")
	}
}

func TestAdapt_OnlyFreshTopicsDonate(t *testing.T) {
	cfg := planner.DefaultConfig()
	v1 := twoTopicPlan(t)
	evals := []planner.Evaluation{
		evaluation("A", 95, 20, adaptNow.Add(-3*time.Hour)),
		evaluation("B", 60, 10, adaptNow.Add(-170*time.Minute)),
	}
	v2, changed := planner.Adapt(v1, planner.Cycle{Evaluations: evals, Now: adaptNow}, cfg)
	if !changed {
		t.Fatal("cycle 1 changed = false")
	}
	if diff := cmp.Diff([]int{40, 50}, minutes(v2.Allocations)); diff != "" {
		t.Fatalf("v2 minutes mismatch (-want +got):\n%s", diff)
	}

	// Cycles driven by B alone carry no new evidence about A.
	plan := v2
	for i, at := range []time.Time{adaptNow.Add(-2 * time.Hour), adaptNow.Add(-time.Hour)} {
		evals = append(evals, evaluation("B", 60, 5, at))
		next, changed := planner.Adapt(plan, planner.Cycle{Evaluations: evals, Now: adaptNow}, cfg)
		if !changed {
			t.Fatalf("cycle %d changed = false", i+2)
		}
		if diff := cmp.Diff([]int{40, 50}, minutes(next.Allocations)); diff != "" {
			t.Errorf("v%d minutes mismatch (-want +got):\n%s", next.Version, diff)
		}
		plan = next
	}
	if plan.Version != 4 || plan.Allocations[1].SpentMinutes != 20 {
		t.Errorf("v%d B spent = %d, want v4 with 20", plan.Version, plan.Allocations[1].SpentMinutes)
	}

	// Fresh evidence for both resumes the transfer.
	evals = append(evals,
		evaluation("A", 95, 5, adaptNow.Add(-30*time.Minute)),
		evaluation("B", 60, 5, adaptNow.Add(-20*time.Minute)),
	)
	v5, changed := planner.Adapt(plan, planner.Cycle{Evaluations: evals, Now: adaptNow}, cfg)
	if !changed {
		t.Fatal("cycle 4 changed = false")
	}
	if diff := cmp.Diff([]int{33, 57}, minutes(v5.Allocations)); diff != "" {
		t.Errorf("v5 minutes mismatch (-want +got):\n%s", diff)
	}
}

func TestAdapt_SameTimestampEvaluationIsFresh(t *testing.T) {
	cfg := planner.DefaultConfig()
	at := adaptNow.Add(-time.Hour)
	first := evaluation("B", 60, 10, at)
	first.ID = "ev-1"

	v2, changed := planner.Adapt(twoTopicPlan(t), planner.Cycle{Evaluations: []planner.Evaluation{first}, Now: adaptNow}, cfg)
	if !changed {
		t.Fatal("cycle 1 changed = false")
	}
	if diff := cmp.Diff([]string{"ev-1"}, v2.Metadata.Consumed); diff != "" {
		t.Errorf("consumed mismatch (-want +got):\n%s", diff)
	}

	late := evaluation("B", 60, 10, at)
	late.ID = "ev-0"
	all := []planner.Evaluation{first, late}
	if got := planner.NewEvaluations(v2, all); len(got) != 1 || got[0].ID != "ev-0" {
		t.Fatalf("NewEvaluations() = %v, want only ev-0", got)
	}
	v3, changed := planner.Adapt(v2, planner.Cycle{Evaluations: all, Now: adaptNow}, cfg)
	if !changed {
		t.Fatal("evaluation sharing the cursor timestamp was ignored")
	}
	if v3.Allocations[1].SpentMinutes != 20 {
		t.Errorf("B spent = %d, want 20", v3.Allocations[1].SpentMinutes)
	}
	if diff := cmp.Diff([]string{"ev-0", "ev-1"}, v3.Metadata.Consumed); diff != "" {
		t.Errorf("consumed mismatch (-want +got):\n%s", diff)
	}
}

func TestAdapt_CompletedAllocationsAreFrozen(t *testing.T) {
	cfg := planner.DefaultConfig()
	plan := twoTopicPlan(t)
	plan.Allocations[0].Status = planner.StatusCompleted
	plan.Allocations[0].SpentMinutes = 60
	plan.Fingerprint = planner.Fingerprint(plan)

	evals := []planner.Evaluation{
		evaluation("A", 99, 60, adaptNow.Add(-2*time.Hour)),
		evaluation("B", 40, 10, adaptNow.Add(-time.Hour)),
	}
	next, changed := planner.Adapt(plan, planner.Cycle{
		Evaluations: evals,
		Adjustments: map[string]curriculum.Difficulty{"B": curriculum.DifficultyEasy},
		Now:         adaptNow,
	}, cfg)
	if !changed {
		t.Fatal("Adapt() changed = false")
	}
	if diff := cmp.Diff(plan.Allocations[0], next.Allocations[0]); diff != "" {
		t.Errorf("completed allocation changed (-want +got):\n%s", diff)
	}
	if next.Allocations[1].Minutes != 30 || next.Allocations[1].Difficulty != curriculum.DifficultyEasy {
		t.Errorf("B = %d minutes at %s, want 30 at easy", next.Allocations[1].Minutes, next.Allocations[1].Difficulty)
	}
}

func TestAdapt_FinishedTopicCompletes(t *testing.T) {
	cfg := planner.DefaultConfig()
	plan := twoTopicPlan(t)
	evals := []planner.Evaluation{evaluation("B", 75, 45, adaptNow.Add(-time.Hour))}

	next, changed := planner.Adapt(plan, planner.Cycle{Evaluations: evals, Now: adaptNow}, cfg)
	if !changed {
		t.Fatal("Adapt() changed = false")
	}
	b := next.Allocations[1]
	if b.Status != planner.StatusCompleted || b.SpentMinutes != b.Minutes {
		t.Errorf("B = %+v, want completed with spent clamped to minutes", b)
	}
}

func TestDefaultAdjustments(t *testing.T) {
	cfg := planner.DefaultConfig()
	plan := twoTopicPlan(t)
	progress := planner.Summarize([]planner.Evaluation{
		evaluation("A", 90, 10, adaptNow),
		evaluation("A", 100, 10, adaptNow),
		evaluation("B", 50, 10, adaptNow),
	})

	if p := progress["A"]; p.Average != 95 || p.Evaluations != 2 || p.Spent != 20 {
		t.Errorf("progress[A] = %+v", p)
	}
	got := planner.DefaultAdjustments(plan, progress, cfg)
	want := map[string]curriculum.Difficulty{"A": curriculum.DifficultyHard, "B": curriculum.DifficultyEasy}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("adjustments mismatch (-want +got):\n%s", diff)
	}
}
