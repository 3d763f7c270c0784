package agent_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/p-n-ai/pai-planner/internal/agent"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

type fakeGenerator struct {
	mu       sync.Mutex
	seen     []string
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     map[string]bool
	degraded map[string]bool
}

func (g *fakeGenerator) GeneratePlan(_ context.Context, studentID, date string) (*planner.DailyPlan, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	g.mu.Lock()
	g.seen = append(g.seen, studentID)
	g.mu.Unlock()

	if g.fail[studentID] {
		return nil, errors.New("store unavailable")
	}
	return &planner.DailyPlan{
		StudentID: studentID,
		Date:      date,
		Version:   1,
		Metadata:  planner.Metadata{FallbackUsed: g.degraded[studentID]},
	}, nil
}

func TestBatch_Run(t *testing.T) {
	profiles := agent.NewMemoryProfiles()
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		profiles.Put(testProfile(id))
	}
	profiles.SetActive("s6", false)

	gen := &fakeGenerator{
		fail:     map[string]bool{"s2": true},
		degraded: map[string]bool{"s3": true},
	}
	res, err := agent.NewBatch(gen, profiles, 2).Run(context.Background(), testDate)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Students != 5 || res.Planned != 4 || res.Failed != 1 || res.Degraded != 1 {
		t.Errorf("result = %+v, want 5 students, 4 planned, 1 failed, 1 degraded", res)
	}
	if peak := gen.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	for _, id := range gen.seen {
		if id == "s6" {
			t.Error("inactive student was planned")
		}
	}
}

func TestBatch_RunWithEngine(t *testing.T) {
	f := newEngine(t, nil)
	profiles := agent.NewMemoryProfiles(testProfile("s1"), testProfile("s2"))

	res, err := agent.NewBatch(f.engine, profiles, 0).Run(context.Background(), testDate)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Planned != 2 || res.Degraded != 2 {
		t.Errorf("result = %+v, want 2 planned, both degraded without a generation capability", res)
	}
	for _, id := range []string{"s1", "s2"} {
		if _, err := f.engine.Plan(context.Background(), id, testDate); err != nil {
			t.Errorf("Plan(%s) error = %v", id, err)
		}
	}
}

func TestScheduler(t *testing.T) {
	batch := agent.NewBatch(&fakeGenerator{}, agent.NewMemoryProfiles(), 1)

	if _, err := agent.NewScheduler(batch, "not a schedule", time.UTC); err == nil {
		t.Error("NewScheduler() with invalid spec should fail")
	}

	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	s, err := agent.NewScheduler(batch, "0 6 * * *", loc)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.Start()
	defer s.Stop()

	next := s.Next().In(loc)
	if next.Hour() != 6 || next.Minute() != 0 {
		t.Errorf("Next() = %v, want 06:00 local", next)
	}
}
