package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/p-n-ai/pai-planner/internal/planner"
)

// Scheduler triggers the daily batch at a fixed local time.
type Scheduler struct {
	cron  *cron.Cron
	batch *Batch
	loc   *time.Location
	now   func() time.Time
}

// NewScheduler registers batch to run on spec (standard five-field cron) in
// loc. Overlapping runs are skipped.
func NewScheduler(batch *Batch, spec string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		batch: batch,
		loc:   loc,
		now:   time.Now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
	if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
		return nil, fmt.Errorf("parse batch schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) fire() {
	date := s.now().In(s.loc).Format(planner.DateLayout)
	slog.Info("scheduled batch starting", "date", date)
	if _, err := s.batch.Run(context.Background(), date); err != nil {
		slog.Error("scheduled batch failed", "date", date, "error", err)
	}
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and returns a context done when the running batch
// (if any) finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
