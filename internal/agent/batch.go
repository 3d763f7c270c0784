package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-planner/internal/planner"
)

const defaultBatchConcurrency = 8

// PlanGenerator builds a student's plan for a date.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, studentID, date string) (*planner.DailyPlan, error)
}

// Batch plans the day for every active student.
type Batch struct {
	gen         PlanGenerator
	profiles    ProfileSource
	concurrency int
}

// BatchResult summarises one batch run.
type BatchResult struct {
	Date     string
	Students int
	Planned  int64
	Degraded int64
	Failed   int64
	Elapsed  time.Duration
}

// NewBatch creates a batch running at most concurrency students at once.
func NewBatch(gen PlanGenerator, profiles ProfileSource, concurrency int) *Batch {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	return &Batch{gen: gen, profiles: profiles, concurrency: concurrency}
}

// Run generates date's plan for every active student. One student's failure
// does not stop the others; failures are counted and logged.
func (b *Batch) Run(ctx context.Context, date string) (BatchResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Batch.Run")
	defer span.End()

	ids, err := b.profiles.ActiveStudents(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list active students: %w", err)
	}

	res := BatchResult{Date: date, Students: len(ids)}
	var planned, degraded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			plan, err := b.gen.GeneratePlan(gctx, id, date)
			if err != nil {
				failed.Add(1)
				slog.Error("batch plan failed",
					"student_id", id,
					"date", date,
					"error", err,
				)
				return nil
			}
			planned.Add(1)
			if plan.Metadata.FallbackUsed {
				degraded.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Planned = planned.Load()
	res.Degraded = degraded.Load()
	res.Failed = failed.Load()
	res.Elapsed = time.Since(start)

	slog.Info("batch finished",
		"date", date,
		"students", res.Students,
		"planned", res.Planned,
		"degraded", res.Degraded,
		"failed", res.Failed,
		"elapsed", res.Elapsed,
	)
	return res, ctx.Err()
}
