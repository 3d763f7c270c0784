package agent

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage names a pipeline stage that calls the generation capability.
type Stage string

const (
	StageContextAnalysis Stage = "context_analysis"
	StageTaskGeneration  Stage = "task_generation"
	StageEvaluation      Stage = "evaluation"
	StageAdaptation      Stage = "adaptation"
)

// Degradations collects the stages that fell back during one run.
// It is safe for concurrent use.
type Degradations struct {
	mu     sync.Mutex
	stages map[Stage]bool
}

// Record marks stage as degraded.
func (d *Degradations) Record(stage Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stages == nil {
		d.stages = make(map[Stage]bool)
	}
	d.stages[stage] = true
}

// Has reports whether stage degraded.
func (d *Degradations) Has(stage Stage) bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stages[stage]
}

// List returns the degraded stages in sorted order.
func (d *Degradations) List() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.stages))
	for s := range d.stages {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// RunStage executes primary in its own span and, if it fails for any
// reason, records the stage on rec and returns fallback(err) instead.
// Callers never see the primary error; it is logged and kept on the span.
func RunStage[T any](ctx context.Context, rec *Degradations, stage Stage, primary func(context.Context) (T, error), fallback func(error) T) T {
	ctx, span := tracer.Start(ctx, "stage."+string(stage), trace.WithAttributes(attribute.String("stage", string(stage))))
	defer span.End()

	v, err := primary(ctx)
	if err == nil {
		return v
	}

	if rec != nil {
		rec.Record(stage)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "stage degraded")
	span.SetAttributes(attribute.Bool("degraded", true))
	slog.Warn("stage degraded, using fallback",
		"stage", string(stage),
		"error", err,
	)
	return fallback(err)
}

// mergeStages unions two sorted stage lists.
func mergeStages(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
