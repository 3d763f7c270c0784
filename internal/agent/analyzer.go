package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

// ContextCache stores analysed contexts between runs. Implemented by
// cache.Cache.
type ContextCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Analyzer produces the study context for one student and day.
type Analyzer struct {
	completer ai.Completer
	cache     ContextCache
	ttl       time.Duration
}

// NewAnalyzer creates an analyzer. cache may be nil.
func NewAnalyzer(completer ai.Completer, cache ContextCache, ttl time.Duration) *Analyzer {
	return &Analyzer{completer: completer, cache: cache, ttl: ttl}
}

func contextKey(studentID, date string) string {
	return fmt.Sprintf("planner:context:%s:%s", studentID, date)
}

// Analyze asks the generation capability for the student's context and
// falls back to planner.HeuristicContext when it cannot produce a valid one.
// Only generated contexts are cached; a heuristic result is retried next run.
func (a *Analyzer) Analyze(ctx context.Context, profile planner.StudentProfile, history []planner.PerformanceRecord, date string, rec *Degradations) planner.Context {
	key := contextKey(profile.StudentID, date)
	if a.cache != nil {
		var cached planner.Context
		ok, err := a.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			slog.Warn("context cache read failed", "student_id", profile.StudentID, "error", err)
		}
		if ok && planner.ValidContext(cached) {
			return cached
		}
	}

	c := RunStage(ctx, rec, StageContextAnalysis,
		func(ctx context.Context) (planner.Context, error) {
			if a.completer == nil {
				return planner.Context{}, ai.ErrUnavailable
			}
			c, err := ai.CompleteStructured[planner.Context](ctx, a.completer, ai.GenerateRequest{
				System:      contextSystemPrompt,
				Prompt:      contextPrompt(profile, history),
				MaxTokens:   400,
				Temperature: 0.2,
				Task:        ai.TaskAnalysis,
				Owner:       profile.StudentID,
			}, contextSchema)
			if err != nil {
				return planner.Context{}, err
			}
			if !planner.ValidContext(c) {
				return planner.Context{}, fmt.Errorf("context fields: %w", ai.ErrInvalidResponse)
			}
			if c.StudyPatterns == nil {
				c.StudyPatterns = []string{}
			}
			if a.cache != nil {
				if err := a.cache.SetJSON(ctx, key, c, a.ttl); err != nil {
					slog.Warn("context cache write failed", "student_id", profile.StudentID, "error", err)
				}
			}
			return c, nil
		},
		func(error) planner.Context {
			return planner.HeuristicContext(profile, history)
		},
	)
	return c
}
