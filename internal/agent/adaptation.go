package agent

import (
	"context"
	"strings"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

// DefaultAdaptationNote is attached to plans adapted without generated advice.
const DefaultAdaptationNote = "Plan adjusted to today's results: more time on weaker topics, less on mastered ones."

// Adviser suggests difficulty changes and a short note for an adaptation cycle.
type Adviser struct {
	completer ai.Completer
	cfg       planner.Config
}

// NewAdviser creates an adviser.
func NewAdviser(completer ai.Completer, cfg planner.Config) *Adviser {
	return &Adviser{completer: completer, cfg: cfg}
}

// Advise returns per-topic difficulty adjustments and a note. Generated
// adjustments for completed or unknown topics are ignored. On failure it
// returns planner.DefaultAdjustments and DefaultAdaptationNote.
func (a *Adviser) Advise(ctx context.Context, plan *planner.DailyPlan, progress map[string]planner.TopicProgress, rec *Degradations) (map[string]curriculum.Difficulty, string) {
	type advice struct {
		adjustments map[string]curriculum.Difficulty
		note        string
	}

	out := RunStage(ctx, rec, StageAdaptation,
		func(ctx context.Context) (advice, error) {
			if a.completer == nil {
				return advice{}, ai.ErrUnavailable
			}
			ans, err := ai.CompleteStructured[adaptationAnswer](ctx, a.completer, ai.GenerateRequest{
				System:      adaptationSystemPrompt,
				Prompt:      adaptationPrompt(plan, progress),
				MaxTokens:   400,
				Temperature: 0.3,
				Task:        ai.TaskAdaptation,
				Owner:       plan.StudentID,
			}, adaptationSchema)
			if err != nil {
				return advice{}, err
			}
			adj := make(map[string]curriculum.Difficulty)
			for _, x := range ans.Adjustments {
				alloc, ok := plan.Allocation(x.TopicID)
				if !ok || alloc.Status == planner.StatusCompleted {
					continue
				}
				adj[x.TopicID] = x.Difficulty
			}
			note := strings.TrimSpace(ans.Note)
			if note == "" {
				note = DefaultAdaptationNote
			}
			return advice{adjustments: adj, note: note}, nil
		},
		func(error) advice {
			return advice{
				adjustments: planner.DefaultAdjustments(plan, progress, a.cfg),
				note:        DefaultAdaptationNote,
			}
		},
	)
	return out.adjustments, out.note
}
