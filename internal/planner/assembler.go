package planner

import (
	"time"

	"github.com/google/uuid"
)

// AssembleInput carries everything the assembler packages into a plan.
type AssembleInput struct {
	StudentID      string
	Date           string
	Budget         int
	Allocations    []TopicAllocation
	Breaks         []BreakSlot
	Context        Context
	DegradedStages []string
	GeneratedAt    time.Time
}

// Assemble packages allocations and breaks into version 1 of a daily plan.
func Assemble(in AssembleInput, cfg Config) *DailyPlan {
	var objectives []string
	seen := make(map[string]bool)
	for _, a := range in.Allocations {
		for _, o := range a.Objectives {
			if !seen[o] {
				seen[o] = true
				objectives = append(objectives, o)
			}
		}
	}

	p := &DailyPlan{
		ID:            uuid.NewString(),
		StudentID:     in.StudentID,
		Date:          in.Date,
		Version:       1,
		BudgetMinutes: in.Budget,
		Allocations:   in.Allocations,
		Breaks:        in.Breaks,
		Objectives:    objectives,
		Parameters: Parameters{
			Context:            in.Context,
			FocusWindowMinutes: cfg.FocusWindow,
			MinAllocation:      cfg.MinAllocation,
			MaxAllocation:      cfg.MaxAllocation,
		},
		Metadata: Metadata{
			GeneratedAt:    in.GeneratedAt,
			FallbackUsed:   len(in.DegradedStages) > 0,
			DegradedStages: in.DegradedStages,
		},
	}
	if p.Allocations == nil {
		p.Allocations = []TopicAllocation{}
	}
	if p.Objectives == nil {
		p.Objectives = []string{}
	}
	p.Fingerprint = Fingerprint(p)
	return p
}
