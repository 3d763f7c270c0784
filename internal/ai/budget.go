package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BudgetChecker checks and records token usage per student per day.
type BudgetChecker interface {
	// Check returns true if owner has budget remaining.
	Check(ctx context.Context, owner string) (bool, error)
	// Record adds token usage for owner.
	Record(ctx context.Context, owner string, tokens int) error
}

// InMemoryBudget is a daily token budget shared by every student. Usage
// resets when the UTC day changes.
type InMemoryBudget struct {
	mu    sync.Mutex
	limit int64
	day   string
	usage map[string]int64
	now   func() time.Time
}

// NewInMemoryBudget creates a tracker with a per-student daily limit.
// A limit of zero or less means unlimited.
func NewInMemoryBudget(dailyLimit int64) *InMemoryBudget {
	return &InMemoryBudget{
		limit: dailyLimit,
		usage: make(map[string]int64),
		now:   time.Now,
	}
}

// roll clears usage on a new day. Caller holds mu.
func (b *InMemoryBudget) roll() {
	day := b.now().UTC().Format("2006-01-02")
	if day != b.day {
		b.day = day
		clear(b.usage)
	}
}

func (b *InMemoryBudget) Check(_ context.Context, owner string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.usage[owner] < b.limit, nil
}

func (b *InMemoryBudget) Record(_ context.Context, owner string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	b.usage[owner] += int64(tokens)
	return nil
}

// Usage returns tokens used today by owner and the daily limit.
func (b *InMemoryBudget) Usage(owner string) (used, limit int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.usage[owner], b.limit
}
