package cache

import (
	"context"
	"fmt"
	"time"
)

// TokenBudget tracks per-student daily token usage in Redis so every
// replica sees the same totals. Keys expire two days after first use.
type TokenBudget struct {
	cache *Cache
	limit int64
	now   func() time.Time
}

// NewTokenBudget returns a budget with a per-student daily limit.
// A limit of zero or less means unlimited.
func NewTokenBudget(c *Cache, dailyLimit int64) *TokenBudget {
	return &TokenBudget{cache: c, limit: dailyLimit, now: time.Now}
}

func (b *TokenBudget) key(owner string) string {
	return fmt.Sprintf("planner:tokens:%s:%s", b.now().UTC().Format("2006-01-02"), owner)
}

// Check reports whether owner still has tokens left today.
func (b *TokenBudget) Check(ctx context.Context, owner string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	used, err := b.cache.Client.Get(ctx, b.key(owner)).Int64()
	if err != nil {
		if isNil(err) {
			return true, nil
		}
		return false, fmt.Errorf("read token usage: %w", err)
	}
	return used < b.limit, nil
}

// Record adds tokens to owner's usage for today.
func (b *TokenBudget) Record(ctx context.Context, owner string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	key := b.key(owner)
	pipe := b.cache.Client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record token usage: %w", err)
	}
	return nil
}
