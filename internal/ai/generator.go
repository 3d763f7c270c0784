package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultGenerateTimeout = 30 * time.Second
	defaultGenerateRetries = 2
)

// Generator implements Completer on top of a Router. Each attempt gets its
// own timeout; timeouts, rate limits and 5xx responses are retried with
// exponential backoff.
type Generator struct {
	router   *Router
	timeout  time.Duration
	retries  uint64
	interval time.Duration
	budget   BudgetChecker
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetries sets how many times a retryable failure is retried.
func WithRetries(n int) GeneratorOption {
	return func(g *Generator) {
		if n >= 0 {
			g.retries = uint64(n)
		}
	}
}

// WithBackoffInterval sets the initial delay between retries.
func WithBackoffInterval(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.interval = d
	}
}

// WithBudget enables per-student token accounting.
func WithBudget(b BudgetChecker) GeneratorOption {
	return func(g *Generator) {
		g.budget = b
	}
}

// NewGenerator wraps router.
func NewGenerator(router *Router, opts ...GeneratorOption) *Generator {
	g := &Generator{
		router:   router,
		timeout:  defaultGenerateTimeout,
		retries:  defaultGenerateRetries,
		interval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete sends one generation request and returns the raw text answer.
func (g *Generator) Complete(ctx context.Context, req GenerateRequest) (string, error) {
	if g.budget != nil && req.Owner != "" {
		ok, err := g.budget.Check(ctx, req.Owner)
		if err != nil {
			slog.Warn("budget check failed", "owner", req.Owner, "error", err)
		} else if !ok {
			return "", ErrBudgetExhausted
		}
	}

	msgs := make([]Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, Message{Role: "user", Content: req.Prompt})
	creq := CompletionRequest{
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		JSONMode:    true,
		Task:        req.Task,
	}

	var resp CompletionResponse
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		r, err := g.router.Complete(attemptCtx, creq)
		if err != nil {
			if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil && !errors.Is(err, ErrTimeout) {
				err = fmt.Errorf("%w: %w", ErrTimeout, err)
			}
			if ctx.Err() != nil || !Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.interval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, g.retries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		slog.Warn("generation failed, retrying",
			"task", req.Task.String(),
			"owner", req.Owner,
			"wait", wait,
			"error", err,
		)
	})
	if err != nil {
		return "", err
	}

	if g.budget != nil && req.Owner != "" {
		if err := g.budget.Record(ctx, req.Owner, resp.TotalTokens()); err != nil {
			slog.Warn("failed to record token usage", "owner", req.Owner, "error", err)
		}
	}
	return resp.Content, nil
}
