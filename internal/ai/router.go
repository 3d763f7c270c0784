package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Router tries registered providers in registration order until one succeeds.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

type namedProvider struct {
	name     string
	provider Provider
}

// snapshot copies the chain so no lock is held while providers do I/O.
func (r *Router) snapshot() []namedProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]namedProvider, 0, len(r.fallback))
	for _, name := range r.fallback {
		out = append(out, namedProvider{name: name, provider: r.providers[name]})
	}
	return out
}

// Complete routes a request to the first provider that answers. When every
// provider fails the last error is returned, wrapped, so callers can still
// tell a rate limit from a hard failure.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	chain := r.snapshot()
	if len(chain) == 0 {
		return CompletionResponse{}, ErrUnavailable
	}

	var lastErr error
	for _, p := range chain {
		resp, err := p.provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", p.name,
				"task", req.Task.String(),
				"error", err,
			)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		slog.Debug("AI request completed",
			"provider", p.name,
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w: %w", ErrTimeout, lastErr)
	}
	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", lastErr)
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// HealthCheck reports healthy when any provider is healthy.
func (r *Router) HealthCheck(ctx context.Context) error {
	chain := r.snapshot()
	if len(chain) == 0 {
		return ErrUnavailable
	}
	var errs []error
	for _, p := range chain {
		err := p.provider.HealthCheck(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
	}
	return errors.Join(errs...)
}
