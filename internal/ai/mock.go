package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers.
type MockProvider struct {
	Response    string
	Err         error
	LastRequest *CompletionRequest // captures the last request for inspection
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.LastRequest = &req
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	return CompletionResponse{
		Content:      m.Response,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(m.Response),
	}, nil
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}

// ScriptedCompleter is a Completer test double that answers per task type.
// It is safe for concurrent use.
type ScriptedCompleter struct {
	mu        sync.Mutex
	responses map[TaskType][]string
	errs      map[TaskType]error
	calls     map[TaskType]int
	requests  []GenerateRequest
}

// NewScriptedCompleter returns a completer with no scripted answers; unscripted
// tasks fail with ErrUnavailable.
func NewScriptedCompleter() *ScriptedCompleter {
	return &ScriptedCompleter{
		responses: make(map[TaskType][]string),
		errs:      make(map[TaskType]error),
		calls:     make(map[TaskType]int),
	}
}

// On queues responses for a task type. The last response repeats.
func (s *ScriptedCompleter) On(task TaskType, responses ...string) *ScriptedCompleter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[task] = append(s.responses[task], responses...)
	return s
}

// Fail makes every call for task return err.
func (s *ScriptedCompleter) Fail(task TaskType, err error) *ScriptedCompleter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[task] = err
	return s
}

func (s *ScriptedCompleter) Complete(ctx context.Context, req GenerateRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	n := s.calls[req.Task]
	s.calls[req.Task]++

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := s.errs[req.Task]; ok {
		return "", err
	}
	queue := s.responses[req.Task]
	if len(queue) == 0 {
		return "", ErrUnavailable
	}
	if n >= len(queue) {
		n = len(queue) - 1
	}
	return queue[n], nil
}

// Calls returns how many requests were made for task.
func (s *ScriptedCompleter) Calls(task TaskType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[task]
}

// Requests returns every request seen so far.
func (s *ScriptedCompleter) Requests() []GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GenerateRequest(nil), s.requests...)
}
