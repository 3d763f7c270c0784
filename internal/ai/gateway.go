// Package ai is the boundary to the external generation capability: a
// provider-agnostic gateway, a fallback router across providers, and a
// Generator that adds timeouts, bounded retries and schema validation.
package ai

import "context"

// TaskType names the pipeline stage a request serves, for routing and logs.
type TaskType int

const (
	TaskAnalysis TaskType = iota
	TaskGeneration
	TaskGrading
	TaskAdaptation
)

func (t TaskType) String() string {
	switch t {
	case TaskAnalysis:
		return "analysis"
	case TaskGeneration:
		return "generation"
	case TaskGrading:
		return "grading"
	case TaskAdaptation:
		return "adaptation"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	JSONMode    bool      `json:"json_mode,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	HealthCheck(ctx context.Context) error
}

// GenerateRequest is the pipeline's view of one generation call:
// complete(systemInstruction, userPrompt, maxOutputTokens, temperature).
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Task        TaskType
	Owner       string // student the call is made for; used for budget accounting
}

// Completer is the outbound generation capability. Implementations may be
// slow, unavailable or return malformed output.
type Completer interface {
	Complete(ctx context.Context, req GenerateRequest) (string, error)
}
