package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-planner/internal/ai"
)

var scoreSchema = ai.MustSchema("score", `{
  "type": "object",
  "required": ["score"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "note": {"type": "string"}
  }
}`)

type scoreAnswer struct {
	Score float64 `json:"score"`
	Note  string  `json:"note"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose", "Sure! Here it is: {\"a\":1} hope that helps", `{"a":1}`},
		{"no object", "nothing", "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ai.ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{"valid", `{"score": 82.5, "note": "good"}`, 82.5, false},
		{"fenced", "```json\n{\"score\": 40}\n```", 40, false},
		{"missing field", `{"note": "x"}`, 0, true},
		{"out of range", `{"score": 140}`, 0, true},
		{"wrong type", `{"score": "high"}`, 0, true},
		{"not json", `the score is 80`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ai.DecodeJSON[scoreAnswer](tt.in, scoreSchema)
			if tt.wantErr {
				if !errors.Is(err, ai.ErrInvalidResponse) {
					t.Fatalf("error = %v, want ErrInvalidResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON() error = %v", err)
			}
			if got.Score != tt.want {
				t.Errorf("Score = %v, want %v", got.Score, tt.want)
			}
		})
	}
}

func TestNewSchema_Invalid(t *testing.T) {
	if _, err := ai.NewSchema("bad", `{"type": 12}`); err == nil {
		t.Error("NewSchema() should reject an invalid schema")
	}
}

func TestCompleteStructured(t *testing.T) {
	c := ai.NewScriptedCompleter().On(ai.TaskGrading, `{"score": 90}`)
	got, err := ai.CompleteStructured[scoreAnswer](context.Background(), c, ai.GenerateRequest{Task: ai.TaskGrading}, scoreSchema)
	if err != nil {
		t.Fatalf("CompleteStructured() error = %v", err)
	}
	if got.Score != 90 {
		t.Errorf("Score = %v, want 90", got.Score)
	}

	c.Fail(ai.TaskAnalysis, ai.ErrUnavailable)
	if _, err := ai.CompleteStructured[scoreAnswer](context.Background(), c, ai.GenerateRequest{Task: ai.TaskAnalysis}, scoreSchema); !errors.Is(err, ai.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}
