package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema validates generation output against a JSON Schema document.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// NewSchema compiles a JSON Schema document.
func NewSchema(name, document string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustSchema is NewSchema for package-level schemas that are known good.
func MustSchema(name, document string) *Schema {
	s, err := NewSchema(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks raw JSON against the schema.
func (s *Schema) Validate(raw []byte) error {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, s.name, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrInvalidResponse, s.name, strings.Join(msgs, "; "))
	}
	return nil
}

// ExtractJSON strips markdown code fences and surrounding prose, returning
// the outermost JSON object in text.
func ExtractJSON(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```json")
		t = strings.TrimPrefix(t, "```")
		t = strings.TrimSuffix(strings.TrimSpace(t), "```")
		t = strings.TrimSpace(t)
	}
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1]
	}
	return t
}

// DecodeJSON validates text against schema (when non-nil) and decodes it into T.
func DecodeJSON[T any](text string, schema *Schema) (T, error) {
	var out T
	raw := []byte(ExtractJSON(text))
	if schema != nil {
		if err := schema.Validate(raw); err != nil {
			return out, err
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}
	return out, nil
}

// CompleteStructured runs one generation call and decodes its answer.
func CompleteStructured[T any](ctx context.Context, c Completer, req GenerateRequest, schema *Schema) (T, error) {
	text, err := c.Complete(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeJSON[T](text, schema)
}
