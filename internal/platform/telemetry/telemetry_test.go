package telemetry

import (
	"context"
	"testing"
)

func TestInit_None(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Exporter: "none", ServiceName: "test"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	if _, err := Init(context.Background(), Config{Exporter: "zipkin"}); err == nil {
		t.Fatal("Init() should reject an unknown exporter")
	}
}

func TestInit_Stdout(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Exporter: "stdout", ServiceName: "test", SampleRatio: 1})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0}, {0, 0}, {0.25, 0.25}, {1, 1}, {3, 1},
	}
	for _, tt := range tests {
		if got := ratio(tt.in); got != tt.want {
			t.Errorf("ratio(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
