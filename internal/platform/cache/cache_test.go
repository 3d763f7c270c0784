package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
		{"wrong scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStudentChannel(t *testing.T) {
	if got := StudentChannel("s-1"); got != "planner:events:s-1" {
		t.Errorf("StudentChannel() = %q", got)
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

// startRedis runs a throwaway Redis container.
func startRedis(t *testing.T) *Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := t.Context()

	ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp").WithStartupTimeout(30*time.Second)),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	c, err := New(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_JSONRoundTrip(t *testing.T) {
	c := startRedis(t)
	ctx := t.Context()

	type payload struct {
		Level string   `json:"level"`
		Tags  []string `json:"tags"`
	}

	var got payload
	found, err := c.GetJSON(ctx, "missing", &got)
	if err != nil || found {
		t.Fatalf("GetJSON(missing) = %v, %v; want false, nil", found, err)
	}

	want := payload{Level: "beginner", Tags: []string{"evening"}}
	if err := c.SetJSON(ctx, "ctx:s1", want, time.Minute); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	found, err = c.GetJSON(ctx, "ctx:s1", &got)
	if err != nil || !found {
		t.Fatalf("GetJSON() = %v, %v; want true, nil", found, err)
	}
	if got.Level != want.Level || len(got.Tags) != 1 || got.Tags[0] != "evening" {
		t.Errorf("GetJSON() = %+v, want %+v", got, want)
	}
}

func TestCache_PubSub(t *testing.T) {
	c := startRedis(t)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	msgs, err := c.Subscribe(ctx, StudentChannel("s1"))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := c.Publish(ctx, StudentChannel("s1"), []byte(`{"type":"plan_generated"}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case m := <-msgs:
		if string(m) != `{"type":"plan_generated"}` {
			t.Errorf("payload = %s", m)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestTokenBudget(t *testing.T) {
	c := startRedis(t)
	ctx := t.Context()

	b := NewTokenBudget(c, 100)
	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return day }

	if ok, err := b.Check(ctx, "s1"); err != nil || !ok {
		t.Fatalf("Check() fresh = %v, %v; want true", ok, err)
	}
	if err := b.Record(ctx, "s1", 120); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, _ := b.Check(ctx, "s1"); ok {
		t.Error("Check() = true after exceeding limit")
	}

	day = day.Add(24 * time.Hour)
	if ok, _ := b.Check(ctx, "s1"); !ok {
		t.Error("Check() = false on a new day")
	}
}

func TestTokenBudget_Unlimited(t *testing.T) {
	b := NewTokenBudget(nil, 0)
	ok, err := b.Check(context.Background(), "s1")
	if err != nil || !ok {
		t.Errorf("Check() = %v, %v; want true, nil", ok, err)
	}
}
