package httpapi_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/p-n-ai/pai-planner/internal/httpapi"
)

// fakeBus is an in-process Subscriber.
type fakeBus struct {
	mu         sync.Mutex
	subs       map[string]chan []byte
	subscribed chan string
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string]chan []byte), subscribed: make(chan string, 4)}
}

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 4)
	b.mu.Lock()
	b.subs[channel] = ch
	b.mu.Unlock()
	b.subscribed <- channel
	return ch, nil
}

func (b *fakeBus) publish(channel string, payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] <- []byte(payload)
}

func (b *fakeBus) close(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	close(b.subs[channel])
}

func TestStream(t *testing.T) {
	bus := newFakeBus()
	srv := newServer(t, httpapi.Config{
		Events:  bus,
		Channel: func(id string) string { return "planner:events:" + id },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/students/s1/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.CloseNow() }()

	select {
	case ch := <-bus.subscribed:
		if ch != "planner:events:s1" {
			t.Fatalf("subscribed to %q", ch)
		}
	case <-ctx.Done():
		t.Fatal("server never subscribed")
	}

	bus.publish("planner:events:s1", `{"type":"plan_adapted","version":2}`)
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if typ != websocket.MessageText || string(data) != `{"type":"plan_adapted","version":2}` {
		t.Errorf("message = %v %s", typ, data)
	}

	// The subscription ending closes the socket normally.
	bus.close("planner:events:s1")
	_, _, err = conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Errorf("close status = %v (%v), want normal closure", websocket.CloseStatus(err), err)
	}
}
