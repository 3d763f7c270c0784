package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types emitted by the engine.
const (
	EventPlanGenerated = "plan_generated"
	EventPlanAdapted   = "plan_adapted"
	EventTaskStarted   = "task_started"
	EventTaskEvaluated = "task_evaluated"
	EventStageDegraded = "stage_degraded"
)

// Event is an analytics record of something the engine did for a student.
type Event struct {
	StudentID string         `json:"student_id"`
	EventType string         `json:"type"`
	PlanDate  string         `json:"plan_date,omitempty"`
	Version   int            `json:"version,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error {
	return nil
}

func validateEvent(event *Event) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.StudentID == "" {
		return fmt.Errorf("student_id is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, event Event) error {
	if err := validateEvent(&event); err != nil {
		return err
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// OfType returns the logged events of one type.
func (l *MemoryEventLogger) OfType(eventType string) []Event {
	var out []Event
	for _, e := range l.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// PostgresEventLogger inserts events into the events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if err := validateEvent(&event); err != nil {
		return err
	}

	payload := map[string]any{}
	for k, v := range event.Data {
		payload[k] = v
	}
	if event.PlanDate != "" {
		payload["plan_date"] = event.PlanDate
	}
	if event.Version != 0 {
		payload["version"] = event.Version
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO events (student_id, event_type, data, created_at)
		 VALUES ($1, $2, $3::jsonb, $4)`,
		event.StudentID,
		event.EventType,
		string(data),
		event.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.EventType,
		"student_id", event.StudentID,
	)
	return nil
}

// Publisher sends a payload to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PublishingEventLogger fans events out on a per-student channel so live
// clients can follow plan changes.
type PublishingEventLogger struct {
	pub     Publisher
	channel func(studentID string) string
}

// NewPublishingEventLogger publishes each event as JSON on channel(studentID).
func NewPublishingEventLogger(pub Publisher, channel func(studentID string) string) *PublishingEventLogger {
	return &PublishingEventLogger{pub: pub, channel: channel}
}

func (l *PublishingEventLogger) LogEvent(ctx context.Context, event Event) error {
	if err := validateEvent(&event); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return l.pub.Publish(ctx, l.channel(event.StudentID), payload)
}

// MultiEventLogger sends every event to each logger and joins their errors.
type MultiEventLogger []EventLogger

func (m MultiEventLogger) LogEvent(ctx context.Context, event Event) error {
	var errs []error
	for _, l := range m {
		if err := l.LogEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
