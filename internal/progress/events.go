package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventKind names a progress mutation.
type EventKind string

const (
	EventTopicVisited    EventKind = "topic_visited"
	EventModuleCompleted EventKind = "module_completed"
	EventModuleReset     EventKind = "module_reset"
	EventLastTopic       EventKind = "last_topic"
)

// Event is emitted after every successful progress mutation.
// TopicIndex is -1 for module-level events.
type Event struct {
	ID         string    `json:"id"`
	Track      string    `json:"track"`
	ModuleID   string    `json:"moduleId"`
	Kind       EventKind `json:"kind"`
	TopicIndex int       `json:"topicIndex"`
	Completed  bool      `json:"completed,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Listener receives change events synchronously, in mutation order.
type Listener func(Event)

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(event Event) error
}

// LogTo adapts an EventLogger into a Listener. Logging failures are reported
// but never fail the mutation that produced the event.
func LogTo(logger EventLogger) Listener {
	return func(ev Event) {
		if err := logger.LogEvent(ev); err != nil {
			slog.Warn("failed to log progress event", "kind", ev.Kind, "module_id", ev.ModuleID, "error", err)
		}
	}
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(Event) error {
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

func (l *MemoryEventLogger) LogEvent(event Event) error {
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
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

// PostgresEventLogger inserts events into the progress_events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if event.ModuleID == "" {
		return fmt.Errorf("module_id is required")
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	_, err := l.pool.Exec(ctx,
		`INSERT INTO progress_events (id, track, module_id, kind, topic_index, completed, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`,
		event.ID,
		event.Track,
		event.ModuleID,
		string(event.Kind),
		nullIfNegative(event.TopicIndex),
		event.Completed,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("progress event logged",
		"kind", event.Kind,
		"track", event.Track,
		"module_id", event.ModuleID,
	)
	return nil
}

func nullIfNegative(v int) any {
	if v < 0 {
		return nil
	}
	return v
}
