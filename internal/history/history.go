package history

import (
	"context"
	"errors"
	"time"

	"github.com/loykin/upkeep/internal/session"
)

// ErrPersistence wraps storage failures. A failed append never
// invalidates the in-memory session already returned to the caller.
var ErrPersistence = errors.New("history persistence error")

// Store is the append-only run log. Append writes one sealed session;
// List returns past sessions reverse-chronologically; Clear empties the
// log (caller confirms at the boundary). Implementations must be safe
// for one writer and many concurrent readers.
type Store interface {
	Append(ctx context.Context, s session.Session) error
	List(ctx context.Context, limit int, since time.Time) ([]session.Session, error)
	Clear(ctx context.Context) error
	Close() error
}

// EventType defines the kind of session event exported to sinks.
type EventType string

const (
	EventCompleted EventType = "completed"
	EventSkipped   EventType = "skipped"
)

// Event represents a session outcome to be exported to external
// analytics systems.
type Event struct {
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Session    session.Session `json:"session"`
}

// Sink is a destination for session events. Implementations must be
// safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
