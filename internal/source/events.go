package source

import "time"

// Status is the terminal outcome of one source within a session.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// EventKind tags a progress event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventLine      EventKind = "line"
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventSkipped   EventKind = "skipped"
)

// Event is one element of a source's ordered progress stream. Events of
// a single source are strictly ordered; streams of concurrently running
// sources may interleave with each other but never internally.
type Event struct {
	SourceID string    `json:"source_id"`
	Kind     EventKind `json:"kind"`
	Line     string    `json:"line,omitempty"`
	Items    int       `json:"items,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Listener receives progress events. A nil Listener is allowed.
type Listener func(Event)

func (l Listener) emit(e Event) {
	if l != nil {
		e.At = time.Now()
		l(e)
	}
}

// Result is the immutable terminal outcome for one source run.
// Detail carries an error summary or a skip reason.
type Result struct {
	SourceID  string    `json:"source_id"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Items     int       `json:"items"`
	Detail    string    `json:"detail,omitempty"`
}

// Duration reports how long the source ran.
func (r Result) Duration() time.Duration { return r.StoppedAt.Sub(r.StartedAt) }
