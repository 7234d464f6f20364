package session

import (
	"time"

	"github.com/loykin/upkeep/internal/source"
)

// Status is the derived overall outcome of one orchestration run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Session records one orchestration run: the options used, the
// per-source results in invocation order, and the derived status.
// A Session is immutable once sealed; the history store receives a
// deep copy so later readers can never observe mutation.
type Session struct {
	StartedAt time.Time      `json:"started_at"`
	StoppedAt time.Time      `json:"stopped_at"`
	Options   source.Options `json:"options"`
	Results   []source.Result `json:"results"`
	Status    Status         `json:"status"`
	Note      string         `json:"note,omitempty"`

	sealed bool
}

// New starts a session for the given options.
func New(opts source.Options) *Session {
	return &Session{StartedAt: time.Now(), Options: opts}
}

// Append records one more source result. Results keep invocation order
// regardless of completion order; no-op after sealing.
func (s *Session) Append(r source.Result) {
	if s.sealed {
		return
	}
	s.Results = append(s.Results, r)
}

// Seal freezes the session and derives the overall status. cancelled
// marks an explicit cancel-all, which outranks per-source failures.
// An empty result list without failures is vacuous success.
func (s *Session) Seal(cancelled bool) {
	if s.sealed {
		return
	}
	s.StoppedAt = time.Now()
	switch {
	case cancelled:
		s.Status = StatusCancelled
	case s.anyFailed() && !s.Options.ContinueOnFailure:
		s.Status = StatusFailed
	default:
		s.Status = StatusSucceeded
	}
	s.sealed = true
}

// SealSkipped freezes the session as blocked by preconditions, before
// any source was touched.
func (s *Session) SealSkipped(reason string) {
	if s.sealed {
		return
	}
	s.StoppedAt = time.Now()
	s.Status = StatusSkipped
	s.Note = reason
	s.sealed = true
}

// Sealed reports whether the session has been frozen.
func (s *Session) Sealed() bool { return s.sealed }

// Duration reports total wall time of the run.
func (s *Session) Duration() time.Duration { return s.StoppedAt.Sub(s.StartedAt) }

// Counts summarizes results by terminal status.
func (s *Session) Counts() (succeeded, failed, skipped, cancelled int) {
	for _, r := range s.Results {
		switch r.Status {
		case source.StatusSucceeded:
			succeeded++
		case source.StatusFailed:
			failed++
		case source.StatusSkipped:
			skipped++
		case source.StatusCancelled:
			cancelled++
		}
	}
	return
}

// Clone returns a deep copy. The history store keeps clones so a
// sealed session handed out to callers shares nothing with the log.
func (s *Session) Clone() Session {
	cp := *s
	cp.Results = make([]source.Result, len(s.Results))
	copy(cp.Results, s.Results)
	cp.Options.Enabled = append([]string(nil), s.Options.Enabled...)
	cp.Options.Exclude = append([]string(nil), s.Options.Exclude...)
	return cp
}

func (s *Session) anyFailed() bool {
	for _, r := range s.Results {
		if r.Status == source.StatusFailed {
			return true
		}
	}
	return false
}
