package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/loykin/upkeep/internal/history"
	"github.com/loykin/upkeep/internal/metrics"
	"github.com/loykin/upkeep/internal/notify"
	"github.com/loykin/upkeep/internal/precheck"
	"github.com/loykin/upkeep/internal/session"
	"github.com/loykin/upkeep/internal/source"
)

// ErrBusy is returned by Start when a run is already in flight.
var ErrBusy = errors.New("run already in progress")

// Config carries the orchestrator-level knobs.
type Config struct {
	Concurrency   int            // worker pool size, default 1
	SourceTimeout time.Duration  // per-source apply ceiling, 0 means none
	Gates         precheck.Gates // default precondition gates
}

// flight tracks one dispatched source so controls can reach it.
type flight struct {
	id     string
	cancel context.CancelFunc
	done   bool
}

// Orchestrator drives one session at a time over the registered sources:
// precondition gate, bounded-concurrency dispatch, result collection in
// invocation order, then history persistence and notification.
type Orchestrator struct {
	cfg      Config
	sources  []source.Source
	reader   precheck.Reader
	store    history.Store
	sinks    []history.Sink
	notifier notify.Notifier
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	cancelled bool
	cancelRun context.CancelFunc
	flights   []*flight
}

func New(cfg Config, sources []source.Source, reader precheck.Reader) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Orchestrator{cfg: cfg, sources: sources, reader: reader, logger: slog.Default()}
}

// SetHistory attaches the run log. Without one, sessions are not persisted.
func (o *Orchestrator) SetHistory(store history.Store) { o.store = store }

// AddSink attaches an analytics sink receiving session events.
func (o *Orchestrator) AddSink(s history.Sink) { o.sinks = append(o.sinks, s) }

// SetNotifier attaches the user-facing notifier.
func (o *Orchestrator) SetNotifier(n notify.Notifier) { o.notifier = n }

// SetLogger overrides the default logger.
func (o *Orchestrator) SetLogger(l *slog.Logger) {
	if l != nil {
		o.logger = l
	}
}

// Running reports whether a session is in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// CancelAll requests best-effort cancellation of the whole run: in-flight
// sources get their contexts cancelled and nothing new is dispatched.
func (o *Orchestrator) CancelAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	o.cancelled = true
	if o.cancelRun != nil {
		o.cancelRun()
	}
}

// SkipCurrent cancels the earliest still-running source and leaves the
// rest of the run untouched.
func (o *Orchestrator) SkipCurrent() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, f := range o.flights {
		if !f.done {
			f.cancel()
			return
		}
	}
}

// Skip cancels the named source if it is currently running.
func (o *Orchestrator) Skip(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, f := range o.flights {
		if f.id == id && !f.done {
			f.cancel()
			return
		}
	}
}

// Start runs one session with the configured gates.
func (o *Orchestrator) Start(ctx context.Context, opts source.Options, listener source.Listener) (*session.Session, error) {
	return o.StartWithGates(ctx, opts, o.cfg.Gates, listener)
}

// StartWithGates runs one session with explicit precondition gates; the
// schedule engine uses this to apply the policy's own battery flags.
// At most one session runs at a time. The returned session is always
// sealed; orchestration errors beyond ErrBusy surface inside it.
func (o *Orchestrator) StartWithGates(ctx context.Context, opts source.Options, gates precheck.Gates, listener source.Listener) (*session.Session, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	runCtx, cancelRun := context.WithCancel(ctx)
	o.running = true
	o.cancelled = false
	o.cancelRun = cancelRun
	o.flights = nil
	o.mu.Unlock()

	defer func() {
		cancelRun()
		o.mu.Lock()
		o.running = false
		o.cancelRun = nil
		o.flights = nil
		o.mu.Unlock()
	}()

	sess := session.New(opts)

	if blocked, reason := o.gate(ctx, gates); blocked {
		o.logger.Info("run blocked by preconditions", "reason", reason)
		sess.SealSkipped(reason)
		o.finish(sess)
		return sess, nil
	}

	emit := serialize(listener)
	o.dispatch(runCtx, opts, emit, sess)

	o.mu.Lock()
	cancelled := o.cancelled
	o.mu.Unlock()
	sess.Seal(cancelled)
	o.finish(sess)
	return sess, nil
}

// CheckResult is one source's answer to a read-only check pass.
type CheckResult struct {
	Capability source.Capability `json:"capability"`
	Items      []source.Item     `json:"items,omitempty"`
	Err        string            `json:"error,omitempty"`
}

// Check lists pending updates for the enabled sources without applying
// anything. Sources run sequentially; an unavailable or failing source
// is reported in place, never aborting the pass.
func (o *Orchestrator) Check(ctx context.Context, enabled []string) []CheckResult {
	byID := make(map[string]source.Source, len(o.sources))
	for _, s := range o.sources {
		byID[s.Probe().ID] = s
	}
	out := make([]CheckResult, 0, len(enabled))
	for _, id := range enabled {
		src, ok := byID[id]
		if !ok {
			out = append(out, CheckResult{
				Capability: source.Capability{ID: id},
				Err:        "unknown source",
			})
			continue
		}
		cap := src.Probe()
		cr := CheckResult{Capability: cap}
		if !cap.Available {
			cr.Err = "unavailable"
			out = append(out, cr)
			continue
		}
		items, err := src.Check(ctx)
		if err != nil {
			cr.Err = err.Error()
		} else {
			cr.Items = items
			metrics.SetPendingUpdates(cap.ID, len(items))
		}
		out = append(out, cr)
	}
	return out
}

// gate evaluates the preconditions. An unreadable system state is logged
// and treated as ready rather than silently wedging every run.
func (o *Orchestrator) gate(ctx context.Context, gates precheck.Gates) (blocked bool, reason string) {
	if o.reader == nil {
		return false, ""
	}
	st, err := o.reader.Read(ctx)
	if err != nil {
		o.logger.Warn("precheck state unavailable, proceeding", "error", err)
		return false, ""
	}
	dec := precheck.Evaluate(st, gates)
	if dec.Ready {
		return false, ""
	}
	return true, dec.Reason
}

// dispatch runs the enabled sources under the worker pool and appends
// results to the session in invocation order. Exclusive sources take the
// whole pool so nothing else overlaps them.
func (o *Orchestrator) dispatch(ctx context.Context, opts source.Options, emit source.Listener, sess *session.Session) {
	byID := make(map[string]source.Source, len(o.sources))
	for _, s := range o.sources {
		byID[s.Probe().ID] = s
	}

	weight := int64(o.cfg.Concurrency)
	sem := semaphore.NewWeighted(weight)
	slots := make([]*source.Result, len(opts.Enabled))
	var wg sync.WaitGroup

	for i, id := range opts.Enabled {
		if ctx.Err() != nil {
			break
		}
		src, ok := byID[id]
		if !ok {
			slots[i] = skippedResult(id, "unknown source", emit)
			continue
		}
		cap := src.Probe()
		w := int64(1)
		if cap.Exclusive {
			w = weight
		}
		if err := sem.Acquire(ctx, w); err != nil {
			break
		}

		fctx, fcancel := context.WithCancel(ctx)
		f := &flight{id: id, cancel: fcancel}
		o.mu.Lock()
		o.flights = append(o.flights, f)
		o.mu.Unlock()

		wg.Add(1)
		go func(i int, src source.Source, w int64, f *flight, fctx context.Context, fcancel context.CancelFunc) {
			defer wg.Done()
			defer sem.Release(w)
			defer fcancel()

			actx := fctx
			if o.cfg.SourceTimeout > 0 {
				var acancel context.CancelFunc
				actx, acancel = context.WithTimeout(fctx, o.cfg.SourceTimeout)
				defer acancel()
			}
			res := src.Apply(actx, opts, emit)

			o.mu.Lock()
			f.done = true
			o.mu.Unlock()

			slots[i] = &res
			metrics.IncSourceRun(res.SourceID, string(res.Status))
			metrics.ObserveSourceDuration(res.SourceID, res.Duration().Seconds())
		}(i, src, w, f, fctx, fcancel)
	}
	wg.Wait()

	for _, r := range slots {
		if r != nil {
			sess.Append(*r)
		}
	}
}

func skippedResult(id, reason string, emit source.Listener) *source.Result {
	now := time.Now()
	if emit != nil {
		emit(source.Event{SourceID: id, Kind: source.EventSkipped, Detail: reason, At: now})
	}
	return &source.Result{
		SourceID:  id,
		Status:    source.StatusSkipped,
		StartedAt: now,
		StoppedAt: now,
		Detail:    reason,
	}
}

// serialize wraps the listener so concurrently running sources never
// invoke it in parallel.
func serialize(l source.Listener) source.Listener {
	if l == nil {
		return nil
	}
	var mu sync.Mutex
	return func(e source.Event) {
		mu.Lock()
		defer mu.Unlock()
		l(e)
	}
}

// finish persists, exports, notifies and counts the sealed session.
// Persistence failures are contained: they are logged, never returned.
func (o *Orchestrator) finish(sess *session.Session) {
	metrics.IncSession(string(sess.Status))

	// The caller's context may already be cancelled; bookkeeping gets
	// its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if o.store != nil {
		if err := o.store.Append(ctx, sess.Clone()); err != nil {
			o.logger.Error("history append failed", "error", fmt.Errorf("%w: %v", history.ErrPersistence, err))
		}
	}
	if len(o.sinks) > 0 {
		ev := history.Event{
			Type:       history.EventCompleted,
			OccurredAt: time.Now(),
			Session:    sess.Clone(),
		}
		if sess.Status == session.StatusSkipped {
			ev.Type = history.EventSkipped
		}
		for _, s := range o.sinks {
			if err := s.Send(ctx, ev); err != nil {
				o.logger.Warn("history sink send failed", "error", err)
			}
		}
	}
	o.notifyResult(ctx, sess)
}

func (o *Orchestrator) notifyResult(ctx context.Context, sess *session.Session) {
	if o.notifier == nil {
		return
	}
	ok, failed, skipped, cancelled := sess.Counts()
	body := fmt.Sprintf("%d succeeded, %d failed, %d skipped, %d cancelled", ok, failed, skipped, cancelled)
	title := "Updates complete"
	sev := notify.SeveritySuccess
	switch sess.Status {
	case session.StatusFailed:
		title = "Updates failed"
		sev = notify.SeverityError
	case session.StatusCancelled:
		title = "Updates cancelled"
		sev = notify.SeverityWarning
	case session.StatusSkipped:
		title = "Updates skipped"
		sev = notify.SeverityWarning
		body = sess.Note
	}
	if err := o.notifier.Notify(ctx, title, body, sev); err != nil {
		o.logger.Warn("notification failed", "error", err)
	}
}
