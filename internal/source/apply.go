package source

import (
	"context"
	"errors"
	"time"
)

// runApply drives the shared apply lifecycle for all adapters: emit the
// start event, run the tool-specific body, and classify its outcome
// into exactly one terminal Result. The body returns the number of
// items it affected (or would affect under dry-run).
func runApply(ctx context.Context, cap Capability, opts Options, emit Listener, body func(ctx context.Context, line func(string)) (int, error)) Result {
	res := Result{SourceID: cap.ID, StartedAt: time.Now()}
	if !cap.Available {
		res.Status = StatusSkipped
		res.Detail = "unavailable"
		res.StoppedAt = res.StartedAt
		emit.emit(Event{SourceID: cap.ID, Kind: EventSkipped, Detail: res.Detail})
		return res
	}

	emit.emit(Event{SourceID: cap.ID, Kind: EventStarted})
	line := func(s string) {
		if s != "" {
			emit.emit(Event{SourceID: cap.ID, Kind: EventLine, Line: s})
		}
	}

	n, err := body(ctx, line)
	res.StoppedAt = time.Now()
	res.Items = n

	switch {
	case err == nil:
		res.Status = StatusSucceeded
		emit.emit(Event{SourceID: cap.ID, Kind: EventSucceeded, Items: n})
	case errors.Is(err, context.Canceled):
		res.Status = StatusCancelled
		res.Detail = "cancelled"
		emit.emit(Event{SourceID: cap.ID, Kind: EventSkipped, Detail: res.Detail})
	default:
		res.Status = StatusFailed
		res.Detail = (&ApplyError{SourceID: cap.ID, Err: err}).Error()
		emit.emit(Event{SourceID: cap.ID, Kind: EventFailed, Detail: res.Detail})
	}
	return res
}

// partition splits pending items into the ones to install and the ones
// held back by the exclusion list. Excluded items are still surfaced.
func partition(items []Item, opts Options, line func(string)) []Item {
	selected := make([]Item, 0, len(items))
	for _, it := range items {
		if opts.Excluded(it.Name) {
			line("skipping " + it.Name + " (excluded)")
			continue
		}
		selected = append(selected, it)
	}
	return selected
}

// reportDryRun lists what would be installed without mutating anything.
func reportDryRun(selected []Item, line func(string)) int {
	for _, it := range selected {
		msg := "would upgrade " + it.Name
		if it.CurrentVersion != "" || it.TargetVersion != "" {
			msg += " " + it.CurrentVersion + " -> " + it.TargetVersion
		}
		line(msg)
	}
	return len(selected)
}
