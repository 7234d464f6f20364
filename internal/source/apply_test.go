package source

import (
	"context"
	"errors"
	"testing"
)

func collectEvents(t *testing.T) (Listener, *[]Event) {
	t.Helper()
	events := &[]Event{}
	return func(e Event) { *events = append(*events, e) }, events
}

func TestRunApplyUnavailable(t *testing.T) {
	emit, events := collectEvents(t)
	cap := Capability{ID: "x", Available: false}
	called := false
	res := runApply(context.Background(), cap, Options{}, emit, func(ctx context.Context, line func(string)) (int, error) {
		called = true
		return 0, nil
	})
	if called {
		t.Fatalf("body must not run for an unavailable source")
	}
	if res.Status != StatusSkipped || res.Detail != "unavailable" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(*events) != 1 || (*events)[0].Kind != EventSkipped {
		t.Fatalf("unexpected events: %v", *events)
	}
}

func TestRunApplySucceeded(t *testing.T) {
	emit, events := collectEvents(t)
	cap := Capability{ID: "x", Available: true}
	res := runApply(context.Background(), cap, Options{}, emit, func(ctx context.Context, line func(string)) (int, error) {
		line("one")
		line("") // blank lines are dropped
		return 2, nil
	})
	if res.Status != StatusSucceeded || res.Items != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	kinds := make([]EventKind, 0, len(*events))
	for _, e := range *events {
		kinds = append(kinds, e.Kind)
	}
	want := []EventKind{EventStarted, EventLine, EventSucceeded}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected event kinds: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: want %s, got %s", i, want[i], kinds[i])
		}
	}
	if res.StoppedAt.Before(res.StartedAt) {
		t.Fatalf("stopped before started: %+v", res)
	}
}

func TestRunApplyCancelled(t *testing.T) {
	emit, _ := collectEvents(t)
	cap := Capability{ID: "x", Available: true}
	res := runApply(context.Background(), cap, Options{}, emit, func(ctx context.Context, line func(string)) (int, error) {
		return 0, context.Canceled
	})
	if res.Status != StatusCancelled || res.Detail != "cancelled" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunApplyFailed(t *testing.T) {
	emit, events := collectEvents(t)
	cap := Capability{ID: "x", Available: true}
	res := runApply(context.Background(), cap, Options{}, emit, func(ctx context.Context, line func(string)) (int, error) {
		return 1, errors.New("boom")
	})
	if res.Status != StatusFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
	last := (*events)[len(*events)-1]
	if last.Kind != EventFailed || last.Detail == "" {
		t.Fatalf("unexpected final event: %+v", last)
	}
}

func TestRunApplyNilListener(t *testing.T) {
	cap := Capability{ID: "x", Available: true}
	res := runApply(context.Background(), cap, Options{}, nil, func(ctx context.Context, line func(string)) (int, error) {
		line("must not panic")
		return 1, nil
	})
	if res.Status != StatusSucceeded {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPartitionSurfacesExcluded(t *testing.T) {
	items := []Item{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	var lines []string
	selected := partition(items, Options{Exclude: []string{"b"}}, func(s string) { lines = append(lines, s) })
	if len(selected) != 2 || selected[0].Name != "a" || selected[1].Name != "c" {
		t.Fatalf("unexpected selection: %v", selected)
	}
	if len(lines) != 1 || lines[0] != "skipping b (excluded)" {
		t.Fatalf("excluded item not surfaced: %v", lines)
	}
}

func TestReportDryRun(t *testing.T) {
	var lines []string
	n := reportDryRun([]Item{
		{Name: "wget", CurrentVersion: "1.0", TargetVersion: "1.1"},
		{Name: "label-only"},
	}, func(s string) { lines = append(lines, s) })
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	if lines[0] != "would upgrade wget 1.0 -> 1.1" {
		t.Fatalf("unexpected line: %q", lines[0])
	}
	if lines[1] != "would upgrade label-only" {
		t.Fatalf("unexpected line: %q", lines[1])
	}
}

func TestDefaultsOrder(t *testing.T) {
	ids := IDs(Defaults(&Runner{}))
	want := []string{"macos", "homebrew", "appstore", "pip", "npm"}
	if len(ids) != len(want) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("position %d: want %s, got %s", i, want[i], ids[i])
		}
	}
}
