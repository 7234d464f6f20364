package session

import (
	"testing"

	"github.com/loykin/upkeep/internal/source"
)

func TestSealVacuousSuccess(t *testing.T) {
	s := New(source.Options{})
	s.Seal(false)
	if s.Status != StatusSucceeded {
		t.Fatalf("empty session should succeed, got %s", s.Status)
	}
	if !s.Sealed() {
		t.Fatalf("session not sealed")
	}
}

func TestSealFailurePropagates(t *testing.T) {
	s := New(source.Options{})
	s.Append(source.Result{SourceID: "a", Status: source.StatusSucceeded})
	s.Append(source.Result{SourceID: "b", Status: source.StatusFailed})
	s.Seal(false)
	if s.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", s.Status)
	}
}

func TestSealContinueOnFailure(t *testing.T) {
	s := New(source.Options{ContinueOnFailure: true})
	s.Append(source.Result{SourceID: "a", Status: source.StatusFailed})
	s.Seal(false)
	if s.Status != StatusSucceeded {
		t.Fatalf("continue-on-failure session should succeed, got %s", s.Status)
	}
}

func TestSealCancelledOutranksFailure(t *testing.T) {
	s := New(source.Options{})
	s.Append(source.Result{SourceID: "a", Status: source.StatusFailed})
	s.Seal(true)
	if s.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", s.Status)
	}
}

func TestSealSkipped(t *testing.T) {
	s := New(source.Options{})
	s.SealSkipped("low battery")
	if s.Status != StatusSkipped || s.Note != "low battery" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if len(s.Results) != 0 {
		t.Fatalf("skipped session must have no results")
	}
}

func TestAppendAfterSealIgnored(t *testing.T) {
	s := New(source.Options{})
	s.Seal(false)
	s.Append(source.Result{SourceID: "late"})
	if len(s.Results) != 0 {
		t.Fatalf("append after seal must be ignored")
	}
	// Re-sealing must not flip the status either.
	s.Seal(true)
	if s.Status != StatusSucceeded {
		t.Fatalf("re-seal changed status to %s", s.Status)
	}
}

func TestCounts(t *testing.T) {
	s := New(source.Options{})
	s.Append(source.Result{Status: source.StatusSucceeded})
	s.Append(source.Result{Status: source.StatusSucceeded})
	s.Append(source.Result{Status: source.StatusFailed})
	s.Append(source.Result{Status: source.StatusSkipped})
	s.Append(source.Result{Status: source.StatusCancelled})
	ok, failed, skipped, cancelled := s.Counts()
	if ok != 2 || failed != 1 || skipped != 1 || cancelled != 1 {
		t.Fatalf("unexpected counts: %d %d %d %d", ok, failed, skipped, cancelled)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New(source.Options{Enabled: []string{"a"}, Exclude: []string{"x"}})
	s.Append(source.Result{SourceID: "a", Status: source.StatusSucceeded})
	s.Seal(false)

	cp := s.Clone()
	cp.Results[0].SourceID = "mutated"
	cp.Options.Enabled[0] = "mutated"
	if s.Results[0].SourceID != "a" {
		t.Fatalf("clone shares results with original")
	}
	if s.Options.Enabled[0] != "a" {
		t.Fatalf("clone shares options with original")
	}
}
