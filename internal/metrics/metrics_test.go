package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterAndHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Re-registering is a no-op.
	if err := Register(reg); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	IncSession("succeeded")
	IncSourceRun("homebrew", "succeeded")
	ObserveSourceDuration("homebrew", 12.5)
	SetPendingUpdates("homebrew", 4)
	SetNextDue(1756500000)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"upkeep_run_sessions_total",
		"upkeep_source_runs_total",
		"upkeep_source_duration_seconds",
		"upkeep_source_pending_updates",
		"upkeep_schedule_next_due_timestamp_seconds",
	} {
		if !found[name] {
			t.Fatalf("metric %s not gathered; have %v", name, found)
		}
	}
}

func TestHandlerServes(t *testing.T) {
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics endpoint: %d", w.Code)
	}
}
