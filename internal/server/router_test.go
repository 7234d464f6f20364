package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loykin/upkeep/internal/history"
	"github.com/loykin/upkeep/internal/orchestrator"
	"github.com/loykin/upkeep/internal/precheck"
	"github.com/loykin/upkeep/internal/schedule"
	"github.com/loykin/upkeep/internal/session"
	"github.com/loykin/upkeep/internal/source"
)

type fakeSource struct {
	cap source.Capability
}

func (f fakeSource) Probe() source.Capability { return f.cap }

func (f fakeSource) Check(ctx context.Context) ([]source.Item, error) {
	return []source.Item{{Name: "pkg", CurrentVersion: "1.0", TargetVersion: "1.1"}}, nil
}

func (f fakeSource) Apply(ctx context.Context, opts source.Options, emit source.Listener) source.Result {
	return source.Result{SourceID: f.cap.ID, Status: source.StatusSucceeded}
}

type fakeReader struct{}

func (fakeReader) Read(ctx context.Context) (precheck.State, error) {
	return precheck.State{BatteryPercent: 100, FreeDiskBytes: 100 << 30}, nil
}

type memStore struct {
	mu       sync.Mutex
	sessions []session.Session
}

func (m *memStore) Append(ctx context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append([]session.Session{s}, m.sessions...)
	return nil
}

func (m *memStore) List(ctx context.Context, limit int, since time.Time) ([]session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]session.Session, len(m.sessions))
	copy(out, m.sessions)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = nil
	return nil
}

func (m *memStore) Close() error { return nil }

func newTestRouter(t *testing.T) (*Router, *memStore, *schedule.Engine) {
	t.Helper()
	src := fakeSource{cap: source.Capability{ID: "fake", Name: "Fake", Available: true}}
	orch := orchestrator.New(orchestrator.Config{}, []source.Source{src}, fakeReader{})
	store := &memStore{}
	orch.SetHistory(store)
	eng := schedule.NewEngine(t.TempDir()+"/schedule.toml", schedule.NopTrigger{})
	defaults := source.Options{Enabled: []string{"fake"}}
	return NewRouter(orch, store, eng, defaults, ""), store, eng
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(t, r.Handler(), http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if running, ok := resp["running"].(bool); !ok || running {
		t.Fatalf("unexpected running flag: %v", resp)
	}
}

func TestCheckEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(t, r.Handler(), http.MethodGet, "/check", "")
	if w.Code != http.StatusOK {
		t.Fatalf("check: %d %s", w.Code, w.Body.String())
	}
	var out []orchestrator.CheckResult
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(out) != 1 || out[0].Capability.ID != "fake" || len(out[0].Items) != 1 {
		t.Fatalf("unexpected check payload: %+v", out)
	}
}

func TestRunEndpointAndHistory(t *testing.T) {
	r, store, _ := newTestRouter(t)
	h := r.Handler()

	w := doJSON(t, h, http.MethodPost, "/run", `{"dry_run": true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("run: %d %s", w.Code, w.Body.String())
	}

	// The run is asynchronous; wait for it to land in history.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sessions, _ := store.List(context.Background(), 0, time.Time{})
		if len(sessions) == 1 {
			if sessions[0].Status != session.StatusSucceeded {
				t.Fatalf("unexpected session: %+v", sessions[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = doJSON(t, h, http.MethodGet, "/history?limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d %s", w.Code, w.Body.String())
	}
	var sessions []session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	w = doJSON(t, h, http.MethodDelete, "/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear: %d %s", w.Code, w.Body.String())
	}
	got, _ := store.List(context.Background(), 0, time.Time{})
	if len(got) != 0 {
		t.Fatalf("history not cleared")
	}
}

func TestRunEndpointRejectsBadJSON(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(t, r.Handler(), http.MethodPost, "/run", `{"dry_run": `)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCancelWithoutRun(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(t, r.Handler(), http.MethodPost, "/cancel", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	w = doJSON(t, r.Handler(), http.MethodPost, "/skip", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestHistoryBadParams(t *testing.T) {
	r, _, _ := newTestRouter(t)
	h := r.Handler()
	if w := doJSON(t, h, http.MethodGet, "/history?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodGet, "/history?since=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad since, got %d", w.Code)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	r, _, _ := newTestRouter(t)
	h := r.Handler()

	w := doJSON(t, h, http.MethodPut, "/schedule",
		`{"enabled": true, "frequency": "daily", "hour": 9, "minute": 0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put schedule: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/schedule", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get schedule: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Policy schedule.Policy `json:"policy"`
		State  string          `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Policy.Enabled || resp.Policy.Frequency != schedule.Daily || resp.State != string(schedule.StateScheduled) {
		t.Fatalf("unexpected schedule payload: %+v", resp)
	}

	w = doJSON(t, h, http.MethodPut, "/schedule", `{"enabled": true, "frequency": "hourly"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid policy, got %d", w.Code)
	}
}

func TestBasePath(t *testing.T) {
	src := fakeSource{cap: source.Capability{ID: "fake", Available: true}}
	orch := orchestrator.New(orchestrator.Config{}, []source.Source{src}, fakeReader{})
	r := NewRouter(orch, nil, nil, source.Options{Enabled: []string{"fake"}}, "api/")
	h := r.Handler()
	if w := doJSON(t, h, http.MethodGet, "/api/status", ""); w.Code != http.StatusOK {
		t.Fatalf("base path not applied: %d", w.Code)
	}
	// Disabled subsystems answer 503.
	if w := doJSON(t, h, http.MethodGet, "/api/history", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a store, got %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodGet, "/api/schedule", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without an engine, got %d", w.Code)
	}
}

var _ history.Store = (*memStore)(nil)
