package upkeep

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/upkeep/internal/config"
	"github.com/loykin/upkeep/internal/history"
	"github.com/loykin/upkeep/internal/logger"
	"github.com/loykin/upkeep/internal/metrics"
	"github.com/loykin/upkeep/internal/notify"
	"github.com/loykin/upkeep/internal/orchestrator"
	"github.com/loykin/upkeep/internal/precheck"
	"github.com/loykin/upkeep/internal/schedule"
	iapi "github.com/loykin/upkeep/internal/server"
	"github.com/loykin/upkeep/internal/session"
	"github.com/loykin/upkeep/internal/source"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Options = source.Options

type Event = source.Event

type Listener = source.Listener

type Result = source.Result

type Capability = source.Capability

type Item = source.Item

type Session = session.Session

type Gates = precheck.Gates

type Policy = schedule.Policy

type CheckResult = orchestrator.CheckResult

type Config = cfg.FileConfig

// Session status values, re-exported for callers switching on outcome.
const (
	SessionSucceeded = session.StatusSucceeded
	SessionFailed    = session.StatusFailed
	SessionSkipped   = session.StatusSkipped
	SessionCancelled = session.StatusCancelled
)

var ErrBusy = orchestrator.ErrBusy
var ErrNotDue = schedule.ErrNotDue

// App is a thin facade tying the configuration, the source adapters,
// the orchestrator, the history store and the schedule engine together.
// It provides a stable public API for embedding.
type App struct {
	cfg    cfg.FileConfig
	orch   *orchestrator.Orchestrator
	store  history.Store
	engine *schedule.Engine
}

// LoadConfig reads a TOML config file, applying defaults for anything
// left unset. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// New assembles an App from a configuration. The caller owns Close.
func New(c Config) (*App, error) {
	run := &source.Runner{Timeout: c.Sources.SourceTimeout, Log: c.Log}
	sources := source.Defaults(run)

	orch := orchestrator.New(orchestrator.Config{
		Concurrency:   c.Sources.Concurrency,
		SourceTimeout: c.Sources.SourceTimeout,
		Gates:         c.Precheck,
	}, sources, precheck.SystemReader{})

	app := &App{cfg: c, orch: orch}

	if c.History.DSN != "" {
		store, err := history.NewStoreFromDSN(c.History.DSN)
		if err != nil {
			return nil, err
		}
		app.store = store
		orch.SetHistory(store)
	}
	if c.History.SinkDSN != "" {
		sink, err := history.NewSinkFromDSN(c.History.SinkDSN)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		orch.AddSink(sink)
	}
	if c.Notify.Enabled {
		orch.SetNotifier(notify.OSAScript{})
	}
	return app, nil
}

// SetupLogging installs the process-wide structured logger.
func SetupLogging(debug bool) { logger.Setup(debug) }

// Defaults returns the run options derived from the configuration.
func (a *App) Defaults() Options {
	return Options{
		Enabled:           a.cfg.Sources.Enabled,
		Exclude:           a.cfg.Sources.Exclude,
		ContinueOnFailure: a.cfg.Sources.ContinueOnFailure,
	}
}

// Run performs one orchestration session with the configured gates.
func (a *App) Run(ctx context.Context, opts Options, l Listener) (*Session, error) {
	return a.orch.Start(ctx, opts, l)
}

// RunWithGates performs one session with explicit precondition gates.
func (a *App) RunWithGates(ctx context.Context, opts Options, g Gates, l Listener) (*Session, error) {
	return a.orch.StartWithGates(ctx, opts, g, l)
}

// Check lists pending updates without applying anything.
func (a *App) Check(ctx context.Context, enabled []string) []CheckResult {
	return a.orch.Check(ctx, enabled)
}

// CancelAll, SkipCurrent and Skip forward run controls to the
// orchestrator; all are no-ops when nothing is running.
func (a *App) CancelAll()     { a.orch.CancelAll() }
func (a *App) SkipCurrent()   { a.orch.SkipCurrent() }
func (a *App) Skip(id string) { a.orch.Skip(id) }
func (a *App) Running() bool  { return a.orch.Running() }

// History returns the run log, or nil when persistence is disabled.
func (a *App) History() history.Store { return a.store }

// AttachSchedule wires a schedule engine so scheduled runs flow through
// this App with the policy's gates.
func (a *App) AttachSchedule(e *schedule.Engine) {
	e.SetDiskGate(a.cfg.Precheck.MinDiskSpaceGB)
	a.engine = e
}

// Schedule returns the attached engine, or nil.
func (a *App) Schedule() *schedule.Engine { return a.engine }

// RunScheduled handles one trigger firing through the attached engine.
func (a *App) RunScheduled(ctx context.Context) (*Session, error) {
	if a.engine == nil {
		return nil, schedule.ErrNotDue
	}
	return a.engine.RunScheduled(ctx, func(ctx context.Context, g precheck.Gates) (*session.Session, error) {
		return a.orch.StartWithGates(ctx, a.Defaults(), g, nil)
	})
}

// NewHTTPServer starts an HTTP server exposing the internal API.
func (a *App) NewHTTPServer(addr, basePath string) *http.Server {
	r := iapi.NewRouter(a.orch, a.store, a.engine, a.Defaults(), basePath)
	return iapi.NewServer(addr, r)
}

// Close releases owned resources.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
