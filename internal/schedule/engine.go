package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/upkeep/internal/metrics"
	"github.com/loykin/upkeep/internal/precheck"
	"github.com/loykin/upkeep/internal/session"
)

// State names the engine's position in its lifecycle.
type State string

const (
	StateDisabled  State = "disabled"
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
)

// ErrNotDue is returned by RunScheduled when the external trigger fired
// early, e.g. a weekly launchd interval carrying a biweekly policy.
var ErrNotDue = errors.New("scheduled run not due yet")

// RunFunc performs one non-interactive orchestration run with the
// policy's safety gates applied.
type RunFunc func(ctx context.Context, gates precheck.Gates) (*session.Session, error)

// Engine owns the persisted recurrence policy and keeps exactly one
// external trigger reconciled with it. Configure calls are serialized;
// the trigger-evaluation path never observes a half-written policy.
type Engine struct {
	mu       sync.Mutex
	path     string // policy persistence file (TOML)
	policy   Policy
	trigger  Trigger
	state    State
	nextDue  time.Time
	diskGate float64 // minimum free disk (GB) folded into scheduled-run gates
}

func NewEngine(path string, trigger Trigger) *Engine {
	if trigger == nil {
		trigger = NopTrigger{}
	}
	return &Engine{path: path, trigger: trigger, state: StateDisabled}
}

// SetDiskGate sets the minimum free disk space applied to scheduled
// runs alongside the policy's battery flags.
func (e *Engine) SetDiskGate(minGB float64) {
	e.mu.Lock()
	e.diskGate = minGB
	e.mu.Unlock()
}

// Load reads the persisted policy, if any, and derives the engine
// state. It does not touch the external trigger; call Reconcile for
// that.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := readPolicy(e.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	e.policy = p
	e.deriveLocked(time.Now())
	return nil
}

// Configure validates and persists a new policy, then reconciles the
// external trigger: enabled policies get exactly one registered job
// for the computed next-due instant, disabled ones get none.
// A malformed policy fails synchronously and leaves the prior policy
// in effect. Repeating an identical Configure yields the same next-due
// and still exactly one trigger.
func (e *Engine) Configure(p Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("configure schedule: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.LastRun.IsZero() {
		p.LastRun = e.policy.LastRun
	}
	if err := writePolicy(e.path, p); err != nil {
		return err
	}
	e.policy = p
	return e.reconcileLocked(time.Now())
}

// Reconcile re-aligns the external trigger with the current policy.
func (e *Engine) Reconcile() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconcileLocked(time.Now())
}

func (e *Engine) reconcileLocked(now time.Time) error {
	if !e.policy.Enabled {
		e.state = StateDisabled
		e.nextDue = time.Time{}
		metrics.SetNextDue(0)
		return e.trigger.Remove()
	}
	e.nextDue = e.policy.Next(now)
	e.state = StateScheduled
	metrics.SetNextDue(float64(e.nextDue.Unix()))
	return e.trigger.Install(e.policy, e.nextDue)
}

func (e *Engine) deriveLocked(now time.Time) {
	if !e.policy.Enabled {
		e.state = StateDisabled
		e.nextDue = time.Time{}
		return
	}
	e.state = StateScheduled
	e.nextDue = e.policy.Next(now)
}

// Policy returns a snapshot of the current policy.
func (e *Engine) Policy() Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// Current reports the engine state and next due instant.
func (e *Engine) Current() (State, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.nextDue
}

// NextDue reports the next computed due instant; zero when disabled.
func (e *Engine) NextDue() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextDue
}

// Gates builds the precondition gates a scheduled run must satisfy,
// combining the policy's battery flags with the configured disk floor.
func (e *Engine) Gates() precheck.Gates {
	e.mu.Lock()
	defer e.mu.Unlock()
	return precheck.Gates{
		SkipOnBattery:     e.policy.SkipOnBattery,
		MinBatteryPercent: e.policy.MinBatteryPercent,
		MinDiskSpaceGB:    e.diskGate,
	}
}

// RunScheduled handles one external trigger firing: Scheduled -> Running,
// invoke the orchestration callback with the safety gates, record the
// run, recompute next-due, and return to Scheduled. If the policy was
// disabled while the run was in flight, the run completes but no
// further trigger is scheduled.
func (e *Engine) RunScheduled(ctx context.Context, run RunFunc) (*session.Session, error) {
	e.mu.Lock()
	p := e.policy
	if !p.Enabled {
		e.mu.Unlock()
		return nil, errors.New("scheduling disabled")
	}
	now := time.Now()
	// A weekly host trigger may fire before a biweekly policy is due.
	if p.Frequency == Biweekly && !p.LastRun.IsZero() && now.Sub(p.LastRun) < 13*24*time.Hour {
		e.mu.Unlock()
		return nil, ErrNotDue
	}
	e.state = StateRunning
	gates := precheck.Gates{
		SkipOnBattery:     p.SkipOnBattery,
		MinBatteryPercent: p.MinBatteryPercent,
		MinDiskSpaceGB:    e.diskGate,
	}
	e.mu.Unlock()

	sess, runErr := run(ctx, gates)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy.LastRun = time.Now()
	if err := writePolicy(e.path, e.policy); err != nil {
		// history already has the run; losing last-run bookkeeping is non-fatal
		_ = err
	}
	if recErr := e.reconcileLocked(time.Now()); recErr != nil && runErr == nil {
		runErr = recErr
	}
	return sess, runErr
}

// Policy persistence. The file is a small standalone TOML document so
// the scheduled entry point can read it without the full config.

func readPolicy(path string) (Policy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return Policy{}, os.ErrNotExist
		}
		if errors.Is(err, os.ErrNotExist) {
			return Policy{}, os.ErrNotExist
		}
		return Policy{}, err
	}
	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return Policy{}, err
	}
	if raw := v.GetString("last_run"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			p.LastRun = t
		}
	}
	return p, nil
}

func writePolicy(path string, p Policy) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.Set("enabled", p.Enabled)
	v.Set("frequency", string(p.Frequency))
	v.Set("hour", p.Hour)
	v.Set("minute", p.Minute)
	v.Set("weekday", p.Weekday)
	v.Set("day_of_month", p.DayOfMonth)
	v.Set("skip_on_battery", p.SkipOnBattery)
	v.Set("min_battery_percent", p.MinBatteryPercent)
	if !p.LastRun.IsZero() {
		v.Set("last_run", p.LastRun.Format(time.RFC3339))
	}
	return v.WriteConfigAs(path)
}
