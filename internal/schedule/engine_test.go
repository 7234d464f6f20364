package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/upkeep/internal/precheck"
	"github.com/loykin/upkeep/internal/session"
	"github.com/loykin/upkeep/internal/source"
)

// countingTrigger records Install/Remove calls in place of launchd.
type countingTrigger struct {
	installs  int
	removes   int
	installed bool
	lastDue   time.Time
}

func (c *countingTrigger) Install(_ Policy, due time.Time) error {
	c.installs++
	c.installed = true
	c.lastDue = due
	return nil
}

func (c *countingTrigger) Remove() error {
	c.removes++
	c.installed = false
	return nil
}

func (c *countingTrigger) Installed() (bool, error) { return c.installed, nil }

func testPolicy() Policy {
	return Policy{Enabled: true, Frequency: Daily, Hour: 9, SkipOnBattery: true, MinBatteryPercent: 50}
}

func newTestEngine(t *testing.T) (*Engine, *countingTrigger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.toml")
	trig := &countingTrigger{}
	return NewEngine(path, trig), trig, path
}

func TestConfigureInstallsExactlyOneTrigger(t *testing.T) {
	eng, trig, _ := newTestEngine(t)
	p := testPolicy()
	if err := eng.Configure(p); err != nil {
		t.Fatalf("configure: %v", err)
	}
	first := eng.NextDue()

	// Identical reconfiguration: same next-due, still one registration.
	if err := eng.Configure(p); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if !eng.NextDue().Equal(first) {
		t.Fatalf("next-due drifted: %v vs %v", first, eng.NextDue())
	}
	if trig.installs != 2 || !trig.installed {
		t.Fatalf("expected idempotent install, got %+v", trig)
	}
	state, due := eng.Current()
	if state != StateScheduled || due.IsZero() {
		t.Fatalf("unexpected state: %s %v", state, due)
	}
}

func TestConfigureInvalidKeepsPriorPolicy(t *testing.T) {
	eng, trig, _ := newTestEngine(t)
	if err := eng.Configure(testPolicy()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	bad := testPolicy()
	bad.Hour = 99
	if err := eng.Configure(bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if eng.Policy().Hour != 9 {
		t.Fatalf("prior policy lost: %+v", eng.Policy())
	}
	if trig.installs != 1 {
		t.Fatalf("failed configure must not touch the trigger, got %d installs", trig.installs)
	}
}

func TestDisableRemovesTrigger(t *testing.T) {
	eng, trig, _ := newTestEngine(t)
	if err := eng.Configure(testPolicy()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	p := eng.Policy()
	p.Enabled = false
	if err := eng.Configure(p); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if trig.removes != 1 || trig.installed {
		t.Fatalf("trigger not removed: %+v", trig)
	}
	state, due := eng.Current()
	if state != StateDisabled || !due.IsZero() {
		t.Fatalf("unexpected state after disable: %s %v", state, due)
	}
}

func TestPolicyPersistsAcrossEngines(t *testing.T) {
	eng, _, path := newTestEngine(t)
	if err := eng.Configure(testPolicy()); err != nil {
		t.Fatalf("configure: %v", err)
	}

	eng2 := NewEngine(path, &countingTrigger{})
	if err := eng2.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	p := eng2.Policy()
	if !p.Enabled || p.Frequency != Daily || p.Hour != 9 || p.MinBatteryPercent != 50 {
		t.Fatalf("policy did not round-trip: %+v", p)
	}
	state, due := eng2.Current()
	if state != StateScheduled || due.IsZero() {
		t.Fatalf("loaded engine not scheduled: %s %v", state, due)
	}
}

func TestLoadMissingFile(t *testing.T) {
	eng := NewEngine(filepath.Join(t.TempDir(), "absent.toml"), &countingTrigger{})
	if err := eng.Load(); err != nil {
		t.Fatalf("missing policy file must not error: %v", err)
	}
	state, _ := eng.Current()
	if state != StateDisabled {
		t.Fatalf("expected disabled, got %s", state)
	}
}

func TestRunScheduledDisabled(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.RunScheduled(context.Background(), func(ctx context.Context, g precheck.Gates) (*session.Session, error) {
		t.Fatalf("run must not be invoked while disabled")
		return nil, nil
	})
	if err == nil {
		t.Fatalf("expected error for disabled schedule")
	}
}

func TestRunScheduledPassesGatesAndRecordsLastRun(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	eng.SetDiskGate(10)
	if err := eng.Configure(testPolicy()); err != nil {
		t.Fatalf("configure: %v", err)
	}

	var got precheck.Gates
	sess, err := eng.RunScheduled(context.Background(), func(ctx context.Context, g precheck.Gates) (*session.Session, error) {
		got = g
		s := session.New(source.Options{})
		s.Seal(false)
		return s, nil
	})
	if err != nil {
		t.Fatalf("run scheduled: %v", err)
	}
	if sess == nil || sess.Status != session.StatusSucceeded {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if !got.SkipOnBattery || got.MinBatteryPercent != 50 || got.MinDiskSpaceGB != 10 {
		t.Fatalf("gates not derived from policy: %+v", got)
	}
	if eng.Policy().LastRun.IsZero() {
		t.Fatalf("last run not recorded")
	}
	state, _ := eng.Current()
	if state != StateScheduled {
		t.Fatalf("engine did not return to scheduled, got %s", state)
	}
}

func TestRunScheduledBiweeklyEarlyFire(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	p := testPolicy()
	p.Frequency = Biweekly
	p.Weekday = 1
	if err := eng.Configure(p); err != nil {
		t.Fatalf("configure: %v", err)
	}
	// First firing runs; a firing one week later must be refused.
	if _, err := eng.RunScheduled(context.Background(), func(ctx context.Context, g precheck.Gates) (*session.Session, error) {
		s := session.New(source.Options{})
		s.Seal(false)
		return s, nil
	}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, err := eng.RunScheduled(context.Background(), func(ctx context.Context, g precheck.Gates) (*session.Session, error) {
		t.Fatalf("early firing must not run")
		return nil, nil
	})
	if !errors.Is(err, ErrNotDue) {
		t.Fatalf("expected ErrNotDue, got %v", err)
	}
}

func TestNopTrigger(t *testing.T) {
	var trig NopTrigger
	if err := trig.Install(testPolicy(), time.Now()); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := trig.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	installed, err := trig.Installed()
	if err != nil || installed {
		t.Fatalf("nop trigger reports installed")
	}
}

func TestLaunchdPlistRendering(t *testing.T) {
	l := NewLaunchd("/usr/local/bin/upkeep", "scheduled")
	p := Policy{Enabled: true, Frequency: Weekly, Hour: 9, Minute: 30, Weekday: 1}
	plist := l.renderPlist(p)
	for _, want := range []string{
		"<string>com.loykin.upkeep.scheduled</string>",
		"<string>/usr/local/bin/upkeep</string>",
		"<string>scheduled</string>",
		"<key>Hour</key>",
		"<integer>9</integer>",
		"<key>Weekday</key>",
		"<integer>1</integer>",
	} {
		if !strings.Contains(plist, want) {
			t.Fatalf("plist missing %q:\n%s", want, plist)
		}
	}
	monthly := Policy{Enabled: true, Frequency: Monthly, Hour: 3, DayOfMonth: 15}
	mp := l.renderPlist(monthly)
	if !strings.Contains(mp, "<key>Day</key>") || strings.Contains(mp, "<key>Weekday</key>") {
		t.Fatalf("monthly plist has wrong calendar keys:\n%s", mp)
	}
}
