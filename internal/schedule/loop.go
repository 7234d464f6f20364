package schedule

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Loop is an in-process Trigger for long-running daemons: instead of a
// host job scheduler it drives the callback from a cron runner using
// the policy's own next-due computation.
type Loop struct {
	mu    sync.Mutex
	c     *cron.Cron
	entry cron.EntryID
	fn    func()
}

func NewLoop(fn func()) *Loop {
	l := &Loop{c: cron.New(), fn: fn}
	l.c.Start()
	return l
}

// policySchedule adapts Policy to cron.Schedule. cron requires the
// next activation to be strictly later than t; the policy grid is
// minute-granular, so nudging t by a minute is safe.
type policySchedule struct{ p Policy }

func (s policySchedule) Next(t time.Time) time.Time {
	return s.p.Next(t.Add(time.Minute))
}

func (l *Loop) Install(p Policy, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entry != 0 {
		l.c.Remove(l.entry)
	}
	l.entry = l.c.Schedule(policySchedule{p: p}, cron.FuncJob(l.fn))
	return nil
}

func (l *Loop) Remove() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entry != 0 {
		l.c.Remove(l.entry)
		l.entry = 0
	}
	return nil
}

func (l *Loop) Installed() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entry != 0, nil
}

// Stop halts the underlying cron runner; in-flight jobs finish.
func (l *Loop) Stop() {
	l.c.Stop()
}
