package schedule

import (
	"fmt"
	"time"
)

// Frequency is how often scheduled runs recur.
type Frequency string

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

func (f Frequency) valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly:
		return true
	}
	return false
}

// Policy is the persisted recurrence configuration. It is owned by the
// Engine and mutated only through Configure.
type Policy struct {
	Enabled           bool      `json:"enabled" mapstructure:"enabled"`
	Frequency         Frequency `json:"frequency" mapstructure:"frequency"`
	Hour              int       `json:"hour" mapstructure:"hour"`
	Minute            int       `json:"minute" mapstructure:"minute"`
	Weekday           int       `json:"weekday" mapstructure:"weekday"`           // 0=Sunday..6, weekly/biweekly anchor
	DayOfMonth        int       `json:"day_of_month" mapstructure:"day_of_month"` // monthly anchor, clamped to short months
	SkipOnBattery     bool      `json:"skip_on_battery" mapstructure:"skip_on_battery"`
	MinBatteryPercent int       `json:"min_battery_percent" mapstructure:"min_battery_percent"`
	LastRun           time.Time `json:"last_run,omitzero" mapstructure:"-"`
}

// Validate rejects malformed policies synchronously; a prior valid
// policy stays in effect when Configure fails.
func (p Policy) Validate() error {
	if !p.Frequency.valid() {
		return fmt.Errorf("invalid frequency %q", p.Frequency)
	}
	if p.Hour < 0 || p.Hour > 23 {
		return fmt.Errorf("invalid hour %d", p.Hour)
	}
	if p.Minute < 0 || p.Minute > 59 {
		return fmt.Errorf("invalid minute %d", p.Minute)
	}
	switch p.Frequency {
	case Weekly, Biweekly:
		if p.Weekday < 0 || p.Weekday > 6 {
			return fmt.Errorf("invalid weekday %d", p.Weekday)
		}
	case Monthly:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return fmt.Errorf("invalid day of month %d", p.DayOfMonth)
		}
	}
	if p.MinBatteryPercent < 0 || p.MinBatteryPercent > 100 {
		return fmt.Errorf("invalid minimum battery percent %d", p.MinBatteryPercent)
	}
	return nil
}

// Next computes the smallest due timestamp >= now that matches the
// anchor time-of-day and the frequency constraint. Monthly anchors
// clamp to the last valid day of short months; biweekly strides 14
// days from the last run, falling back to weekly anchoring when no
// run has happened yet.
func (p Policy) Next(now time.Time) time.Time {
	anchor := func(d time.Time) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), p.Hour, p.Minute, 0, 0, d.Location())
	}

	switch p.Frequency {
	case Daily:
		c := anchor(now)
		if c.Before(now) {
			c = anchor(now.AddDate(0, 0, 1))
		}
		return c

	case Weekly:
		return p.nextWeekday(now, anchor)

	case Biweekly:
		if p.LastRun.IsZero() {
			return p.nextWeekday(now, anchor)
		}
		c := anchor(p.LastRun.In(now.Location())).AddDate(0, 0, 14)
		for c.Before(now) {
			c = c.AddDate(0, 0, 14)
		}
		return c

	case Monthly:
		c := p.monthlyAnchor(now.Year(), now.Month(), now.Location())
		if c.Before(now) {
			y, m := now.Year(), now.Month()+1
			c = p.monthlyAnchor(y, m, now.Location())
		}
		return c
	}
	return time.Time{}
}

func (p Policy) nextWeekday(now time.Time, anchor func(time.Time) time.Time) time.Time {
	c := anchor(now)
	delta := (p.Weekday - int(c.Weekday()) + 7) % 7
	c = c.AddDate(0, 0, delta)
	if c.Before(now) {
		c = c.AddDate(0, 0, 7)
	}
	return c
}

func (p Policy) monthlyAnchor(year int, month time.Month, loc *time.Location) time.Time {
	day := p.DayOfMonth
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, p.Hour, p.Minute, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
