package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/upkeep"
	"github.com/loykin/upkeep/internal/schedule"
)

// newEngine builds the schedule engine backed by the persisted policy
// file and a launchd trigger pointing back at this executable.
func newEngine() (*schedule.Engine, error) {
	path, err := policyPath()
	if err != nil {
		return nil, err
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	eng := schedule.NewEngine(path, schedule.NewLaunchd(exe, "scheduled"))
	if err := eng.Load(); err != nil {
		return nil, err
	}
	return eng, nil
}

// createScheduleCommand creates the schedule subcommand tree
func createScheduleCommand(upkeepCommand command, scheduleFlags *ScheduleSetFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the recurring update schedule",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Configure and enable the recurring schedule",
		Long: `Configure the recurrence policy and register the launchd job.
Repeating an identical set keeps exactly one job registered.

Examples:
  upkeep schedule set --frequency=daily --hour=9
  upkeep schedule set --frequency=weekly --hour=9 --weekday=1
  upkeep schedule set --frequency=monthly --hour=3 --day-of-month=1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.ScheduleSet(*scheduleFlags)
		},
	}
	set.Flags().StringVar(&scheduleFlags.Frequency, "frequency", "weekly", "daily, weekly, biweekly or monthly")
	set.Flags().IntVar(&scheduleFlags.Hour, "hour", 9, "hour of day, 0-23")
	set.Flags().IntVar(&scheduleFlags.Minute, "minute", 0, "minute, 0-59")
	set.Flags().IntVar(&scheduleFlags.Weekday, "weekday", 0, "weekday for weekly/biweekly, 0=Sunday")
	set.Flags().IntVar(&scheduleFlags.DayOfMonth, "day-of-month", 1, "day of month for monthly, clamped in short months")
	set.Flags().BoolVar(&scheduleFlags.SkipOnBattery, "skip-on-battery", true, "skip scheduled runs on low battery")
	set.Flags().IntVar(&scheduleFlags.MinBatteryPercent, "min-battery", 50, "battery floor for scheduled runs, 0-100")

	enable := &cobra.Command{
		Use:   "enable",
		Short: "Re-enable the previously configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.ScheduleEnable()
		},
	}
	disable := &cobra.Command{
		Use:   "disable",
		Short: "Disable the schedule and remove the launchd job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.ScheduleDisable()
		},
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the schedule state and next due time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.ScheduleStatus()
		},
	}

	cmd.AddCommand(set, enable, disable, status)
	return cmd
}

func (c command) ScheduleSet(f ScheduleSetFlags) error {
	upkeep.SetupLogging(c.flags.Debug)
	eng, err := newEngine()
	if err != nil {
		return err
	}
	p := schedule.Policy{
		Enabled:           true,
		Frequency:         schedule.Frequency(f.Frequency),
		Hour:              f.Hour,
		Minute:            f.Minute,
		Weekday:           f.Weekday,
		DayOfMonth:        f.DayOfMonth,
		SkipOnBattery:     f.SkipOnBattery,
		MinBatteryPercent: f.MinBatteryPercent,
	}
	if err := eng.Configure(p); err != nil {
		return err
	}
	fmt.Printf("schedule enabled, next run %s\n", eng.NextDue().Format(time.RFC1123))
	return nil
}

func (c command) ScheduleEnable() error {
	upkeep.SetupLogging(c.flags.Debug)
	eng, err := newEngine()
	if err != nil {
		return err
	}
	p := eng.Policy()
	if p.Frequency == "" {
		return fmt.Errorf("no schedule configured; run 'upkeep schedule set' first")
	}
	p.Enabled = true
	if err := eng.Configure(p); err != nil {
		return err
	}
	fmt.Printf("schedule enabled, next run %s\n", eng.NextDue().Format(time.RFC1123))
	return nil
}

func (c command) ScheduleDisable() error {
	upkeep.SetupLogging(c.flags.Debug)
	eng, err := newEngine()
	if err != nil {
		return err
	}
	p := eng.Policy()
	if p.Frequency == "" {
		fmt.Println("scheduling is not configured")
		return nil
	}
	p.Enabled = false
	if err := eng.Configure(p); err != nil {
		return err
	}
	fmt.Println("schedule disabled")
	return nil
}

func (c command) ScheduleStatus() error {
	upkeep.SetupLogging(c.flags.Debug)
	eng, err := newEngine()
	if err != nil {
		return err
	}
	state, due := eng.Current()
	p := eng.Policy()
	fmt.Printf("state: %s\n", state)
	if p.Frequency != "" {
		fmt.Printf("policy: %s at %02d:%02d", p.Frequency, p.Hour, p.Minute)
		switch p.Frequency {
		case schedule.Weekly, schedule.Biweekly:
			fmt.Printf(" on %s", time.Weekday(p.Weekday))
		case schedule.Monthly:
			fmt.Printf(" on day %d", p.DayOfMonth)
		}
		fmt.Println()
	}
	if !due.IsZero() {
		fmt.Printf("next due: %s\n", due.Format(time.RFC1123))
	}
	if !p.LastRun.IsZero() {
		fmt.Printf("last run: %s\n", p.LastRun.Format(time.RFC1123))
	}
	return nil
}

// createScheduledCommand creates the hidden entry point launchd invokes
func createScheduledCommand(upkeepCommand command) *cobra.Command {
	return &cobra.Command{
		Use:    "scheduled",
		Hidden: true,
		Short:  "Entry point for the launchd trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.Scheduled()
		},
	}
}

func (c command) Scheduled() error {
	app, _, err := c.loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	eng, err := newEngine()
	if err != nil {
		return err
	}
	app.AttachSchedule(eng)

	sess, err := app.RunScheduled(context.Background())
	if err != nil {
		// A weekly trigger carrying a biweekly policy fires early half
		// the time; that is expected, not a failure.
		if errors.Is(err, upkeep.ErrNotDue) {
			return nil
		}
		return err
	}
	printSummary(sess)
	return nil
}
