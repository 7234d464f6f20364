package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/upkeep"
)

type command struct {
	flags *GlobalFlags
}

// loadApp assembles an App from the configured (or default) config file.
func (c command) loadApp() (*upkeep.App, upkeep.Config, error) {
	upkeep.SetupLogging(c.flags.Debug)
	cfg, err := upkeep.LoadConfig(c.flags.ConfigPath)
	if err != nil {
		return nil, cfg, err
	}
	app, err := upkeep.New(cfg)
	if err != nil {
		return nil, cfg, err
	}
	return app, cfg, nil
}

// createRunCommand creates the run subcommand
func createRunCommand(upkeepCommand command, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply pending updates across all enabled sources",
		Long: `Run one update session: evaluate the safety preconditions, then
apply updates source by source. Ctrl-C cancels the whole run; the
external tools are terminated, never orphaned.

Examples:
  upkeep run
  upkeep run --dry-run
  upkeep run --source=homebrew --source=npm --exclude=node`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.Run(*runFlags)
		},
	}
	cmd.Flags().StringSliceVar(&runFlags.Sources, "source", nil, "source ids to run (default: configured set)")
	cmd.Flags().StringSliceVar(&runFlags.Exclude, "exclude", nil, "package names to hold back")
	cmd.Flags().BoolVar(&runFlags.DryRun, "dry-run", false, "report what would be updated without applying")
	cmd.Flags().BoolVarP(&runFlags.Verbose, "verbose", "v", false, "stream raw tool output")
	cmd.Flags().BoolVar(&runFlags.ContinueOnFailure, "continue-on-failure", false, "treat the session as succeeded despite per-source failures")
	cmd.Flags().BoolVarP(&runFlags.Quiet, "quiet", "q", false, "suppress progress output, print the summary only")
	return cmd
}

func (c command) Run(f RunFlags) error {
	app, _, err := c.loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	opts := app.Defaults()
	if len(f.Sources) > 0 {
		opts.Enabled = f.Sources
	}
	if len(f.Exclude) > 0 {
		opts.Exclude = f.Exclude
	}
	opts.DryRun = f.DryRun
	opts.Verbose = f.Verbose
	if f.ContinueOnFailure {
		opts.ContinueOnFailure = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		app.CancelAll()
	}()

	var listener upkeep.Listener
	if !f.Quiet {
		listener = printEvent(f.Verbose)
	}
	sess, err := app.Run(ctx, opts, listener)
	if err != nil {
		return err
	}
	printSummary(sess)
	if sess.Status == upkeep.SessionFailed {
		return fmt.Errorf("run failed")
	}
	return nil
}

// createCheckCommand creates the check subcommand
func createCheckCommand(upkeepCommand command, checkFlags *CheckFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "List pending updates without applying anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.Check(*checkFlags)
		},
	}
	cmd.Flags().StringSliceVar(&checkFlags.Sources, "source", nil, "source ids to check (default: configured set)")
	cmd.Flags().BoolVar(&checkFlags.JSON, "json", false, "print machine-readable JSON")
	return cmd
}

func (c command) Check(f CheckFlags) error {
	app, _, err := c.loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	enabled := app.Defaults().Enabled
	if len(f.Sources) > 0 {
		enabled = f.Sources
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := app.Check(ctx, enabled)
	if f.JSON {
		printJSON(results)
		return nil
	}
	total := 0
	for _, r := range results {
		name := r.Capability.Name
		if name == "" {
			name = r.Capability.ID
		}
		switch {
		case r.Err != "":
			fmt.Printf("%-12s %s\n", name, r.Err)
		case len(r.Items) == 0:
			fmt.Printf("%-12s up to date\n", name)
		default:
			fmt.Printf("%-12s %d pending\n", name, len(r.Items))
			for _, it := range r.Items {
				line := "  " + it.Name
				if it.CurrentVersion != "" || it.TargetVersion != "" {
					line += fmt.Sprintf(" %s -> %s", it.CurrentVersion, it.TargetVersion)
				}
				fmt.Println(line)
			}
			total += len(r.Items)
		}
	}
	fmt.Printf("%d update(s) pending\n", total)
	return nil
}

// createHistoryCommand creates the history subcommand tree
func createHistoryCommand(upkeepCommand command, historyFlags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the run log",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List past sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.HistoryList(*historyFlags)
		},
	}
	list.Flags().IntVar(&historyFlags.Limit, "limit", 20, "maximum sessions to show (0 = all)")
	list.Flags().StringVar(&historyFlags.Since, "since", "", "only sessions at or after this RFC3339 time")
	list.Flags().BoolVar(&historyFlags.JSON, "json", false, "print machine-readable JSON")

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete the entire run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.HistoryClear(*historyFlags)
		},
	}
	clear.Flags().BoolVar(&historyFlags.Yes, "yes", false, "skip the confirmation prompt")

	cmd.AddCommand(list, clear)
	return cmd
}

func (c command) HistoryList(f HistoryFlags) error {
	app, _, err := c.loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	store := app.History()
	if store == nil {
		return fmt.Errorf("history persistence is disabled")
	}
	var since time.Time
	if f.Since != "" {
		since, err = time.Parse(time.RFC3339, f.Since)
		if err != nil {
			return fmt.Errorf("invalid --since, want RFC3339: %s", f.Since)
		}
	}
	sessions, err := store.List(context.Background(), f.Limit, since)
	if err != nil {
		return err
	}
	if f.JSON {
		printJSON(sessions)
		return nil
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}
	for _, s := range sessions {
		ok, failed, skipped, cancelled := s.Counts()
		fmt.Printf("%s  %-9s  %d ok / %d failed / %d skipped / %d cancelled  (%s)\n",
			s.StartedAt.Format("2006-01-02 15:04"), s.Status, ok, failed, skipped, cancelled,
			s.Duration().Round(time.Second))
		if s.Note != "" {
			fmt.Printf("  note: %s\n", s.Note)
		}
	}
	return nil
}

func (c command) HistoryClear(f HistoryFlags) error {
	app, _, err := c.loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	store := app.History()
	if store == nil {
		return fmt.Errorf("history persistence is disabled")
	}
	if !f.Yes {
		fmt.Print("delete the entire run log? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("aborted")
			return nil
		}
	}
	if err := store.Clear(context.Background()); err != nil {
		return err
	}
	fmt.Println("run log cleared")
	return nil
}
