package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires all subcommands
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	checkFlags := &CheckFlags{}
	historyFlags := &HistoryFlags{}
	scheduleFlags := &ScheduleSetFlags{}
	serveFlags := &ServeFlags{}

	upkeepCommand := command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(upkeepCommand, runFlags),
		createCheckCommand(upkeepCommand, checkFlags),
		createHistoryCommand(upkeepCommand, historyFlags),
		createScheduleCommand(upkeepCommand, scheduleFlags),
		createScheduledCommand(upkeepCommand),
		createServeCommand(upkeepCommand, serveFlags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "upkeep",
		Short: "Unified software update orchestrator",
		Long: `Upkeep drives every update mechanism on the machine through one
front door: system updates, Homebrew, the App Store, pip and npm.

Examples:
  upkeep check                         # list pending updates
  upkeep run                           # apply all updates
  upkeep run --dry-run --source=homebrew
  upkeep schedule set --frequency=weekly --hour=9 --weekday=1
  upkeep serve                         # HTTP API + in-process scheduler`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")
	return root
}
