package main

// GlobalFlags holds persistent flags shared by all commands
type GlobalFlags struct {
	ConfigPath string
	Debug      bool
}

// RunFlags holds flags for the run command
type RunFlags struct {
	Sources           []string
	Exclude           []string
	DryRun            bool
	Verbose           bool
	ContinueOnFailure bool
	Quiet             bool
}

// CheckFlags holds flags for the check command
type CheckFlags struct {
	Sources []string
	JSON    bool
}

// HistoryFlags holds flags for the history subcommands
type HistoryFlags struct {
	Limit int
	Since string
	JSON  bool
	Yes   bool
}

// ScheduleSetFlags holds flags for schedule set
type ScheduleSetFlags struct {
	Frequency         string
	Hour              int
	Minute            int
	Weekday           int
	DayOfMonth        int
	SkipOnBattery     bool
	MinBatteryPercent int
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	Listen   string
	BasePath string
}
