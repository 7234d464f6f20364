package schedule

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const launchdLabel = "com.loykin.upkeep.scheduled"

// Launchd registers the recurring trigger as a user LaunchAgent. The
// plist calendar interval mirrors the policy anchor; biweekly fires
// weekly and the non-interactive entry point skips runs that are not
// yet due.
type Launchd struct {
	Label    string
	AgentDir string   // default ~/Library/LaunchAgents
	Program  string   // executable the job runs
	Args     []string // arguments, e.g. ["scheduled"]
}

func NewLaunchd(program string, args ...string) *Launchd {
	return &Launchd{Label: launchdLabel, Program: program, Args: args}
}

func (l *Launchd) plistPath() (string, error) {
	dir := l.AgentDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "LaunchAgents")
	}
	return filepath.Join(dir, l.label()+".plist"), nil
}

func (l *Launchd) label() string {
	if l.Label == "" {
		return launchdLabel
	}
	return l.Label
}

// Install writes the plist and (re)loads it, replacing any previous
// registration so exactly one job exists.
func (l *Launchd) Install(p Policy, _ time.Time) error {
	path, err := l.plistPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(l.renderPlist(p)), 0o600); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}
	// Unload first; a previous registration may be live.
	_ = exec.Command("launchctl", "unload", path).Run()
	if out, err := exec.Command("launchctl", "load", path).CombinedOutput(); err != nil {
		return fmt.Errorf("launchctl load: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Remove unloads and deletes the job. Removing a job that was never
// installed is not an error.
func (l *Launchd) Remove() error {
	path, err := l.plistPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	_ = exec.Command("launchctl", "unload", path).Run()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Launchd) Installed() (bool, error) {
	path, err := l.plistPath()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (l *Launchd) renderPlist(p Policy) string {
	var interval strings.Builder
	fmt.Fprintf(&interval, "        <dict>\n")
	fmt.Fprintf(&interval, "            <key>Hour</key>\n            <integer>%d</integer>\n", p.Hour)
	fmt.Fprintf(&interval, "            <key>Minute</key>\n            <integer>%d</integer>\n", p.Minute)
	switch p.Frequency {
	case Weekly, Biweekly:
		fmt.Fprintf(&interval, "            <key>Weekday</key>\n            <integer>%d</integer>\n", p.Weekday)
	case Monthly:
		fmt.Fprintf(&interval, "            <key>Day</key>\n            <integer>%d</integer>\n", p.DayOfMonth)
	}
	fmt.Fprintf(&interval, "        </dict>")

	var args strings.Builder
	fmt.Fprintf(&args, "        <string>%s</string>\n", l.Program)
	for _, a := range l.Args {
		fmt.Fprintf(&args, "        <string>%s</string>\n", a)
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>

    <key>ProgramArguments</key>
    <array>
%s    </array>

    <key>StartCalendarInterval</key>
%s

    <key>RunAtLoad</key>
    <false/>

    <key>EnvironmentVariables</key>
    <dict>
        <key>PATH</key>
        <string>/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin:/opt/homebrew/bin</string>
    </dict>
</dict>
</plist>
`, l.label(), args.String(), interval.String())
}
