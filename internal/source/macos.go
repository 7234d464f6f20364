package source

import (
	"context"
	"strings"
)

// MacOS updates system software through softwareupdate. It is marked
// Exclusive: the system installer must never run concurrently with any
// other source.
type MacOS struct {
	run *Runner
}

func NewMacOS(run *Runner) *MacOS { return &MacOS{run: run} }

func (m *MacOS) Probe() Capability {
	return Capability{
		ID:        "macos",
		Name:      "macOS System",
		Available: Installed("softwareupdate"),
		NeedsRoot: true,
		Exclusive: true,
	}
}

func (m *MacOS) Check(ctx context.Context) ([]Item, error) {
	cap := m.Probe()
	if !cap.Available {
		return nil, ErrUnavailable
	}
	out, err := m.run.Output(ctx, "softwareupdate", "--list")
	if err != nil && !strings.Contains(out, "No new software available") {
		return nil, &CheckError{SourceID: cap.ID, Err: err}
	}
	return parseSoftwareUpdateList(out), nil
}

func (m *MacOS) Apply(ctx context.Context, opts Options, emit Listener) Result {
	cap := m.Probe()
	return runApply(ctx, cap, opts, emit, func(ctx context.Context, line func(string)) (int, error) {
		items, err := m.Check(ctx)
		if err != nil {
			return 0, err
		}
		selected := partition(items, opts, line)
		if opts.DryRun {
			return reportDryRun(selected, line), nil
		}
		if len(selected) == 0 {
			line("no system updates pending")
			return 0, nil
		}

		line("installing system updates; a restart may be required")
		if len(opts.Exclude) == 0 {
			if err := m.run.Stream(ctx, cap.ID, line, "softwareupdate", "--install", "--all", "--verbose"); err != nil {
				return 0, err
			}
			return len(selected), nil
		}
		// Exclusions force per-label installs.
		for _, it := range selected {
			if err := m.run.Stream(ctx, cap.ID, line, "softwareupdate", "--install", it.Name, "--verbose"); err != nil {
				return 0, err
			}
		}
		return len(selected), nil
	})
}

// parseSoftwareUpdateList extracts update labels from `softwareupdate
// --list` output. Both "* Label: X" and bare "* X" forms occur.
func parseSoftwareUpdateList(out string) []Item {
	var items []Item
	seen := make(map[string]bool)
	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		var label string
		switch {
		case strings.Contains(line, "* Label:"):
			label = strings.TrimSpace(line[strings.Index(line, "* Label:")+len("* Label:"):])
		case strings.HasPrefix(line, "* "):
			label = strings.TrimSpace(strings.TrimPrefix(line, "* "))
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		items = append(items, Item{Name: label})
	}
	return items
}
