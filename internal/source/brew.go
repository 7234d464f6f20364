package source

import (
	"context"
	"strings"
)

// Brew updates Homebrew formulae and casks.
type Brew struct {
	run *Runner
}

func NewBrew(run *Runner) *Brew { return &Brew{run: run} }

func (b *Brew) Probe() Capability {
	return Capability{
		ID:        "homebrew",
		Name:      "Homebrew",
		Available: Installed("brew"),
	}
}

func (b *Brew) Check(ctx context.Context) ([]Item, error) {
	cap := b.Probe()
	if !cap.Available {
		return nil, ErrUnavailable
	}
	// Refresh the formula index first; a stale index is not fatal.
	_, _ = b.run.Output(ctx, "brew", "update")

	out, err := b.run.Output(ctx, "brew", "outdated", "--verbose")
	if err != nil {
		return nil, &CheckError{SourceID: cap.ID, Err: err}
	}
	return parseBrewOutdated(out), nil
}

func (b *Brew) Apply(ctx context.Context, opts Options, emit Listener) Result {
	cap := b.Probe()
	return runApply(ctx, cap, opts, emit, func(ctx context.Context, line func(string)) (int, error) {
		items, err := b.Check(ctx)
		if err != nil {
			return 0, err
		}
		selected := partition(items, opts, line)
		if opts.DryRun {
			return reportDryRun(selected, line), nil
		}
		if len(selected) == 0 {
			line("nothing to upgrade")
			return 0, nil
		}

		args := []string{"upgrade"}
		if len(opts.Exclude) > 0 {
			// With exclusions in play, upgrade only the named formulae.
			for _, it := range selected {
				args = append(args, it.Name)
			}
		}
		if err := b.run.Stream(ctx, cap.ID, line, "brew", args...); err != nil {
			return 0, err
		}
		// Old versions pile up quickly; prune them best-effort.
		_ = b.run.Stream(ctx, cap.ID, line, "brew", "cleanup", "--prune=7")
		return len(selected), nil
	})
}

// parseBrewOutdated parses `brew outdated --verbose` lines of the form
// "wget (1.21.3) < 1.21.4". Lines that do not match are ignored.
func parseBrewOutdated(out string) []Item {
	var items []Item
	for _, raw := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimSpace(raw))
		if len(fields) == 0 {
			continue
		}
		it := Item{Name: fields[0]}
		for i, f := range fields[1:] {
			if strings.HasPrefix(f, "(") {
				it.CurrentVersion = strings.Trim(f, "(),")
			}
			if (f == "<" || f == "!=") && i+2 < len(fields) {
				it.TargetVersion = fields[i+2]
			}
		}
		if it.Name != "" {
			items = append(items, it)
		}
	}
	return items
}
