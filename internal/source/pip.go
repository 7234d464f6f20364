package source

import (
	"context"
	"encoding/json"
	"strings"
)

// Pip updates Python packages installed through pip3.
type Pip struct {
	run *Runner
}

func NewPip(run *Runner) *Pip { return &Pip{run: run} }

func (p *Pip) Probe() Capability {
	return Capability{
		ID:        "pip",
		Name:      "Python Packages",
		Available: Installed("pip3"),
	}
}

func (p *Pip) Check(ctx context.Context) ([]Item, error) {
	cap := p.Probe()
	if !cap.Available {
		return nil, ErrUnavailable
	}
	out, err := p.run.Output(ctx, "pip3", "list", "--outdated", "--format=json")
	if err != nil {
		return nil, &CheckError{SourceID: cap.ID, Err: err}
	}
	items, perr := parsePipOutdated(out)
	if perr != nil {
		return nil, &CheckError{SourceID: cap.ID, Err: perr}
	}
	return items, nil
}

func (p *Pip) Apply(ctx context.Context, opts Options, emit Listener) Result {
	cap := p.Probe()
	return runApply(ctx, cap, opts, emit, func(ctx context.Context, line func(string)) (int, error) {
		items, err := p.Check(ctx)
		if err != nil {
			return 0, err
		}
		selected := partition(items, opts, line)
		if opts.DryRun {
			return reportDryRun(selected, line), nil
		}
		if len(selected) == 0 {
			line("all Python packages up to date")
			return 0, nil
		}
		upgraded := 0
		for _, it := range selected {
			if err := p.run.Stream(ctx, cap.ID, line, "pip3", "install", "--upgrade", it.Name); err != nil {
				return upgraded, err
			}
			upgraded++
		}
		return upgraded, nil
	})
}

func parsePipOutdated(out string) ([]Item, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var rows []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Latest  string `json:"latest_version"`
	}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, Item{Name: row.Name, CurrentVersion: row.Version, TargetVersion: row.Latest})
	}
	return items, nil
}
