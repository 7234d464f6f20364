package source

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
)

// Npm updates globally installed Node.js packages.
type Npm struct {
	run *Runner
}

func NewNpm(run *Runner) *Npm { return &Npm{run: run} }

func (n *Npm) Probe() Capability {
	return Capability{
		ID:        "npm",
		Name:      "Node.js Packages",
		Available: Installed("npm"),
	}
}

func (n *Npm) Check(ctx context.Context) ([]Item, error) {
	cap := n.Probe()
	if !cap.Available {
		return nil, ErrUnavailable
	}
	// npm outdated exits non-zero when anything is outdated; only an
	// empty output together with an error is a real failure.
	out, err := n.run.Output(ctx, "npm", "outdated", "-g", "--json")
	if err != nil && strings.TrimSpace(out) == "" {
		return nil, &CheckError{SourceID: cap.ID, Err: err}
	}
	items, perr := parseNpmOutdated(out)
	if perr != nil {
		return nil, &CheckError{SourceID: cap.ID, Err: perr}
	}
	return items, nil
}

func (n *Npm) Apply(ctx context.Context, opts Options, emit Listener) Result {
	cap := n.Probe()
	return runApply(ctx, cap, opts, emit, func(ctx context.Context, line func(string)) (int, error) {
		items, err := n.Check(ctx)
		if err != nil {
			return 0, err
		}
		selected := partition(items, opts, line)
		if opts.DryRun {
			return reportDryRun(selected, line), nil
		}
		if len(selected) == 0 {
			line("all global npm packages up to date")
			return 0, nil
		}
		upgraded := 0
		for _, it := range selected {
			if err := n.run.Stream(ctx, cap.ID, line, "npm", "install", "-g", it.Name+"@latest"); err != nil {
				return upgraded, err
			}
			upgraded++
		}
		return upgraded, nil
	})
}

func parseNpmOutdated(out string) ([]Item, error) {
	out = strings.TrimSpace(out)
	if out == "" || out == "{}" {
		return nil, nil
	}
	var rows map[string]struct {
		Current string `json:"current"`
		Latest  string `json:"latest"`
	}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for name, row := range rows {
		items = append(items, Item{Name: name, CurrentVersion: row.Current, TargetVersion: row.Latest})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}
