package source

import (
	"context"
	"strings"
)

// AppStore updates Mac App Store applications through mas.
type AppStore struct {
	run *Runner
}

func NewAppStore(run *Runner) *AppStore { return &AppStore{run: run} }

func (a *AppStore) Probe() Capability {
	return Capability{
		ID:        "appstore",
		Name:      "App Store",
		Available: Installed("mas"),
	}
}

type masApp struct {
	id   string
	item Item
}

func (a *AppStore) Check(ctx context.Context) ([]Item, error) {
	apps, err := a.outdated(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(apps))
	for _, app := range apps {
		items = append(items, app.item)
	}
	return items, nil
}

func (a *AppStore) outdated(ctx context.Context) ([]masApp, error) {
	cap := a.Probe()
	if !cap.Available {
		return nil, ErrUnavailable
	}
	out, err := a.run.Output(ctx, "mas", "outdated")
	if err != nil {
		return nil, &CheckError{SourceID: cap.ID, Err: err}
	}
	return parseMasOutdated(out), nil
}

func (a *AppStore) Apply(ctx context.Context, opts Options, emit Listener) Result {
	cap := a.Probe()
	return runApply(ctx, cap, opts, emit, func(ctx context.Context, line func(string)) (int, error) {
		apps, err := a.outdated(ctx)
		if err != nil {
			return 0, err
		}
		selected := make([]masApp, 0, len(apps))
		for _, app := range apps {
			if opts.Excluded(app.item.Name) {
				line("skipping " + app.item.Name + " (excluded)")
				continue
			}
			selected = append(selected, app)
		}
		if opts.DryRun {
			items := make([]Item, 0, len(selected))
			for _, app := range selected {
				items = append(items, app.item)
			}
			return reportDryRun(items, line), nil
		}
		if len(selected) == 0 {
			line("all App Store apps up to date")
			return 0, nil
		}
		if len(opts.Exclude) == 0 {
			if err := a.run.Stream(ctx, cap.ID, line, "mas", "upgrade"); err != nil {
				return 0, err
			}
			return len(selected), nil
		}
		for _, app := range selected {
			if err := a.run.Stream(ctx, cap.ID, line, "mas", "upgrade", app.id); err != nil {
				return 0, err
			}
		}
		return len(selected), nil
	})
}

// parseMasOutdated parses `mas outdated` lines of the form
// "497799835 Xcode (14.2 -> 14.3)".
func parseMasOutdated(out string) []masApp {
	var apps []masApp
	for _, raw := range strings.Split(out, "\n") {
		line := strings.TrimSpace(raw)
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		app := masApp{id: fields[0]}
		name := fields[1:]
		if open := strings.Index(line, "("); open >= 0 {
			versions := strings.Trim(line[open:], "()")
			if cur, target, ok := strings.Cut(versions, " -> "); ok {
				app.item.CurrentVersion = strings.TrimSpace(cur)
				app.item.TargetVersion = strings.TrimSpace(target)
			}
			name = strings.Fields(strings.TrimSpace(line[len(fields[0]):open]))
		}
		app.item.Name = strings.Join(name, " ")
		if app.item.Name != "" {
			apps = append(apps, app)
		}
	}
	return apps
}
