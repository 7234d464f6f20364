package source

import (
	"context"
	"slices"
)

// Capability is the immutable descriptor a source reports from Probe.
// Exclusive marks sources that must never run concurrently with any
// other source (system-level installers mutating shared state).
type Capability struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
	NeedsRoot bool   `json:"needs_root"`
	Exclusive bool   `json:"exclusive"`
}

// Item is one pending update reported by Check. Versions are opaque
// strings; no cross-source semantics are attached to them.
type Item struct {
	Name           string `json:"name"`
	CurrentVersion string `json:"current_version"`
	TargetVersion  string `json:"target_version"`
}

// Options carries the per-session configuration. It is constructed once
// per run and never mutated afterwards.
type Options struct {
	Enabled           []string `json:"enabled"`
	Verbose           bool     `json:"verbose"`
	DryRun            bool     `json:"dry_run"`
	Exclude           []string `json:"exclude"`
	ContinueOnFailure bool     `json:"continue_on_failure"`
}

// Excluded reports whether the named package is on the exclusion list.
func (o Options) Excluded(name string) bool {
	return slices.Contains(o.Exclude, name)
}

// Source is the uniform capability surface over one external update
// mechanism. Probe is cheap and side-effect free and never fails;
// an unusable tool reports Available=false. Check lists pending updates
// without applying them. Apply performs the update, forwarding progress
// to emit and returning exactly one terminal Result. Apply must honor
// Options.DryRun and Options.Exclude and must terminate the underlying
// external process when ctx is cancelled.
type Source interface {
	Probe() Capability
	Check(ctx context.Context) ([]Item, error)
	Apply(ctx context.Context, opts Options, emit Listener) Result
}
