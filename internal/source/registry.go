package source

// Defaults returns the closed set of built-in sources in their default
// invocation order: the exclusive system updater first, then the
// package managers.
func Defaults(run *Runner) []Source {
	return []Source{
		NewMacOS(run),
		NewBrew(run),
		NewAppStore(run),
		NewPip(run),
		NewNpm(run),
	}
}

// IDs lists the identifiers of the given sources in order.
func IDs(sources []Source) []string {
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.Probe().ID)
	}
	return ids
}
