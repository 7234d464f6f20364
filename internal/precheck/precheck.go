package precheck

import "context"

// State is a snapshot of the environment facts the gates inspect.
type State struct {
	OnBattery      bool
	BatteryPercent int
	FreeDiskBytes  uint64
}

// Gates are the safety thresholds a run must satisfy before any source
// is touched.
type Gates struct {
	SkipOnBattery     bool    `mapstructure:"skip_on_battery"`
	MinBatteryPercent int     `mapstructure:"min_battery_percent"`
	MinDiskSpaceGB    float64 `mapstructure:"min_disk_space_gb"`
}

// Decision is the outcome of evaluating the gates.
type Decision struct {
	Ready  bool
	Reason string
}

// Reader supplies the current system state. Implementations probe the
// host; the evaluation itself stays pure.
type Reader interface {
	Read(ctx context.Context) (State, error)
}

// Evaluate checks the gates in order, short-circuiting on the first
// block: battery first, then free disk. It never mutates anything and
// never touches an update source.
func Evaluate(st State, g Gates) Decision {
	if g.SkipOnBattery && st.OnBattery && st.BatteryPercent < g.MinBatteryPercent {
		return Decision{Reason: "low battery"}
	}
	if g.MinDiskSpaceGB > 0 {
		freeGB := float64(st.FreeDiskBytes) / (1 << 30)
		if freeGB < g.MinDiskSpaceGB {
			return Decision{Reason: "insufficient disk space"}
		}
	}
	return Decision{Ready: true}
}
