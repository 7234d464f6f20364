package precheck

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// SystemReader reads power and storage facts from the host. Battery
// state comes from pmset; free disk from the filesystem holding Root.
// Missing tools degrade to "mains powered" rather than failing.
type SystemReader struct {
	Root string // volume to measure, default "/"
}

func (r SystemReader) Read(ctx context.Context) (State, error) {
	st := State{}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(cctx, "pmset", "-g", "batt").Output(); err == nil {
		st.OnBattery, st.BatteryPercent = parsePmsetBatt(string(out))
	}

	root := r.Root
	if root == "" {
		root = "/"
	}
	free, err := freeDiskBytes(root)
	if err != nil {
		return st, err
	}
	st.FreeDiskBytes = free
	return st, nil
}

// parsePmsetBatt extracts charge state from `pmset -g batt` output:
//
//	Now drawing from 'Battery Power'
//	 -InternalBattery-0 (id=...)	73%; discharging; 3:12 remaining ...
func parsePmsetBatt(out string) (onBattery bool, percent int) {
	percent = 100
	onBattery = strings.Contains(out, "'Battery Power'")
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "%") {
			continue
		}
		for _, f := range strings.Fields(line) {
			if strings.HasSuffix(f, "%;") || strings.HasSuffix(f, "%") {
				v := strings.TrimRight(f, "%;")
				if n, err := strconv.Atoi(v); err == nil {
					percent = n
					return onBattery, percent
				}
			}
		}
	}
	return onBattery, percent
}
