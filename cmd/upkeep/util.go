package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/upkeep"
)

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(b))
}

// printEvent renders the progress stream. Raw tool output lines are
// shown only in verbose mode.
func printEvent(verbose bool) upkeep.Listener {
	return func(e upkeep.Event) {
		switch e.Kind {
		case "started":
			fmt.Printf("==> %s\n", e.SourceID)
		case "line":
			if verbose {
				fmt.Printf("    %s\n", e.Line)
			}
		case "succeeded":
			fmt.Printf("==> %s done (%d item(s))\n", e.SourceID, e.Items)
		case "failed":
			fmt.Printf("==> %s failed: %s\n", e.SourceID, e.Detail)
		case "skipped":
			fmt.Printf("==> %s skipped: %s\n", e.SourceID, e.Detail)
		}
	}
}

func printSummary(sess *upkeep.Session) {
	ok, failed, skipped, cancelled := sess.Counts()
	fmt.Printf("\n%s in %s: %d ok / %d failed / %d skipped / %d cancelled\n",
		sess.Status, sess.Duration().Round(time.Second), ok, failed, skipped, cancelled)
	if sess.Note != "" {
		fmt.Printf("note: %s\n", sess.Note)
	}
}

// policyPath is where the persisted schedule policy lives.
func policyPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "upkeep", "schedule.toml"), nil
}
