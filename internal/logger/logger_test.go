package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterDisabledWithoutDir(t *testing.T) {
	w, err := Config{}.Writer("homebrew")
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if w != nil {
		t.Fatalf("empty dir must disable the tee")
	}
}

func TestWriterCreatesPerSourceFile(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: filepath.Join(dir, "logs")}
	w, err := c.Writer("homebrew")
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if w == nil {
		t.Fatalf("expected a writer")
	}
	if _, err := w.Write([]byte("brew upgrade wget\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()

	b, err := os.ReadFile(filepath.Join(dir, "logs", "homebrew.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "brew upgrade wget") {
		t.Fatalf("log content missing: %q", b)
	}
}

func TestRotationDefaults(t *testing.T) {
	if valOr(0, DefaultMaxSizeMB) != DefaultMaxSizeMB {
		t.Fatalf("zero must fall back to the default")
	}
	if valOr(-1, DefaultMaxAgeDays) != DefaultMaxAgeDays {
		t.Fatalf("negative must fall back to the default")
	}
	if valOr(42, DefaultMaxBackups) != 42 {
		t.Fatalf("explicit value must win")
	}
}
