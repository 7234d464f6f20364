package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/loykin/upkeep/internal/logger"
)

// Default guard parameters for external tool invocations.
const (
	DefaultTimeout = 30 * time.Minute
	DefaultGrace   = 5 * time.Second
)

// Runner executes external update tools. It starts each tool in its own
// process group, streams combined output line by line, and guarantees
// that cancellation or the guard timeout terminates the whole group:
// SIGTERM first, SIGKILL after Grace. No process is ever left detached.
type Runner struct {
	Timeout time.Duration // guard timeout per invocation (default 30m)
	Grace   time.Duration // TERM->KILL escalation window (default 5s)
	Env     []string      // optional extra environment, KEY=VALUE
	Log     logger.Config // optional rotating tee of raw tool output
}

func (r *Runner) timeout() time.Duration {
	if r == nil || r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *Runner) grace() time.Duration {
	if r == nil || r.Grace <= 0 {
		return DefaultGrace
	}
	return r.Grace
}

// Stream runs name args... and calls emit for every output line
// (stdout and stderr merged, order preserved). The returned error is
// nil on clean exit, wraps ErrTimeout when the guard timeout fired,
// ctx.Err() when the caller cancelled, and the exit error otherwise.
func (r *Runner) Stream(ctx context.Context, sourceID string, emit func(string), name string, args ...string) error {
	tctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	// #nosec G204 -- tool names and arguments come from the closed adapter set
	cmd := exec.Command(name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	setProcGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return fmt.Errorf("start %s: %w", name, err)
	}
	// Parent keeps only the read end; the child holds the write end open.
	_ = pw.Close()

	var tee *teeWriter
	if sourceID != "" {
		if w, err := r.Log.Writer(sourceID); err == nil && w != nil {
			tee = &teeWriter{w: w}
			defer tee.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-tctx.Done():
			terminateGroup(cmd)
			select {
			case <-done:
			case <-time.After(r.grace()):
				killGroup(cmd)
			}
		case <-done:
		}
	}()

	sc := bufio.NewScanner(pr)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if tee != nil {
			tee.WriteLine(line)
		}
		if emit != nil {
			emit(line)
		}
	}
	_ = pr.Close()

	waitErr := cmd.Wait()
	close(done)

	switch {
	case errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fmt.Errorf("%s after %s: %w", name, r.timeout(), ErrTimeout)
	case ctx.Err() != nil:
		return ctx.Err()
	case waitErr != nil:
		return fmt.Errorf("%s: %w", name, waitErr)
	}
	return nil
}

// Output runs name args... and returns the combined output. It shares
// Stream's cancellation and timeout behavior but never tees to the
// rotating source log; it is meant for inexpensive check commands.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	var b strings.Builder
	err := r.Stream(ctx, "", func(line string) {
		b.WriteString(line)
		b.WriteByte('\n')
	}, name, args...)
	return b.String(), err
}

// Installed reports whether the named tool is on PATH. Probe helper.
func Installed(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}

type teeWriter struct {
	w interface {
		Write(p []byte) (int, error)
		Close() error
	}
}

func (t *teeWriter) WriteLine(line string) {
	_, _ = t.w.Write(append([]byte(line), '\n'))
}

func (t *teeWriter) Close() { _ = t.w.Close() }
