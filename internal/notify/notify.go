package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier delivers a (title, body, severity) triple to the user.
type Notifier interface {
	Notify(ctx context.Context, title, body string, sev Severity) error
}

// OSAScript posts desktop notifications through osascript, with a
// per-severity sound.
type OSAScript struct {
	Timeout time.Duration // default 10s
}

var severitySounds = map[Severity]string{
	SeverityInfo:    "default",
	SeveritySuccess: "Glass",
	SeverityWarning: "Sosumi",
	SeverityError:   "Basso",
}

func (o OSAScript) Notify(ctx context.Context, title, body string, sev Severity) error {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sound := severitySounds[sev]
	if sound == "" {
		sound = "default"
	}
	script := fmt.Sprintf("display notification %q with title %q sound name %q",
		sanitize(body), sanitize(title), sound)
	if err := exec.CommandContext(cctx, "osascript", "-e", script).Run(); err != nil {
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, `"`, `'`)
}

// LogNotifier routes notifications into structured logs. Used when
// desktop notifications are disabled or unavailable.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, title, body string, sev Severity) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	switch sev {
	case SeverityError:
		log.ErrorContext(ctx, title, "detail", body)
	case SeverityWarning:
		log.WarnContext(ctx, title, "detail", body)
	default:
		log.InfoContext(ctx, title, "detail", body)
	}
	return nil
}
