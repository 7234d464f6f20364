package logger

import (
	"context"
	"io"
	"log/slog"
)

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[36m", // cyan
	slog.LevelInfo:  "\033[32m", // green
	slog.LevelWarn:  "\033[33m", // yellow
	slog.LevelError: "\033[31m", // red
}

const colorReset = "\033[0m"

// ColorTextHandler decorates slog.TextHandler with a colored level tag
// in front of every message. Colors can be disabled for non-terminal
// destinations.
type ColorTextHandler struct {
	*slog.TextHandler
	noColor bool
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, noColor bool) *ColorTextHandler {
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(w, opts),
		noColor:     noColor,
	}
}

// Handle implements slog.Handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	tag := r.Level.String()
	if !h.noColor {
		if c, ok := levelColors[r.Level]; ok {
			tag = c + tag + colorReset
		}
	}
	r.Message = tag + "  " + r.Message
	return h.TextHandler.Handle(ctx, r)
}
