package log

import (
	"context"
	"log/slog"
	"strings"
)

// SlogAdapter prints protocol events through an slog.Logger. It logs at
// Debug unless WithLevel says otherwise.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates an adapter that logs at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter that logs at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log prints one record per event. Frame, state and error details are
// grouped under "frame", "state" and "error".
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, a.level) {
		return
	}

	attrs := make([]slog.Attr, 0, 5)
	attrs = append(attrs,
		slog.String("connection", event.ConnectionID),
		slog.String("layer", event.Layer.String()))
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.String("direction", event.Direction.String()),
			slog.Group("frame",
				slog.Int("size", event.Frame.Size),
				slog.Bool("truncated", event.Frame.Truncated)))
	case event.StateChange != nil:
		sc := event.StateChange
		group := []any{slog.String("old", sc.OldState), slog.String("new", sc.NewState)}
		if sc.Reason != "" {
			group = append(group, slog.String("reason", sc.Reason))
		}
		attrs = append(attrs, slog.Group("state", group...))
	case event.Error != nil:
		e := event.Error
		attrs = append(attrs, slog.Group("error",
			slog.String("layer", e.Layer.String()),
			slog.String("message", e.Message),
			slog.String("context", e.Context),
			slog.Bool("expected", e.Expected)))
	}

	msg := "protocol " + strings.ToLower(event.Category.String())
	a.logger.LogAttrs(ctx, a.level, msg, attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
