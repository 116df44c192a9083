package notify

import (
	"context"
	"log/slog"
)

// Logger writes every notification to a structured logger.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(l *slog.Logger) *Logger {
	return &Logger{logger: l.With(slog.String("component", "notify"))}
}

func (l *Logger) Emit(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Category == Alert {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Title,
		slog.String("id", n.ID),
		slog.String("category", string(n.Category)),
		slog.String("message", n.Message),
	)
}
