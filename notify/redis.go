package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel notifications are published on.
const DefaultChannel = "papertrade:notifications"

// Redis publishes notifications as JSON on a pub/sub channel so that other
// processes (a UI gateway, a chat bot) can relay them.
type Redis struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedis(rdb *redis.Client, channel string, logger *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{
		rdb:     rdb,
		channel: channel,
		logger:  logger.With(slog.String("component", "notify.redis")),
	}
}

func (r *Redis) Emit(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		r.logger.ErrorContext(ctx, "marshal notification", slog.String("error", err.Error()))
		return
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.ErrorContext(ctx, "publish notification failed",
			slog.String("channel", r.channel),
			slog.String("error", err.Error()),
		)
	}
}
