package leads

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ForwardGuard loosely deduplicates forwards of the same conversation
// within the extraction window. It is best-effort only: the sink contract
// stays at-least-once, and a failed forward is never marked, so the next
// cycle's overlap window still retries it.
type ForwardGuard interface {
	// AlreadyForwarded reports whether this conversation was forwarded
	// within the guard window.
	AlreadyForwarded(ctx context.Context, chatID string) bool
	// MarkForwarded records a successful forward.
	MarkForwarded(ctx context.Context, chatID string)
}

// RedisGuard implements ForwardGuard with an expiring key per conversation.
// A Redis failure never blocks a forward.
type RedisGuard struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl, logger: logger}
}

func guardKey(chatID string) string {
	return "lead:forwarded:" + chatID
}

func (g *RedisGuard) AlreadyForwarded(ctx context.Context, chatID string) bool {
	err := g.rdb.Get(ctx, guardKey(chatID)).Err()
	if err == nil {
		return true
	}
	if !errors.Is(err, redis.Nil) {
		g.logger.Warn("forward guard unavailable, forwarding anyway", "chat_id", chatID, "error", err)
	}
	return false
}

func (g *RedisGuard) MarkForwarded(ctx context.Context, chatID string) {
	if err := g.rdb.Set(ctx, guardKey(chatID), time.Now().UTC().Format(time.RFC3339), g.ttl).Err(); err != nil {
		g.logger.Warn("failed to mark lead forwarded", "chat_id", chatID, "error", err)
	}
}
