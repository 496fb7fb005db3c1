package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"homeservices-platform/pkg/utils"
)

// ConnectionLimiter caps simultaneous live connections per user. Acquire is
// called during authenticate, Release when the session closes.
type ConnectionLimiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string)
}

// RedisConnectionLimiter enforces the cap across all server instances via a
// shared redis counter. The slot carries a TTL so a crashed instance cannot
// leak slots forever.
type RedisConnectionLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
	log   *slog.Logger
}

func NewRedisConnectionLimiter(rdb *redis.Client, limit int, log *slog.Logger) *RedisConnectionLimiter {
	return &RedisConnectionLimiter{
		rdb:   rdb,
		limit: limit,
		ttl:   24 * time.Hour,
		log:   log,
	}
}

func (l *RedisConnectionLimiter) key(userID string) string {
	return "rt:conns:" + userID
}

func (l *RedisConnectionLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	return utils.AcquireConnectionSlot(ctx, l.rdb, l.key(userID), l.limit, l.ttl)
}

func (l *RedisConnectionLimiter) Release(ctx context.Context, userID string) {
	if l.limit <= 0 {
		return
	}
	if err := utils.ReleaseConnectionSlot(ctx, l.rdb, l.key(userID)); err != nil {
		l.log.Warn("connection slot release failed", "user_id", userID, "err", err)
	}
}
