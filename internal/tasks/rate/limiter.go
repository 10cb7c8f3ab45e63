package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit is a sliding-window cap, e.g. 10 downloads per minute.
type Limit struct {
	Window  time.Duration
	MaxJobs int
}

// DownloadLimiter caps how many downloads a single user may enqueue
// within the window. Backed by a redis sorted set per user.
type DownloadLimiter struct {
	redis *redis.Client
	limit Limit
}

func NewDownloadLimiter(redis *redis.Client, limit Limit) *DownloadLimiter {
	return &DownloadLimiter{
		redis: redis,
		limit: limit,
	}
}

// Allow records one attempt for the user and reports whether they are
// still inside the window cap.
func (l *DownloadLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("memoji:download_rate:%s", userID)

	pipe := l.redis.Pipeline()
	now := time.Now().Unix()
	windowStart := now - int64(l.limit.Window.Seconds())

	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, l.limit.Window*2)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("redis pipeline error: %w", err)
	}

	count := results[1].(*redis.IntCmd).Val()
	return count < int64(l.limit.MaxJobs), nil
}
