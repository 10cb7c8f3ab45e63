package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"memoji/internal/tasks/rate"
	"memoji/internal/utils/logger"
)

// TaskClient enqueues background work. Users who enqueue downloads
// faster than the sliding-window cap get routed to the low-priority
// queue instead of being rejected.
type TaskClient struct {
	client  *asynq.Client
	limiter *rate.DownloadLimiter
	logger  *logger.Logger
}

// NewTaskClient creates a new TaskClient with the given Redis configuration.
func NewTaskClient(redisAddr, username, password string, db int) *TaskClient {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	})

	return &TaskClient{
		client: asynq.NewClient(redisOpt),
		limiter: rate.NewDownloadLimiter(redisClient, rate.Limit{
			Window:  time.Minute,
			MaxJobs: 10,
		}),
		logger: logger.New("TASKS"),
	}
}

// Close closes the underlying asynq client.
func (c *TaskClient) Close() error {
	return c.client.Close()
}

// EnqueueDownload schedules the image fetch for a freshly saved emoji.
func (c *TaskClient) EnqueueDownload(ctx context.Context, emojiID, url, savedBy string) error {
	payload, err := json.Marshal(EmojiDownloadPayload{
		EmojiID:   emojiID,
		SourceURL: url,
		SavedBy:   savedBy,
	})
	if err != nil {
		return c.logger.Error("Failed to marshal download payload", err)
	}

	queue := QueueDefault
	allowed, err := c.limiter.Allow(ctx, savedBy)
	if err != nil {
		c.logger.Warn("Download rate check failed for %s: %v", savedBy, err)
	} else if !allowed {
		queue = QueueLow
	}

	task := asynq.NewTask(TaskTypeEmojiDownload, payload,
		asynq.Queue(queue),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutMedium),
	)
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return c.logger.Error("Failed to enqueue download for %s", err, emojiID)
	}

	c.logger.Debug("Enqueued download task %s for emoji %s on queue %s", info.ID, emojiID, queue)
	return nil
}
