package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"memoji/internal/utils/logger"
)

// Scheduler handles periodic task scheduling
type Scheduler struct {
	scheduler   *asynq.Scheduler
	cleanupSpec string
	logger      *logger.Logger
}

// NewScheduler creates a new task scheduler. cleanupSpec is a cron
// expression (descriptors like "@every 6h" are accepted) for the purge
// of soft-deleted emojis.
func NewScheduler(redisAddr, username, password string, db int, cleanupSpec string, logger *logger.Logger) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
		&asynq.SchedulerOpts{},
	)

	return &Scheduler{
		scheduler:   scheduler,
		cleanupSpec: cleanupSpec,
		logger:      logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if err := s.registerTasks(); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}

	s.logger.Info("starting task scheduler")
	return s.scheduler.Run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("task scheduler stopped")
}

// registerTasks registers all periodic tasks
func (s *Scheduler) registerTasks() error {
	spec := s.cleanupSpec
	if spec == "" {
		spec = "@every 6h"
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cleanup cron spec %q: %w", spec, err)
	}

	payload, err := json.Marshal(EmojiCleanupPayload{})
	if err != nil {
		return err
	}

	entryID, err := s.scheduler.Register(spec,
		asynq.NewTask(TaskTypeEmojiCleanup, payload,
			asynq.Queue(QueueLow),
			asynq.MaxRetry(RetryMin),
			asynq.Timeout(TimeoutLong),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to register cleanup task: %w", err)
	}

	s.logger.Info("registered cleanup task %s %s", spec, entryID)
	return nil
}
