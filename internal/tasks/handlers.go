package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"memoji/internal/services"
	"memoji/internal/utils/logger"
)

const defaultRetention = 7 * 24 * time.Hour

// TaskHandler processes background tasks against the emoji service.
type TaskHandler struct {
	emojis *services.EmojiService
	logger *logger.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(emojis *services.EmojiService) *TaskHandler {
	return &TaskHandler{
		emojis: emojis,
		logger: logger.New("task_handler"),
	}
}

// HandleEmojiDownload fetches the image for a pending emoji record.
func (h *TaskHandler) HandleEmojiDownload(ctx context.Context, t *asynq.Task) error {
	var payload EmojiDownloadPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return h.logger.Error("Failed to unmarshal download payload", err)
	}

	if err := h.emojis.CompleteDownload(ctx, payload.EmojiID, payload.SourceURL); err != nil {
		return h.logger.Error("Download failed for emoji %s", err, payload.EmojiID)
	}

	h.logger.Success("Downloaded image for emoji %s", payload.EmojiID)
	return nil
}

// HandleEmojiCleanup purges records that were soft-deleted longer ago
// than the retention window.
func (h *TaskHandler) HandleEmojiCleanup(ctx context.Context, t *asynq.Task) error {
	var payload EmojiCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return h.logger.Error("Failed to unmarshal cleanup payload", err)
	}

	retention := defaultRetention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}

	purged, err := h.emojis.PurgeDeleted(ctx, retention)
	if err != nil {
		return h.logger.Error("Cleanup run failed", err)
	}

	if purged > 0 {
		h.logger.Info("Purged %d deleted emojis", purged)
	}
	return nil
}
