package tasks

import "time"

// Task Types
const (
	TaskTypeEmojiDownload = "emoji:download"
	TaskTypeEmojiCleanup  = "emoji:cleanup"
)

// Task Queues
const (
	QueueCritical = "critical" // For time-sensitive tasks
	QueueDefault  = "default"  // For image downloads
	QueueLow      = "low"      // For background tasks like cleanup
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
	TimeoutLong   = 30 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
	RetryMin     = 1
)

// EmojiDownloadPayload describes one pending image download.
type EmojiDownloadPayload struct {
	EmojiID   string `json:"emojiId"`
	SourceURL string `json:"sourceUrl"`
	SavedBy   string `json:"savedBy"`
}

// EmojiCleanupPayload drives the periodic purge of soft-deleted records.
type EmojiCleanupPayload struct {
	RetentionHours int `json:"retentionHours"`
}
