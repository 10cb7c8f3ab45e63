package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	DeletedAt time.Time `gorm:"index;default:NULL" json:"-" validate:"omitempty"`
	IsDeleted bool      `json:"isDeleted" default:"false"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// EmojiStatus tracks the lifecycle of the stored image blob
type EmojiStatus string

const (
	EmojiStatusPending EmojiStatus = "PENDING" // record created, blob download queued
	EmojiStatusReady   EmojiStatus = "READY"   // blob stored, recallable
	EmojiStatusFailed  EmojiStatus = "FAILED"  // download failed after retries
)
