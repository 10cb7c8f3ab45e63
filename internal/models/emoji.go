package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Emoji is a saved image recallable by name within its ownership
// scope. OwnerID is set for personal scope, GroupID for group scope;
// global records carry neither.
type Emoji struct {
	Base
	Name      string         `gorm:"not null;index" json:"name"`
	Scope     string         `gorm:"not null;index" json:"scope"` // global, group, personal
	OwnerID   string         `gorm:"index" json:"ownerId"`
	GroupID   string         `gorm:"index" json:"groupId"`
	FileName  string         `json:"fileName"` // storage object key
	SourceURL string         `json:"sourceUrl"`
	SavedBy   string         `gorm:"not null" json:"savedBy"`
	Status    EmojiStatus    `gorm:"not null;default:PENDING" json:"status"`
	Meta      datatypes.JSON `json:"meta,omitempty"` // platform extras: message type, file size, sub type
}

// GetEmojiByID retrieves a live emoji record by id
func GetEmojiByID(id string, db *gorm.DB) (*Emoji, error) {
	emoji := &Emoji{}
	if err := db.Where("id = ? AND is_deleted = false", id).First(emoji).Error; err != nil {
		return nil, err
	}
	return emoji, nil
}
