package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"memoji/internal/models"
)

// EmojiRepository is the tabular record store of saved images. The
// gorm implementation is the production one; tests use an in-memory
// fake.
type EmojiRepository interface {
	Upsert(ctx context.Context, emoji *models.Emoji) error
	Get(ctx context.Context, id string) (*models.Emoji, error)
	FindByName(ctx context.Context, name, scope, ownerID, groupID string) (*models.Emoji, error)
	List(ctx context.Context, scope, ownerID, groupID string, page, limit int) ([]models.Emoji, int64, error)
	SoftDelete(ctx context.Context, id string) error
	FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]models.Emoji, error)
	Purge(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.EmojiStatus, fileName string) error
}

type gormEmojiRepository struct {
	db *gorm.DB
}

func NewEmojiRepository(db *gorm.DB) EmojiRepository {
	return &gormEmojiRepository{db: db}
}

func (r *gormEmojiRepository) Upsert(ctx context.Context, emoji *models.Emoji) error {
	existing := &models.Emoji{}
	err := r.db.WithContext(ctx).
		Where("name = ? AND scope = ? AND owner_id = ? AND group_id = ? AND is_deleted = false",
			emoji.Name, emoji.Scope, emoji.OwnerID, emoji.GroupID).
		First(existing).Error
	if err == nil {
		emoji.ID = existing.ID
		return r.db.WithContext(ctx).Model(existing).Omit("id").Updates(emoji).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(emoji).Error
}

func (r *gormEmojiRepository) Get(ctx context.Context, id string) (*models.Emoji, error) {
	emoji := &models.Emoji{}
	if err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = false", id).First(emoji).Error; err != nil {
		return nil, err
	}
	return emoji, nil
}

func (r *gormEmojiRepository) FindByName(ctx context.Context, name, scope, ownerID, groupID string) (*models.Emoji, error) {
	query := r.db.WithContext(ctx).
		Where("name = ? AND scope = ? AND is_deleted = false", name, scope)
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if groupID != "" {
		query = query.Where("group_id = ?", groupID)
	}

	emoji := &models.Emoji{}
	if err := query.First(emoji).Error; err != nil {
		return nil, err
	}
	return emoji, nil
}

func (r *gormEmojiRepository) List(ctx context.Context, scope, ownerID, groupID string, page, limit int) ([]models.Emoji, int64, error) {
	var emojis []models.Emoji
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Emoji{}).
		Where("scope = ? AND is_deleted = false", scope)
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if groupID != "" {
		query = query.Where("group_id = ?", groupID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	if err := query.Order("name asc").Find(&emojis).Error; err != nil {
		return nil, 0, err
	}
	return emojis, total, nil
}

func (r *gormEmojiRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Emoji{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("deleted_at", time.Now()).
		Update("is_deleted", true).Error
}

func (r *gormEmojiRepository) FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]models.Emoji, error) {
	var emojis []models.Emoji
	err := r.db.WithContext(ctx).
		Where("is_deleted = true AND deleted_at < ?", cutoff).
		Find(&emojis).Error
	return emojis, err
}

func (r *gormEmojiRepository) Purge(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&models.Emoji{}, "id = ?", id).Error
}

func (r *gormEmojiRepository) UpdateStatus(ctx context.Context, id string, status models.EmojiStatus, fileName string) error {
	updates := map[string]interface{}{"status": status}
	if fileName != "" {
		updates["file_name"] = fileName
	}
	return r.db.WithContext(ctx).Model(&models.Emoji{}).
		Where("id = ?", id).Updates(updates).Error
}
