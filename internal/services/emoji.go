package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"memoji/internal/events"
	"memoji/internal/models"
	"memoji/internal/policy"
	"memoji/internal/storage"
	"memoji/internal/utils"
	"memoji/internal/utils/logger"
)

var (
	// ErrNotAllowed means the policy engine denied the operation
	ErrNotAllowed = errors.New("operation not allowed")
	// ErrNotFound means no matching emoji is visible to the actor
	ErrNotFound = errors.New("emoji not found")
)

// DownloadEnqueuer defers the image download to a background worker.
// Nil is allowed; the service then downloads inline.
type DownloadEnqueuer interface {
	EnqueueDownload(ctx context.Context, emojiID, url, savedBy string) error
}

// EmojiService implements save/recall/remove of named images. Every
// operation consults the policy manager before touching the record
// store.
type EmojiService struct {
	repo     EmojiRepository
	store    storage.Provider
	policies *policy.Manager
	enqueue  DownloadEnqueuer
	log      *logger.Logger
}

func NewEmojiService(repo EmojiRepository, store storage.Provider, policies *policy.Manager, enqueue DownloadEnqueuer) *EmojiService {
	return &EmojiService{
		repo:     repo,
		store:    store,
		policies: policies,
		enqueue:  enqueue,
		log:      logger.New("emoji_service"),
	}
}

// SaveRequest carries everything needed to save one image.
type SaveRequest struct {
	Name      string
	Scope     policy.PermissionScope
	OwnerID   string
	GroupID   string
	SourceURL string
	SavedBy   string
}

func targetFor(scope policy.PermissionScope, ownerID, groupID string) *policy.TargetContext {
	target := &policy.TargetContext{Scope: scope}
	switch scope {
	case policy.ScopePersonal:
		target.OwnerID = ownerID
	case policy.ScopeGroup:
		target.GroupID = groupID
	}
	return target
}

// recordFields returns the owner/group columns for a scope; fields
// that don't belong to the scope stay empty.
func recordFields(scope policy.PermissionScope, ownerID, groupID string) (string, string) {
	switch scope {
	case policy.ScopePersonal:
		return ownerID, ""
	case policy.ScopeGroup:
		return "", groupID
	default:
		return "", ""
	}
}

// Save stores a new named image under the requested scope, replacing
// an existing record with the same name. The blob download runs in
// the background when an enqueuer is wired, inline otherwise.
func (s *EmojiService) Save(ctx context.Context, actor *policy.ActorContext, req SaveRequest) (*models.Emoji, error) {
	target := targetFor(req.Scope, req.OwnerID, req.GroupID)
	if !s.policies.IsAllowed(ctx, actor, target, policy.ActionCreate) {
		return nil, ErrNotAllowed
	}

	ownerID, groupID := recordFields(req.Scope, req.OwnerID, req.GroupID)
	meta, err := utils.MapToJSON(map[string]string{
		"savedIn": req.GroupID,
	})
	if err != nil {
		return nil, s.log.Error("Failed to build emoji metadata", err)
	}
	emoji := &models.Emoji{
		Name:      req.Name,
		Scope:     string(req.Scope),
		OwnerID:   ownerID,
		GroupID:   groupID,
		SourceURL: req.SourceURL,
		SavedBy:   req.SavedBy,
		Status:    models.EmojiStatusPending,
		Meta:      meta,
	}
	if err := s.repo.Upsert(ctx, emoji); err != nil {
		return nil, s.log.Error("Failed to save emoji record %s", err, req.Name)
	}

	if s.enqueue != nil {
		if err := s.enqueue.EnqueueDownload(ctx, emoji.ID, req.SourceURL, req.SavedBy); err != nil {
			s.log.Warn("Failed to enqueue download for %s, falling back to inline: %v", emoji.ID, err)
		} else {
			events.Emit(events.EmojiCreated, emoji)
			return emoji, nil
		}
	}

	if err := s.CompleteDownload(ctx, emoji.ID, req.SourceURL); err != nil {
		return nil, err
	}
	emoji.Status = models.EmojiStatusReady
	events.Emit(events.EmojiCreated, emoji)
	return emoji, nil
}

// CompleteDownload fetches the blob and flips the record to READY.
// Called inline or from the background task handler.
func (s *EmojiService) CompleteDownload(ctx context.Context, emojiID, url string) error {
	fileName, err := s.store.Store(ctx, url, emojiID)
	if err != nil {
		if statusErr := s.repo.UpdateStatus(ctx, emojiID, models.EmojiStatusFailed, ""); statusErr != nil {
			s.log.Warn("Failed to mark emoji %s failed: %v", emojiID, statusErr)
		}
		return err
	}
	return s.repo.UpdateStatus(ctx, emojiID, models.EmojiStatusReady, fileName)
}

// Find recalls an emoji by name. Scopes are searched in precedence
// order personal, group, global; a scope the actor is not allowed to
// read is skipped, not an error.
func (s *EmojiService) Find(ctx context.Context, actor *policy.ActorContext, name string) (*models.Emoji, error) {
	type candidate struct {
		scope   policy.PermissionScope
		ownerID string
		groupID string
	}
	candidates := []candidate{
		{scope: policy.ScopePersonal, ownerID: actor.UserID},
	}
	if actor.GroupID != "" {
		candidates = append(candidates, candidate{scope: policy.ScopeGroup, groupID: actor.GroupID})
	}
	candidates = append(candidates, candidate{scope: policy.ScopeGlobal})

	for _, c := range candidates {
		emoji, err := s.repo.FindByName(ctx, name, string(c.scope), c.ownerID, c.groupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, s.log.Error("Failed to look up emoji %s", err, name)
		}
		if emoji.Status != models.EmojiStatusReady {
			continue
		}
		target := targetFor(c.scope, c.ownerID, c.groupID)
		if !s.policies.IsAllowed(ctx, actor, target, policy.ActionRead) {
			continue
		}
		return emoji, nil
	}
	return nil, ErrNotFound
}

// Fetch returns the stored image bytes for a record
func (s *EmojiService) Fetch(ctx context.Context, emoji *models.Emoji) ([]byte, error) {
	return s.store.Fetch(ctx, emoji.FileName)
}

// PublicURL returns a gateway-fetchable URL for the blob, or ""
func (s *EmojiService) PublicURL(ctx context.Context, emoji *models.Emoji) (string, error) {
	return s.store.PublicURL(ctx, emoji.FileName)
}

// Remove soft-deletes a named emoji in the given scope. The blob is
// purged later by the cleanup task.
func (s *EmojiService) Remove(ctx context.Context, actor *policy.ActorContext, name string, scope policy.PermissionScope) (*models.Emoji, error) {
	ownerID, groupID := recordFields(scope, actor.UserID, actor.GroupID)
	target := targetFor(scope, ownerID, groupID)
	if !s.policies.IsAllowed(ctx, actor, target, policy.ActionRemove) {
		return nil, ErrNotAllowed
	}

	emoji, err := s.repo.FindByName(ctx, name, string(scope), ownerID, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.log.Error("Failed to look up emoji %s", err, name)
	}

	if err := s.repo.SoftDelete(ctx, emoji.ID); err != nil {
		return nil, s.log.Error("Failed to remove emoji %s", err, name)
	}
	events.Emit(events.EmojiRemoved, emoji)
	return emoji, nil
}

// List returns the emoji names visible to the actor in one scope.
func (s *EmojiService) List(ctx context.Context, actor *policy.ActorContext, scope policy.PermissionScope, page, limit int) ([]models.Emoji, int64, error) {
	ownerID, groupID := recordFields(scope, actor.UserID, actor.GroupID)
	target := targetFor(scope, ownerID, groupID)
	if !s.policies.IsAllowed(ctx, actor, target, policy.ActionRead) {
		return nil, 0, ErrNotAllowed
	}
	return s.repo.List(ctx, string(scope), ownerID, groupID, page, limit)
}

// PurgeDeleted removes blobs and rows of records soft-deleted before
// the cutoff. Used by the periodic cleanup task.
func (s *EmojiService) PurgeDeleted(ctx context.Context, retention time.Duration) (int, error) {
	stale, err := s.repo.FindDeletedBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, s.log.Error("Failed to list deleted emojis", err)
	}

	purged := 0
	for _, emoji := range stale {
		if emoji.FileName != "" {
			if err := s.store.Remove(ctx, emoji.FileName); err != nil {
				s.log.Warn("Failed to remove blob %s, will retry next run: %v", emoji.FileName, err)
				continue
			}
		}
		if err := s.repo.Purge(ctx, emoji.ID); err != nil {
			s.log.Warn("Failed to purge record %s: %v", emoji.ID, err)
			continue
		}
		purged++
	}
	if purged > 0 {
		s.log.Info("Purged %d deleted emojis", purged)
	}
	return purged, nil
}
