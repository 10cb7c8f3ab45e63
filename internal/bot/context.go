package bot

import (
	"context"

	"memoji/internal/config"
	"memoji/internal/policy"
)

// GroupAdminSource answers the deferred group-admin question; in
// production it is the redis-backed gateway cache.
type GroupAdminSource interface {
	IsGroupAdmin(ctx context.Context, groupID, userID string) (bool, error)
}

// ContextBuilder turns a raw (user, group) pair into a policy
// ActorContext: static allowlist flags precomputed, the group-admin
// predicate deferred behind the cache.
type ContextBuilder struct {
	admins        map[string]bool
	allowedUsers  map[string]bool
	allowedGroups map[string]bool
	adminSource   GroupAdminSource
}

func NewContextBuilder(cfg config.BotConfig, adminSource GroupAdminSource) *ContextBuilder {
	return &ContextBuilder{
		admins:        toSet(cfg.AdminIDs),
		allowedUsers:  toSet(cfg.AllowedUsers),
		allowedGroups: toSet(cfg.AllowedGroups),
		adminSource:   adminSource,
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Actor builds the per-message actor context. The IsGroupAdmin
// closure captures the acting user so the matcher only needs a group.
func (b *ContextBuilder) Actor(userID, groupID string) *policy.ActorContext {
	actor := &policy.ActorContext{
		UserID:           userID,
		GroupID:          groupID,
		IsAdmin:          b.admins[userID],
		IsAllowlistUser:  b.allowedUsers[userID],
		IsAllowlistGroup: groupID != "" && b.allowedGroups[groupID],
	}
	if b.adminSource != nil {
		actor.IsGroupAdmin = func(ctx context.Context, gid string) (bool, error) {
			return b.adminSource.IsGroupAdmin(ctx, gid, userID)
		}
	}
	return actor
}

// Permitted reports whether the actor may interact with the bot at
// all. Admins always may.
func (b *ContextBuilder) Permitted(actor *policy.ActorContext) bool {
	return actor.IsAdmin || actor.IsAllowlistUser || actor.IsAllowlistGroup
}
