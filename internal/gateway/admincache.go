package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"memoji/internal/utils/logger"
)

const (
	adminCachePositiveTTL = 60 * time.Second
	// failed or negative lookups expire sooner so a recovered gateway
	// (or a freshly promoted admin) is picked up quickly
	adminCacheNegativeTTL = 10 * time.Second
)

// MemberSource is the slice of Client the cache needs.
type MemberSource interface {
	GetGroupMemberInfo(ctx context.Context, groupID, userID string) (*GroupMember, error)
}

// AdminCache answers "is this user an admin of that group" with a
// redis-backed time-boxed cache in front of the gateway. A lookup
// failure resolves to not-an-admin (fail closed) and is cached with
// the shorter negative TTL; it is never surfaced as an error.
type AdminCache struct {
	rdb    *redis.Client
	source MemberSource
	log    *logger.Logger
}

func NewAdminCache(rdb *redis.Client, source MemberSource) *AdminCache {
	return &AdminCache{
		rdb:    rdb,
		source: source,
		log:    logger.New("admin_cache"),
	}
}

func adminCacheKey(groupID, userID string) string {
	return fmt.Sprintf("memoji:groupadmin:%s:%s", groupID, userID)
}

// IsGroupAdmin reports whether userID administrates groupID.
func (c *AdminCache) IsGroupAdmin(ctx context.Context, groupID, userID string) (bool, error) {
	key := adminCacheKey(groupID, userID)

	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		return cached == "1", nil
	} else if err != redis.Nil {
		c.log.Warn("Admin cache read failed for %s: %v", key, err)
	}

	member, err := c.source.GetGroupMemberInfo(ctx, groupID, userID)
	if err != nil {
		c.log.Warn("Group admin lookup failed for %s in %s, treating as non-admin: %v", userID, groupID, err)
		c.set(ctx, key, false, adminCacheNegativeTTL)
		return false, nil
	}

	isAdmin := member.IsAdmin()
	ttl := adminCacheNegativeTTL
	if isAdmin {
		ttl = adminCachePositiveTTL
	}
	c.set(ctx, key, isAdmin, ttl)
	return isAdmin, nil
}

func (c *AdminCache) set(ctx context.Context, key string, isAdmin bool, ttl time.Duration) {
	value := "0"
	if isAdmin {
		value = "1"
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("Admin cache write failed for %s: %v", key, err)
	}
}
