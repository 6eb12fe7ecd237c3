package access

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
)

// RoleCache caches resolved roles in redis for a short TTL. Every miss or
// redis failure falls through to a full resolution; the cache can only
// make things faster, never wronger than the TTL allows.
type RoleCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRoleCache creates a role cache. A nil client disables caching.
func NewRoleCache(client *redis.Client, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *RoleCache {
	return &RoleCache{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// cacheKey includes the workspace because workspace-scoped shares and
// document co-membership make the resolved role depend on which workspace
// the caller is operating in, not just who they are.
func cacheKey(domain, workspaceID, userID string, resourceType resources.ResourceType, resourceID string) string {
	return fmt.Sprintf("inkwell:role:%s:%s:%s:%s:%s", domain, workspaceID, userID, resourceType, resourceID)
}

// Get returns the cached role and whether the lookup hit
func (c *RoleCache) Get(ctx context.Context, domain, workspaceID, userID string, resourceType resources.ResourceType, resourceID string) (auth.Role, bool) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return auth.RoleNone, false
	}

	val, err := c.client.Get(ctx, cacheKey(domain, workspaceID, userID, resourceType, resourceID)).Result()
	if err == redis.Nil {
		c.miss()
		return auth.RoleNone, false
	}
	if err != nil {
		c.logger.WithError(err).Debug("role cache read failed")
		c.miss()
		return auth.RoleNone, false
	}

	role := auth.Role(val)
	if !role.Valid() && role != auth.RoleNone {
		c.miss()
		return auth.RoleNone, false
	}
	c.hit()
	return role, true
}

// Set stores a resolved role. Failures are logged and swallowed.
func (c *RoleCache) Set(ctx context.Context, domain, workspaceID, userID string, resourceType resources.ResourceType, resourceID string, role auth.Role) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}

	err := c.client.Set(ctx, cacheKey(domain, workspaceID, userID, resourceType, resourceID), string(role), c.ttl).Err()
	if err != nil {
		c.logger.WithError(err).Debug("role cache write failed")
	}
}

// Invalidate drops all cached roles for one resource across users. Called
// after share mutations so revocations take effect within one scan.
func (c *RoleCache) Invalidate(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string) {
	if c == nil || c.client == nil {
		return
	}

	pattern := fmt.Sprintf("inkwell:role:%s:*:*:%s:%s", domain, resourceType, resourceID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Debug("role cache scan failed")
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.logger.WithError(err).Debug("role cache invalidation failed")
		}
	}
}

func (c *RoleCache) hit() {
	if c.metrics != nil {
		c.metrics.RoleCacheHitsTotal.Inc()
	}
}

func (c *RoleCache) miss() {
	if c.metrics != nil {
		c.metrics.RoleCacheMissTotal.Inc()
	}
}
