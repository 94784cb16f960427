package permission

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"famledger/internal/membership"
	platformredis "famledger/internal/platform/redis"
	"famledger/internal/policy"
)

// CachedGrants decorates a GrantStore with a Redis cache. Grants are
// read-mostly; cache failures fall back to the underlying store so
// authorization never fails because the cache is down.
type CachedGrants struct {
	inner  GrantStore
	client *platformredis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewCachedGrants(inner GrantStore, client *platformredis.Client, logger *slog.Logger) *CachedGrants {
	return &CachedGrants{
		inner:  inner,
		client: client,
		logger: logger,
		ttl:    policy.PermissionCacheTTL,
	}
}

func cacheKey(role membership.Role) string {
	return "famledger:grants:" + string(role)
}

func (c *CachedGrants) EnabledPermissions(ctx context.Context, role membership.Role) (map[Permission]bool, error) {
	if cached, ok := c.lookup(ctx, role); ok {
		return cached, nil
	}

	enabled, err := c.inner.EnabledPermissions(ctx, role)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, role, enabled)
	return enabled, nil
}

func (c *CachedGrants) lookup(ctx context.Context, role membership.Role) (map[Permission]bool, bool) {
	raw, err := c.client.Get(ctx, cacheKey(role)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.logger.WarnContext(ctx, "grant cache read failed", "role", role, "error", err)
		}
		return nil, false
	}

	var perms []Permission
	if err := json.Unmarshal(raw, &perms); err != nil {
		c.logger.WarnContext(ctx, "grant cache entry corrupt", "role", role, "error", err)
		return nil, false
	}
	enabled := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		enabled[p] = true
	}
	return enabled, true
}

func (c *CachedGrants) fill(ctx context.Context, role membership.Role, enabled map[Permission]bool) {
	perms := make([]Permission, 0, len(enabled))
	for p := range enabled {
		perms = append(perms, p)
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(role), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "grant cache write failed", "role", role, "error", err)
	}
}
