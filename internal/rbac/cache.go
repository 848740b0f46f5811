package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"erpcore.org/internal/obs"
)

const permissionCacheVersionKey = "rbac:perms:version"

// PermissionCache memoizes a user's permission codenames in Redis. Keys embed
// a global version so Invalidate drops every entry at once. Redis failures
// fall through to the underlying source.
type PermissionCache struct {
	client *redis.Client
	source PermissionLookup
	ttl    time.Duration
	group  singleflight.Group
}

// NewPermissionCache wraps source. A nil client disables caching.
func NewPermissionCache(client *redis.Client, source PermissionLookup, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PermissionCache{client: client, source: source, ttl: ttl}
}

func (c *PermissionCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, permissionCacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

func (c *PermissionCache) key(ctx context.Context, userID string) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rbac:perms:v%d:%s", ver, userID), nil
}

// UserPermissions returns the sorted codenames granted to userID.
func (c *PermissionCache) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	if c.client == nil {
		return c.source.UserPermissions(ctx, userID)
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		c.warn("permission cache version read failed", err)
		return c.source.UserPermissions(ctx, userID)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var perms []string
		if err := json.Unmarshal(payload, &perms); err == nil {
			return perms, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.warn("permission cache read failed", err)
		return c.source.UserPermissions(ctx, userID)
	}

	// The load is shared by every waiter on key, so it must outlive the
	// caller that happened to start it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (any, error) {
		perms, err := c.source.UserPermissions(loadCtx, userID)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(perms)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
			c.warn("permission cache write failed", err)
		}
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

// UserHasPermission checks codename against the cached permission set.
func (c *PermissionCache) UserHasPermission(ctx context.Context, userID, codename string) (bool, error) {
	perms, err := c.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(perms, codename), nil
}

// Invalidate bumps the cache version, orphaning every cached permission set.
func (c *PermissionCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, permissionCacheVersionKey).Err()
}

func (c *PermissionCache) warn(msg string, err error) {
	obs.Log(obs.LevelWarn, msg, map[string]any{"error": err})
}
