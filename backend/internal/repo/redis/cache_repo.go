package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

const defaultIdentityTTL = 5 * time.Minute

// IdentitySource is the authoritative directory behind the cache.
type IdentitySource interface {
	GetIdentity(ctx context.Context, userID int64) (model.Identity, error)
	Exists(ctx context.Context, userID int64) (bool, error)
}

// IdentityCache is a read-through cache over the profile directory. Redis failures
// fall back to the source.
type IdentityCache struct {
	client *goredis.Client
	source IdentitySource
	ttl    time.Duration
}

func NewIdentityCache(client *goredis.Client, source IdentitySource, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = defaultIdentityTTL
	}
	return &IdentityCache{
		client: client,
		source: source,
		ttl:    ttl,
	}
}

func (c *IdentityCache) GetIdentity(ctx context.Context, userID int64) (model.Identity, error) {
	if c.source == nil {
		return model.Identity{}, fmt.Errorf("identity source is nil")
	}
	if c.client == nil {
		return c.source.GetIdentity(ctx, userID)
	}

	key := identityKey(userID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var identity model.Identity
		if jsonErr := json.Unmarshal(raw, &identity); jsonErr == nil {
			return identity, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		return c.source.GetIdentity(ctx, userID)
	}

	identity, err := c.source.GetIdentity(ctx, userID)
	if err != nil {
		return model.Identity{}, err
	}

	if payload, err := json.Marshal(identity); err == nil {
		_ = c.client.Set(ctx, key, payload, c.ttl).Err()
	}

	return identity, nil
}

func (c *IdentityCache) Exists(ctx context.Context, userID int64) (bool, error) {
	if c.source == nil {
		return false, fmt.Errorf("identity source is nil")
	}
	if c.client != nil {
		n, err := c.client.Exists(ctx, identityKey(userID)).Result()
		if err == nil && n > 0 {
			return true, nil
		}
	}
	return c.source.Exists(ctx, userID)
}

func (c *IdentityCache) Invalidate(ctx context.Context, userID int64) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, identityKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate identity cache: %w", err)
	}
	return nil
}

func identityKey(userID int64) string {
	return "identity:" + strconv.FormatInt(userID, 10)
}
