package cache

import (
	"context"
	"errors"
	"time"

	"socbot/internal/models"

	"github.com/redis/go-redis/v9"
)

// TokenCache holds Discord OAuth access tokens keyed per user. Entries live
// only as long as the provider's expires_in; a miss forces a refresh grant.
type TokenCache struct {
	rdb *redis.Client
}

// NewTokenCache returns a TokenCache backed by the given Redis client.
func NewTokenCache(rdb *redis.Client) *TokenCache {
	return &TokenCache{rdb: rdb}
}

// Get returns the cached access token for the user, or ok=false on a miss.
func (c *TokenCache) Get(ctx context.Context, userID string) (string, bool, error) {
	token, err := c.rdb.Get(ctx, AccessTokenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, models.NewInternalError(err)
	}
	return token, true, nil
}

// Set stores the access token for the user with the given TTL.
func (c *TokenCache) Set(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, AccessTokenKey(userID), token, ttl).Err(); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Invalidate drops the cached token for the user, forcing the next access to
// go through a refresh grant.
func (c *TokenCache) Invalidate(ctx context.Context, userID string) {
	c.rdb.Del(ctx, AccessTokenKey(userID))
}
