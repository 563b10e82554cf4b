package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recast/recast/internal/model"
)

const (
	// identityCachePrefix is the Redis key prefix for API key identities.
	identityCachePrefix = "auth:identity:"
	// keyIndexPrefix maps an API key ID to its identity cache key.
	keyIndexPrefix = "auth:keyidx:"
	// identityCacheTTL bounds how long a revoked key may keep working
	// when eviction fails.
	identityCacheTTL = 5 * time.Minute
)

// cachedIdentity is the Redis representation of an API key identity.
type cachedIdentity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Plan   string `json:"plan"`
	KeyID  string `json:"key_id"`
}

func encodeIdentity(id *model.Identity) ([]byte, error) {
	return json.Marshal(cachedIdentity{
		UserID: id.UserID,
		Email:  id.Email,
		Plan:   id.Plan,
		KeyID:  id.KeyID,
	})
}

func decodeIdentity(data []byte) (*model.Identity, bool) {
	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil || cached.UserID == "" {
		return nil, false
	}
	return &model.Identity{
		UserID: cached.UserID,
		Email:  cached.Email,
		Plan:   cached.Plan,
		Method: model.AuthMethodAPIKey,
		KeyID:  cached.KeyID,
	}, true
}

// GetIdentity retrieves a cached API key identity by key hash.
// Returns nil on a miss.
func (c *Cache) GetIdentity(ctx context.Context, cacheKey string) (*model.Identity, error) {
	data, err := c.client.Get(ctx, identityCachePrefix+cacheKey).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	id, ok := decodeIdentity(data)
	if !ok {
		// Corrupted cache entry - treat as miss
		return nil, nil
	}
	return id, nil
}

// SetIdentity caches an API key identity and indexes it by key ID.
func (c *Cache) SetIdentity(ctx context.Context, cacheKey string, id *model.Identity) error {
	data, err := encodeIdentity(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, identityCachePrefix+cacheKey, data, identityCacheTTL)
	if id.KeyID != "" {
		pipe.Set(ctx, keyIndexPrefix+id.KeyID, cacheKey, identityCacheTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// EvictAPIKey drops the cached identity of a key. Called on revocation.
func (c *Cache) EvictAPIKey(ctx context.Context, keyID string) error {
	indexKey := keyIndexPrefix + keyID
	cacheKey, err := c.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read key index: %w", err)
	}
	return c.client.Del(ctx, identityCachePrefix+cacheKey, indexKey).Err()
}
