package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

const (
	// CredentialKey is the Redis key the credential pair is mirrored under.
	CredentialKey = "storefront_credentials"
	// credentialTTL bounds how long a mirrored pair outlives the process. The
	// refresh token's own expiry still governs whether it is accepted.
	credentialTTL = 24 * time.Hour
)

// RedisPairCache mirrors the credential pair into Redis so a restart does not
// force a re-login while the refresh token is still good.
type RedisPairCache struct {
	Client *redis.Client
}

func NewRedisPairCache(client *redis.Client) *RedisPairCache {
	return &RedisPairCache{Client: client}
}

func (c *RedisPairCache) Load(ctx context.Context) (*models.CredentialPair, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	raw, err := c.Client.Get(ctx, CredentialKey).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get credentials from Redis: %w", err)
	}

	var pair models.CredentialPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached credentials: %w", err)
	}

	// A mirrored pair whose refresh token is already dead is useless; treat
	// it as absent rather than handing back something that forces a logout.
	if TokenExpired(pair.RefreshToken, 0, time.Now()) {
		return nil, nil
	}

	return &pair, nil
}

func (c *RedisPairCache) Save(ctx context.Context, pair models.CredentialPair) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	ttl := credentialTTL
	if exp, err := TokenExpiry(pair.RefreshToken); err == nil {
		if until := time.Until(exp); until > 0 && until < ttl {
			ttl = until
		}
	}

	if err := c.Client.Set(ctx, CredentialKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store credentials in Redis: %w", err)
	}

	return nil
}

func (c *RedisPairCache) Clear(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return c.Client.Del(ctx, CredentialKey).Err()
}
