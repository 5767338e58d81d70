package varcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

const (
	redisKeyPrefix = "gatehouse:perm:"
	redisTagPrefix = "gatehouse:permtag:"
)

// Redis is the durable cache tier. Values are stored as JSON with a TTL
// derived from their max-age; every write is recorded in one Redis set per
// cache tag so InvalidateTags can drop all keys carrying a tag.
type Redis struct {
	client   *redis.Client
	resolver Resolver
}

// NewRedis constructs the durable tier on an existing client.
func NewRedis(client *redis.Client, resolver Resolver) *Redis {
	return &Redis{client: client, resolver: resolver}
}

// Get returns the stored value for the varied key.
func (r *Redis) Get(ctx context.Context, baseKey string, contexts []string) (*permissions.CalculatedPermissions, bool, error) {
	key, err := buildKey(ctx, r.resolver, baseKey, contexts)
	if err != nil {
		return nil, false, err
	}

	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("varcache: redis get: %w", err)
	}

	var value permissions.CalculatedPermissions
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("varcache: decode cached permissions: %w", err)
	}
	return &value, true, nil
}

// Set stores the value under the varied key and indexes it by cache tag.
func (r *Redis) Set(ctx context.Context, baseKey string, value *permissions.CalculatedPermissions, contexts []string) error {
	key, err := buildKey(ctx, r.resolver, baseKey, contexts)
	if err != nil {
		return err
	}

	// A zero max-age means instantly stale; go-redis reads a zero TTL as
	// "keep forever", so the value must not be written at all.
	maxAge := value.MaxAge()
	if maxAge == 0 {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("varcache: encode permissions: %w", err)
	}

	var ttl time.Duration
	if maxAge != permissions.MaxAgePermanent {
		ttl = time.Duration(maxAge) * time.Second
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("varcache: redis set: %w", err)
	}
	for _, tag := range value.CacheTags() {
		if err := r.client.SAdd(ctx, redisTagPrefix+tag, redisKeyPrefix+key).Err(); err != nil {
			return fmt.Errorf("varcache: index tag %q: %w", tag, err)
		}
	}
	return nil
}

// InvalidateTags deletes every key written with any of the given tags.
func (r *Redis) InvalidateTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		set := redisTagPrefix + tag
		keys, err := r.client.SMembers(ctx, set).Result()
		if err != nil {
			return fmt.Errorf("varcache: read tag set %q: %w", tag, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("varcache: invalidate tag %q: %w", tag, err)
			}
		}
		if err := r.client.Del(ctx, set).Err(); err != nil {
			return fmt.Errorf("varcache: drop tag set %q: %w", tag, err)
		}
	}
	return nil
}
