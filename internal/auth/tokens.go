package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "gatehouse:token:"

// TokenStore persists opaque bearer tokens in Redis with a sliding TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue creates a fresh token mapped to the account ID.
func (t *TokenStore) Issue(ctx context.Context, accountID int64) (string, error) {
	token := uuid.NewString()
	if err := t.client.Set(ctx, tokenKeyPrefix+token, accountID, t.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Lookup resolves a token to its account ID, refreshing the TTL.
func (t *TokenStore) Lookup(ctx context.Context, token string) (int64, error) {
	accountID, err := t.client.Get(ctx, tokenKeyPrefix+token).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, fmt.Errorf("auth: lookup token: %w", err)
	}
	if err := t.client.Expire(ctx, tokenKeyPrefix+token, t.ttl).Err(); err != nil {
		return 0, fmt.Errorf("auth: refresh token ttl: %w", err)
	}
	return accountID, nil
}

// Revoke deletes a token.
func (t *TokenStore) Revoke(ctx context.Context, token string) error {
	if err := t.client.Del(ctx, tokenKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}
