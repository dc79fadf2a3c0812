package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore keeps the denylist of revoked token ids until their natural expiry.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type redisTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenStore returns a Redis-backed TokenStore. Keys are "<prefix>:revoked:<jti>".
func NewRedisTokenStore(client *redis.Client, prefix string) TokenStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "attendance"
	}
	return &redisTokenStore{client: client, prefix: prefix}
}

func (s *redisTokenStore) key(tokenID string) string {
	return s.prefix + ":revoked:" + tokenID
}

func (s *redisTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return nil
	}
	if ttl <= 0 {
		// already expired; the signature check rejects it anyway
		return nil
	}
	return s.client.Set(ctx, s.key(tokenID), "1", ttl).Err()
}

func (s *redisTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
