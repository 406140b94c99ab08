package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/legit-games/authcode-service/models"
	"github.com/redis/go-redis/v9"
)

// RedisTokenStore stores access and refresh tokens in Redis, keyed by HashToken.
// Records expire natively with the token they mirror.
type RedisTokenStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTokenStore connects to a single Redis node at addr.
func NewRedisTokenStore(addr, keyPrefix string) *RedisTokenStore {
	return NewRedisTokenStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}), keyPrefix)
}

// NewRedisTokenStoreWithClient creates a RedisTokenStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisTokenStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisTokenStore {
	if keyPrefix == "" {
		keyPrefix = "authcode:"
	}
	return &RedisTokenStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisTokenStore) accessKey(token string) string {
	return s.keyPrefix + "access:" + HashToken(token)
}

func (s *RedisTokenStore) refreshKey(token string) string {
	return s.keyPrefix + "refresh:" + HashToken(token)
}

func (s *RedisTokenStore) CreateAccess(ctx context.Context, t *models.AccessToken) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.accessKey(t.Token), data, tokenTTL(t.ExpiresAt)).Err()
}

func (s *RedisTokenStore) GetAccess(ctx context.Context, token string) (*models.AccessToken, error) {
	var t models.AccessToken
	if err := s.getJSON(ctx, s.accessKey(token), &t); err != nil {
		return nil, err
	}
	t.Token = token
	return &t, nil
}

func (s *RedisTokenStore) DeleteAccess(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.accessKey(token)).Err()
}

func (s *RedisTokenStore) CreateRefresh(ctx context.Context, t *models.RefreshToken) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.refreshKey(t.Token), data, tokenTTL(t.ExpiresAt)).Err()
}

func (s *RedisTokenStore) GetRefresh(ctx context.Context, token string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := s.getJSON(ctx, s.refreshKey(token), &t); err != nil {
		return nil, err
	}
	t.Token = token
	return &t, nil
}

// RevokeRefresh flips the revoked flag under WATCH so a concurrent delete
// or rewrite aborts the transaction instead of resurrecting the record.
func (s *RedisTokenStore) RevokeRefresh(ctx context.Context, token string) error {
	key := s.refreshKey(token)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var t models.RefreshToken
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to unmarshal refresh token: %w", err)
		}
		t.Revoked = true
		updated, err := json.Marshal(&t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}, key)
}

func (s *RedisTokenStore) DeleteRefresh(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.refreshKey(token)).Err()
}

func (s *RedisTokenStore) getJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// Ping checks connectivity.
func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
