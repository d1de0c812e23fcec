package websession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultRedisPrefix = "session:"

// RedisStore implements the Store interface on Redis. Keys carry a TTL
// matching the session expiry.
type RedisStore struct {
	client          redis.UniversalClient
	prefix          string
	codec           *Codec
	maxSessionBytes int
	ownsClient      bool
	logger          zerolog.Logger
}

// RedisConfig holds configuration for the Redis store. When Client is nil a
// client is created for Addr.
type RedisConfig struct {
	Client          redis.UniversalClient
	Addr            string
	Prefix          string
	Codec           *Codec
	MaxSessionBytes int
	Logger          *zerolog.Logger
}

// NewRedisStore creates a Redis store on an existing client.
func NewRedisStore(client redis.UniversalClient, codec *Codec) *RedisStore {
	return NewRedisStoreWithConfig(RedisConfig{Client: client, Codec: codec})
}

// NewRedisStoreWithConfig creates a Redis store with custom configuration.
func NewRedisStoreWithConfig(cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	store := &RedisStore{
		client:          cfg.Client,
		prefix:          cfg.Prefix,
		codec:           cfg.Codec,
		maxSessionBytes: cfg.MaxSessionBytes,
		logger:          resolveLogger(cfg.Logger, "redis_store"),
	}
	if store.client == nil {
		store.client = redis.NewClient(&redis.Options{Addr: cfg.Addr})
		store.ownsClient = true
	}
	return store
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Read(ctx context.Context, id string) *Session {
	if !IsValidToken(id) {
		return nil
	}
	payload, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		logStoreError(s.logger, "read", id, fmt.Errorf("failed to get from redis: %w", err))
		return nil
	}

	if s.maxSessionBytes > 0 && len(payload) > s.maxSessionBytes {
		logStoreError(s.logger, "read", id, ErrSessionTooLarge)
		return nil
	}

	session, err := s.codec.Decode(payload)
	if err != nil {
		logStoreError(s.logger, "read", id, err)
		return nil
	}
	return session
}

func (s *RedisStore) Save(ctx context.Context, session *Session) bool {
	id := session.ID()
	ttl := time.Until(session.ExpiresAt())
	if ttl <= 0 {
		// Nothing to keep; drop any stale copy instead.
		return s.Remove(ctx, id)
	}

	payload, err := s.codec.Encode(session)
	if err != nil {
		logStoreError(s.logger, "save", id, err)
		return false
	}

	if s.maxSessionBytes > 0 && len(payload) > s.maxSessionBytes {
		logStoreError(s.logger, "save", id, ErrSessionTooLarge)
		return false
	}

	if err := s.client.Set(ctx, s.key(id), payload, ttl).Err(); err != nil {
		logStoreError(s.logger, "save", id, fmt.Errorf("failed to save to redis: %w", err))
		return false
	}
	return true
}

func (s *RedisStore) Remove(ctx context.Context, id string) bool {
	if !IsValidToken(id) {
		return false
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		logStoreError(s.logger, "remove", id, fmt.Errorf("failed to delete from redis: %w", err))
		return false
	}
	return true
}

// Clear is a no-op: Redis expires keys on its own.
func (s *RedisStore) Clear(ctx context.Context) bool {
	return true
}

// Close closes the client if the store created it.
func (s *RedisStore) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
