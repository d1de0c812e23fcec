package websession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rs/zerolog"
)

const defaultMemcachedTimeout = time.Second

// MemcachedStore implements the Store interface using Memcached.
type MemcachedStore struct {
	client          *memcache.Client
	codec           *Codec
	maxSessionBytes int
	logger          zerolog.Logger
}

// MemcachedConfig holds configuration for the Memcached store.
type MemcachedConfig struct {
	Servers         []string
	Codec           *Codec
	MaxSessionBytes int
	Timeout         time.Duration // Timeout for Memcached operations. Defaults to 0 (no timeout) if not set.
	Logger          *zerolog.Logger
}

// NewMemcachedStore creates a new MemcachedStore with a one second timeout.
func NewMemcachedStore(codec *Codec, servers ...string) *MemcachedStore {
	return NewMemcachedStoreWithConfig(MemcachedConfig{
		Servers: servers,
		Codec:   codec,
		Timeout: defaultMemcachedTimeout,
	})
}

// NewMemcachedStoreWithConfig creates a new MemcachedStore with custom configuration.
func NewMemcachedStoreWithConfig(cfg MemcachedConfig) *MemcachedStore {
	client := memcache.New(cfg.Servers...)
	client.Timeout = cfg.Timeout

	return &MemcachedStore{
		client:          client,
		codec:           cfg.Codec,
		maxSessionBytes: cfg.MaxSessionBytes,
		logger:          resolveLogger(cfg.Logger, "memcached_store"),
	}
}

// Read retrieves a session from Memcached.
func (s *MemcachedStore) Read(ctx context.Context, id string) *Session {
	if !IsValidToken(id) {
		return nil
	}
	item, err := s.client.Get(id)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		logStoreError(s.logger, "read", id, fmt.Errorf("failed to get from memcached: %w", err))
		return nil
	}

	if s.maxSessionBytes > 0 && len(item.Value) > s.maxSessionBytes {
		logStoreError(s.logger, "read", id, ErrSessionTooLarge)
		return nil
	}

	session, err := s.codec.Decode(string(item.Value))
	if err != nil {
		logStoreError(s.logger, "read", id, err)
		return nil
	}
	return session
}

// Save stores a session in Memcached until its expiry.
func (s *MemcachedStore) Save(ctx context.Context, session *Session) bool {
	id := session.ID()
	now := time.Now()
	// Nothing to keep; drop any stale copy instead.
	if session.HasExpiredAt(now) {
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

	err = s.client.Set(&memcache.Item{
		Key:        id,
		Value:      []byte(payload),
		Expiration: calculateMemcachedExpiration(now, session.ExpiresAt()),
	})
	if err != nil {
		logStoreError(s.logger, "save", id, fmt.Errorf("failed to save to memcached: %w", err))
		return false
	}
	return true
}

// Remove deletes a session from Memcached. A missing key counts as removed.
func (s *MemcachedStore) Remove(ctx context.Context, id string) bool {
	if !IsValidToken(id) {
		return false
	}
	err := s.client.Delete(id)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		logStoreError(s.logger, "remove", id, fmt.Errorf("failed to delete from memcached: %w", err))
		return false
	}
	return true
}

// Clear is a no-op for Memcached as it handles expiration automatically.
func (s *MemcachedStore) Clear(ctx context.Context) bool {
	return true
}

// Close is a no-op for Memcached client.
func (s *MemcachedStore) Close() error {
	return nil
}

// calculateMemcachedExpiration calculates the expiration value for Memcached.
// Memcached treats values > 30 days (60*60*24*30 seconds) as absolute Unix timestamps.
// Values <= 30 days are treated as a delta from the current time.
func calculateMemcachedExpiration(now time.Time, expiresAt time.Time) int32 {
	const maxDelta = 30 * 24 * 60 * 60 // 30 days in seconds

	duration := expiresAt.Sub(now)

	// A large delta would be read as a timestamp in 1970 (expired).
	if duration > maxDelta*time.Second {
		return int32(expiresAt.Unix())
	}

	// 0 means "never expire" to memcached, so round short lifetimes up.
	if duration < time.Second {
		return 1
	}
	return int32(duration.Seconds())
}
