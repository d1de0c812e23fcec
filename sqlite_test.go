package websession

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t testing.TB, cfg SQLiteConfig) *SQLiteStore {
	t.Helper()
	if cfg.DSN == "" {
		cfg.DSN = filepath.Join(t.TempDir(), "sessions.db")
	}
	if cfg.Codec == nil {
		cfg.Codec = newTestCodec(t)
	}
	store, err := NewSQLiteStoreWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, SQLiteConfig{})

	s, err := NewSession(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)
	s.Set("foo", "bar").Set("count", 42)

	require.True(t, store.Save(ctx, s))

	got := store.Read(ctx, s.ID())
	require.NotNil(t, got)
	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, s.Expiry(), got.Expiry())
	assert.Equal(t, s.CSRF(), got.CSRF())
	assert.Equal(t, "bar", got.Get("foo", nil))

	// Upsert replaces the record.
	got.Set("foo", "baz")
	require.True(t, store.Save(ctx, got))
	assert.Equal(t, "baz", store.Read(ctx, s.ID()).Get("foo", nil))

	require.True(t, store.Remove(ctx, s.ID()))
	assert.Nil(t, store.Read(ctx, s.ID()))

	assert.Nil(t, store.Read(ctx, "invalid"))
	assert.False(t, store.Remove(ctx, "invalid"))
}

func TestSQLiteStore_Clear(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, SQLiteConfig{})

	live, err := NewSession(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)
	expired, err := NewSession(time.Now().Add(-time.Hour).UnixMilli())
	require.NoError(t, err)
	require.True(t, store.Save(ctx, live))
	require.True(t, store.Save(ctx, expired))

	// Read leaves the expiry decision to the manager.
	require.NotNil(t, store.Read(ctx, expired.ID()))

	require.True(t, store.Clear(ctx))
	assert.Nil(t, store.Read(ctx, expired.ID()))
	assert.NotNil(t, store.Read(ctx, live.ID()))
}

func TestSQLiteStore_MaxSessionBytes(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "limit.db")
	codec := newTestCodec(t)

	unlimited := newTestSQLiteStore(t, SQLiteConfig{DSN: dsn, Codec: codec})
	limited := newTestSQLiteStore(t, SQLiteConfig{DSN: dsn, Codec: codec, MaxSessionBytes: 500})

	s, err := NewSession(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)
	s.Set("data", strings.Repeat("A", 1024))

	assert.False(t, limited.Save(ctx, s))
	require.True(t, unlimited.Save(ctx, s))
	assert.Nil(t, limited.Read(ctx, s.ID()))
}

func TestWithPragma(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=busy_timeout=5000", withPragma("a.db", "busy_timeout", "busy_timeout=5000"))
	assert.Equal(t, "a.db?x=1&_pragma=busy_timeout=5000", withPragma("a.db?x=1", "busy_timeout", "busy_timeout=5000"))
	assert.Equal(t, "a.db?_pragma=busy_timeout=10", withPragma("a.db?_pragma=busy_timeout=10", "busy_timeout", "busy_timeout=5000"))
}

func BenchmarkSQLiteStore_Save(b *testing.B) {
	store := newTestSQLiteStore(b, SQLiteConfig{})
	ctx := context.Background()
	s, err := NewSession(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Set("count", i)
		if !store.Save(ctx, s) {
			b.Fatal("failed to save")
		}
	}
}

func BenchmarkSQLiteStore_Read(b *testing.B) {
	store := newTestSQLiteStore(b, SQLiteConfig{})
	ctx := context.Background()
	s, err := NewSession(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(b, err)
	require.True(b, store.Save(ctx, s))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if store.Read(ctx, s.ID()) == nil {
			b.Fatal("failed to read")
		}
	}
}
