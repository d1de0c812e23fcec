package websession

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store defines the interface for session persistence. Implementations
// never return errors from the session operations: failures are logged and
// reported as false or nil, so a corrupt record looks like a missing one.
type Store interface {
	// Save persists the session, reporting whether it succeeded.
	Save(ctx context.Context, s *Session) bool
	// Read returns the session stored under id, or nil.
	Read(ctx context.Context, id string) *Session
	// Remove deletes the session stored under id.
	Remove(ctx context.Context, id string) bool
	// Clear removes expired sessions from the store.
	Clear(ctx context.Context) bool
	// Close releases the resources held by the store.
	Close() error
}

// DefaultDriver is the driver used when the configured one is not registered.
const DefaultDriver = "file"

// StoreFactory builds a store from application settings.
type StoreFactory func(settings ConfigReader) (Store, error)

// Registry maps driver names to store factories. It is passed explicitly to
// each Manager; there is no package-level registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StoreFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StoreFactory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory StoreFactory) *Registry {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
	return r
}

// RegisterShared registers a factory that runs at most once; every later
// resolution gets the same store. Use it for pooled backends such as SQL
// databases, which must not be reopened per request.
func (r *Registry) RegisterShared(name string, factory StoreFactory) *Registry {
	var (
		once  sync.Once
		store Store
		err   error
	)
	return r.Register(name, func(settings ConfigReader) (Store, error) {
		once.Do(func() {
			store, err = factory(settings)
		})
		return store, err
	})
}

// Resolve returns the factory for name, falling back to DefaultDriver. The
// returned name is the driver actually selected.
func (r *Registry) Resolve(name string) (string, StoreFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[name]; ok {
		return name, f, nil
	}
	if f, ok := r.factories[DefaultDriver]; ok {
		return DefaultDriver, f, nil
	}
	return "", nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
}

// Drivers lists the registered driver names in order.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDefaultRegistry registers the built-in drivers, reading their
// connection settings from the session.* configuration keys. The file
// driver is created per resolution; the others are shared.
func NewDefaultRegistry(codec *Codec) *Registry {
	r := NewRegistry()
	r.Register("file", func(settings ConfigReader) (Store, error) {
		return NewFileStoreWithConfig(FileConfig{
			Dir:             settingString(settings, "session.files", "storage/sessions"),
			Codec:           codec,
			MaxSessionBytes: settingInt(settings, "session.max_bytes", 0),
		})
	})
	r.RegisterShared("sqlite", func(settings ConfigReader) (Store, error) {
		return NewSQLiteStoreWithConfig(SQLiteConfig{
			DSN:             settingString(settings, "session.sqlite.dsn", "sessions.db"),
			Codec:           codec,
			MaxOpenConns:    16,
			MaxIdleConns:    16,
			MaxSessionBytes: settingInt(settings, "session.max_bytes", 0),
		})
	})
	r.RegisterShared("postgres", func(settings ConfigReader) (Store, error) {
		cfg := DefaultPostgreSQLConfig(settingString(settings, "session.postgres.dsn", ""))
		cfg.Codec = codec
		cfg.MaxSessionBytes = settingInt(settings, "session.max_bytes", 0)
		return NewPostgreSQLStoreWithConfig(cfg)
	})
	r.RegisterShared("memcached", func(settings ConfigReader) (Store, error) {
		return NewMemcachedStoreWithConfig(MemcachedConfig{
			Servers:         settingStrings(settings, "session.memcached.servers", []string{"127.0.0.1:11211"}),
			Codec:           codec,
			Timeout:         defaultMemcachedTimeout,
			MaxSessionBytes: settingInt(settings, "session.max_bytes", 0),
		}), nil
	})
	r.RegisterShared("redis", func(settings ConfigReader) (Store, error) {
		return NewRedisStoreWithConfig(RedisConfig{
			Addr:            settingString(settings, "session.redis.addr", "127.0.0.1:6379"),
			Prefix:          settingString(settings, "session.redis.prefix", defaultRedisPrefix),
			Codec:           codec,
			MaxSessionBytes: settingInt(settings, "session.max_bytes", 0),
		}), nil
	})
	return r
}
