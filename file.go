package websession

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// FileStore implements the Store interface with one file per session,
// named by the session id.
type FileStore struct {
	fs              afero.Fs
	dir             string
	codec           *Codec
	locker          *idLocker
	maxSessionBytes int
	logger          zerolog.Logger
}

// FileConfig holds configuration for the file store.
type FileConfig struct {
	Dir   string
	Codec *Codec
	// Fs is the filesystem to write to. Defaults to the OS filesystem.
	Fs afero.Fs
	// SerializeWrites guards Save and Remove with a per-id lock. Without it,
	// two requests saving the same session race and the last write wins.
	SerializeWrites bool
	MaxSessionBytes int
	Logger          *zerolog.Logger
}

// NewFileStore creates a file store in dir on the OS filesystem.
func NewFileStore(dir string, codec *Codec) (*FileStore, error) {
	return NewFileStoreWithConfig(FileConfig{Dir: dir, Codec: codec})
}

// NewFileStoreWithConfig creates a file store, creating its directory if needed.
func NewFileStoreWithConfig(cfg FileConfig) (*FileStore, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("file store requires a codec")
	}
	if err := cfg.Fs.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	store := &FileStore{
		fs:              cfg.Fs,
		dir:             cfg.Dir,
		codec:           cfg.Codec,
		maxSessionBytes: cfg.MaxSessionBytes,
		logger:          resolveLogger(cfg.Logger, "file_store"),
	}
	if cfg.SerializeWrites {
		store.locker = newIDLocker()
	}
	return store, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id)
}

func (s *FileStore) lock(id string) func() {
	if s.locker == nil {
		return func() {}
	}
	return s.locker.Lock(id)
}

// Save writes the encoded session to its file.
func (s *FileStore) Save(ctx context.Context, session *Session) bool {
	id := session.ID()
	encoded, err := s.codec.Encode(session)
	if err != nil {
		logStoreError(s.logger, "save", id, err)
		return false
	}
	if s.maxSessionBytes > 0 && len(encoded) > s.maxSessionBytes {
		logStoreError(s.logger, "save", id, ErrSessionTooLarge)
		return false
	}

	unlock := s.lock(id)
	defer unlock()
	if err := afero.WriteFile(s.fs, s.path(id), []byte(encoded), 0o600); err != nil {
		logStoreError(s.logger, "save", id, err)
		return false
	}
	return true
}

// Read loads the session stored under id. Invalid ids are rejected before
// the filesystem is touched.
func (s *FileStore) Read(ctx context.Context, id string) *Session {
	if !IsValidToken(id) {
		return nil
	}
	raw, err := afero.ReadFile(s.fs, s.path(id))
	if err != nil {
		logStoreError(s.logger, "read", id, err)
		return nil
	}
	defer clear(raw)
	if s.maxSessionBytes > 0 && len(raw) > s.maxSessionBytes {
		logStoreError(s.logger, "read", id, ErrSessionTooLarge)
		return nil
	}

	session, err := s.codec.Decode(string(raw))
	if err != nil {
		logStoreError(s.logger, "read", id, err)
		return nil
	}
	return session
}

// Remove deletes the file of id.
func (s *FileStore) Remove(ctx context.Context, id string) bool {
	if !IsValidToken(id) {
		return false
	}
	unlock := s.lock(id)
	defer unlock()
	if err := s.fs.Remove(s.path(id)); err != nil {
		logStoreError(s.logger, "remove", id, err)
		return false
	}
	return true
}

// Clear removes every session file whose record has expired. Files that
// cannot be decoded are left in place. It stops early when ctx is done.
func (s *FileStore) Clear(ctx context.Context) bool {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		logStoreError(s.logger, "clear", "", err)
		return false
	}

	now := time.Now().UnixMilli()
	ok := true
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			logStoreError(s.logger, "clear", "", err)
			return false
		}
		if entry.IsDir() || !IsValidToken(entry.Name()) {
			continue
		}
		expired, err := s.expired(entry.Name(), now)
		if err != nil {
			logStoreError(s.logger, "clear", entry.Name(), err)
			continue
		}
		if !expired {
			continue
		}
		if !s.Remove(ctx, entry.Name()) {
			ok = false
			continue
		}
		removed++
	}
	s.logger.Debug().Int("removed", removed).Msg("expired sessions cleared")
	return ok
}

func (s *FileStore) expired(id string, now int64) (bool, error) {
	raw, err := afero.ReadFile(s.fs, s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	rec, err := s.codec.Peek(string(raw))
	if err != nil {
		return false, err
	}
	return now > rec.Expiry, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
