package websession

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface on an SQLite database.
type SQLiteStore struct {
	db              *sql.DB
	codec           *Codec
	mu              sync.Mutex // Serializes writes to avoid SQLITE_BUSY
	saveStmt        *sql.Stmt
	getStmt         *sql.Stmt
	deleteStmt      *sql.Stmt
	cleanupStmt     *sql.Stmt
	maxSessionBytes int
	logger          zerolog.Logger
}

// SQLiteConfig holds configuration for the SQLite store.
type SQLiteConfig struct {
	DSN             string
	Codec           *Codec
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MaxSessionBytes int
	Logger          *zerolog.Logger
}

func NewSQLiteStore(dsn string, codec *Codec) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{
		DSN:          dsn,
		Codec:        codec,
		MaxOpenConns: 16, // Allow concurrent readers (writers are serialized by mutex)
		MaxIdleConns: 16,
	})
}

func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Codec == nil {
		return nil, fmt.Errorf("sqlite store requires a codec")
	}

	// PRAGMAs go into the DSN so they apply to every pooled connection.
	cfg.DSN = withPragma(cfg.DSN, "synchronous", "synchronous=NORMAL")
	cfg.DSN = withPragma(cfg.DSN, "busy_timeout", "busy_timeout=5000")

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// WAL is persistent for the database file, so executing it once is sufficient.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_expires_at ON sessions(expires_at);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	store := &SQLiteStore{
		db:              db,
		codec:           cfg.Codec,
		maxSessionBytes: cfg.MaxSessionBytes,
		logger:          resolveLogger(cfg.Logger, "sqlite_store"),
	}

	store.saveStmt, err = db.Prepare(`
		INSERT INTO sessions (id, payload, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			expires_at = excluded.expires_at
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare save statement: %w", err)
	}

	store.getStmt, err = db.Prepare("SELECT payload FROM sessions WHERE id = ?")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	store.deleteStmt, err = db.Prepare("DELETE FROM sessions WHERE id = ?")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	store.cleanupStmt, err = db.Prepare("DELETE FROM sessions WHERE expires_at < ?")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return store, nil
}

func withPragma(dsn, name, pragma string) string {
	if strings.Contains(dsn, name) {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=%s", dsn, separator, pragma)
}

func (s *SQLiteStore) Read(ctx context.Context, id string) *Session {
	if !IsValidToken(id) {
		return nil
	}

	var payload string
	err := s.getStmt.QueryRowContext(ctx, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		logStoreError(s.logger, "read", id, fmt.Errorf("failed to query session: %w", err))
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

func (s *SQLiteStore) Save(ctx context.Context, session *Session) bool {
	id := session.ID()
	payload, err := s.codec.Encode(session)
	if err != nil {
		logStoreError(s.logger, "save", id, err)
		return false
	}

	if s.maxSessionBytes > 0 && len(payload) > s.maxSessionBytes {
		logStoreError(s.logger, "save", id, ErrSessionTooLarge)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.saveStmt.ExecContext(ctx, id, payload, session.Expiry()); err != nil {
		logStoreError(s.logger, "save", id, fmt.Errorf("failed to save session: %w", err))
		return false
	}
	return true
}

func (s *SQLiteStore) Remove(ctx context.Context, id string) bool {
	if !IsValidToken(id) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.deleteStmt.ExecContext(ctx, id); err != nil {
		logStoreError(s.logger, "remove", id, fmt.Errorf("failed to delete session: %w", err))
		return false
	}
	return true
}

func (s *SQLiteStore) Clear(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.cleanupStmt.ExecContext(ctx, time.Now().UnixMilli()); err != nil {
		logStoreError(s.logger, "clear", "", fmt.Errorf("failed to cleanup expired sessions: %w", err))
		return false
	}
	return true
}

func (s *SQLiteStore) Close() error {
	if s.saveStmt != nil {
		s.saveStmt.Close()
	}
	if s.getStmt != nil {
		s.getStmt.Close()
	}
	if s.deleteStmt != nil {
		s.deleteStmt.Close()
	}
	if s.cleanupStmt != nil {
		s.cleanupStmt.Close()
	}
	return s.db.Close()
}
