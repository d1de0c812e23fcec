package websession

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

type PostgreSQLStore struct {
	db              *sql.DB
	codec           *Codec
	saveStmt        *sql.Stmt
	getStmt         *sql.Stmt
	deleteStmt      *sql.Stmt
	cleanupStmt     *sql.Stmt
	maxSessionBytes int
	logger          zerolog.Logger
}

// PostgreSQLConfig holds configuration for the PostgreSQL store.
type PostgreSQLConfig struct {
	DSN             string
	Codec           *Codec
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MaxSessionBytes int
	Logger          *zerolog.Logger
}

// DefaultPostgreSQLConfig returns the pool settings used by NewPostgreSQLStore.
func DefaultPostgreSQLConfig(dsn string) PostgreSQLConfig {
	return PostgreSQLConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// NewPostgreSQLStore creates a new PostgreSQL store with default configuration.
func NewPostgreSQLStore(dsn string, codec *Codec) (*PostgreSQLStore, error) {
	cfg := DefaultPostgreSQLConfig(dsn)
	cfg.Codec = codec
	return NewPostgreSQLStoreWithConfig(cfg)
}

// NewPostgreSQLStoreWithConfig creates a new PostgreSQL store with custom configuration.
func NewPostgreSQLStoreWithConfig(cfg PostgreSQLConfig) (*PostgreSQLStore, error) {
	if cfg.Codec == nil {
		return nil, fmt.Errorf("postgresql store requires a codec")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgresql database: %w", err)
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
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgresql database: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		expires_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_expires_at ON sessions(expires_at);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	store := &PostgreSQLStore{
		db:              db,
		codec:           cfg.Codec,
		maxSessionBytes: cfg.MaxSessionBytes,
		logger:          resolveLogger(cfg.Logger, "postgres_store"),
	}

	store.saveStmt, err = db.Prepare(`
		INSERT INTO sessions (id, payload, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(id) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare save statement: %w", err)
	}

	store.getStmt, err = db.Prepare("SELECT payload FROM sessions WHERE id = $1")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	store.deleteStmt, err = db.Prepare("DELETE FROM sessions WHERE id = $1")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	store.cleanupStmt, err = db.Prepare("DELETE FROM sessions WHERE expires_at < $1")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return store, nil
}

func (s *PostgreSQLStore) Read(ctx context.Context, id string) *Session {
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

func (s *PostgreSQLStore) Save(ctx context.Context, session *Session) bool {
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

	if _, err := s.saveStmt.ExecContext(ctx, id, payload, session.Expiry()); err != nil {
		logStoreError(s.logger, "save", id, fmt.Errorf("failed to save session: %w", err))
		return false
	}
	return true
}

func (s *PostgreSQLStore) Remove(ctx context.Context, id string) bool {
	if !IsValidToken(id) {
		return false
	}
	if _, err := s.deleteStmt.ExecContext(ctx, id); err != nil {
		logStoreError(s.logger, "remove", id, fmt.Errorf("failed to delete session: %w", err))
		return false
	}
	return true
}

func (s *PostgreSQLStore) Clear(ctx context.Context) bool {
	if _, err := s.cleanupStmt.ExecContext(ctx, time.Now().UnixMilli()); err != nil {
		logStoreError(s.logger, "clear", "", fmt.Errorf("failed to cleanup expired sessions: %w", err))
		return false
	}
	return true
}

func (s *PostgreSQLStore) Close() error {
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
