// Package store provides lead storage backends for the chatlead service.
//
// This file implements an SQLite-backed store for chat leads.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zenoccaz/chatlead/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure the leads table exists
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// CreateLead inserts a new lead row.
func (s *SQLiteStore) CreateLead(ctx context.Context, lead models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(lead.Payload)
	if err != nil {
		slog.Error("SQLiteStore CreateLead payload marshal failed", "error", err, "sessionID", lead.SessionID)
		return fmt.Errorf("failed to marshal lead payload: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_leads (id, session_id, choice, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.SessionID, lead.Choice, string(payloadJSON), now, now)
	if err != nil {
		slog.Error("SQLiteStore CreateLead failed", "error", err, "sessionID", lead.SessionID)
		return fmt.Errorf("failed to insert lead for session %s: %w", lead.SessionID, err)
	}
	slog.Debug("SQLiteStore CreateLead succeeded", "sessionID", lead.SessionID, "choice", lead.Choice)
	return nil
}

// UpdateLeadPayload replaces the payload of all rows matching the session id
// and reports the number of matched rows.
func (s *SQLiteStore) UpdateLeadPayload(ctx context.Context, sessionID string, payload map[string]string) (int64, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadPayload payload marshal failed", "error", err, "sessionID", sessionID)
		return 0, fmt.Errorf("failed to marshal lead payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_leads SET payload = ?, updated_at = ? WHERE session_id = ?`,
		string(payloadJSON), time.Now(), sessionID)
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadPayload failed", "error", err, "sessionID", sessionID)
		return 0, fmt.Errorf("failed to update lead for session %s: %w", sessionID, err)
	}
	matched, err := res.RowsAffected()
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadPayload rows affected failed", "error", err, "sessionID", sessionID)
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	slog.Debug("SQLiteStore UpdateLeadPayload succeeded", "sessionID", sessionID, "matched", matched)
	return matched, nil
}

// GetLeadBySession returns the lead for a session id, or nil if none exists.
func (s *SQLiteStore) GetLeadBySession(ctx context.Context, sessionID string) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, choice, payload, created_at, updated_at FROM chat_leads WHERE session_id = ? LIMIT 1`,
		sessionID)
	return scanLeadRow(row, sessionID)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
		return err
	}
	return nil
}
