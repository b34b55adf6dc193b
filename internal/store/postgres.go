// Package store provides lead storage backends for the chatlead service.
//
// This file implements a PostgreSQL-backed store for chat leads.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/zenoccaz/chatlead/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure the leads table exists
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// CreateLead inserts a new lead row.
func (s *PostgresStore) CreateLead(ctx context.Context, lead models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(lead.Payload)
	if err != nil {
		slog.Error("PostgresStore CreateLead payload marshal failed", "error", err, "sessionID", lead.SessionID)
		return fmt.Errorf("failed to marshal lead payload: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_leads (id, session_id, choice, payload, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		lead.ID, lead.SessionID, lead.Choice, string(payloadJSON), now, now)
	if err != nil {
		slog.Error("PostgresStore CreateLead failed", "error", err, "sessionID", lead.SessionID)
		return fmt.Errorf("failed to insert lead for session %s: %w", lead.SessionID, err)
	}
	slog.Debug("PostgresStore CreateLead succeeded", "sessionID", lead.SessionID, "choice", lead.Choice)
	return nil
}

// UpdateLeadPayload replaces the payload of all rows matching the session id
// and reports the number of matched rows.
func (s *PostgresStore) UpdateLeadPayload(ctx context.Context, sessionID string, payload map[string]string) (int64, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadPayload payload marshal failed", "error", err, "sessionID", sessionID)
		return 0, fmt.Errorf("failed to marshal lead payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_leads SET payload = $1, updated_at = $2 WHERE session_id = $3`,
		string(payloadJSON), time.Now(), sessionID)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadPayload failed", "error", err, "sessionID", sessionID)
		return 0, fmt.Errorf("failed to update lead for session %s: %w", sessionID, err)
	}
	matched, err := res.RowsAffected()
	if err != nil {
		slog.Error("PostgresStore UpdateLeadPayload rows affected failed", "error", err, "sessionID", sessionID)
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	slog.Debug("PostgresStore UpdateLeadPayload succeeded", "sessionID", sessionID, "matched", matched)
	return matched, nil
}

// GetLeadBySession returns the lead for a session id, or nil if none exists.
func (s *PostgresStore) GetLeadBySession(ctx context.Context, sessionID string) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, choice, payload, created_at, updated_at FROM chat_leads WHERE session_id = $1 LIMIT 1`,
		sessionID)
	return scanLeadRow(row, sessionID)
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
		return err
	}
	return nil
}
