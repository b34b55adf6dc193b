// Package store provides lead storage backends for the chatlead service.
//
// It includes an in-memory store for tests and development, plus persistent
// SQLite and PostgreSQL implementations of the chat_leads table.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zenoccaz/chatlead/internal/models"
)

// Store defines the lead table operations used by the recorder.
//
// UpdateLeadPayload reports how many rows matched the session id; zero matched
// rows is not an error, callers use the count to decide on a fallback insert.
type Store interface {
	CreateLead(ctx context.Context, lead models.Lead) error
	UpdateLeadPayload(ctx context.Context, sessionID string, payload map[string]string) (int64, error)
	GetLeadBySession(ctx context.Context, sessionID string) (*models.Lead, error)
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite".
// PostgreSQL DSNs use URL or key=value form; anything else is treated as an
// SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a simple in-memory lead store keyed by session id.
type InMemoryStore struct {
	mu    sync.RWMutex
	leads map[string]*models.Lead
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{leads: make(map[string]*models.Lead)}
}

// CreateLead inserts a new lead row.
func (s *InMemoryStore) CreateLead(ctx context.Context, lead models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	stored := lead
	stored.Payload = copyPayload(lead.Payload)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.leads[lead.SessionID] = &stored
	return nil
}

// UpdateLeadPayload replaces the payload of the lead matching the session id.
func (s *InMemoryStore) UpdateLeadPayload(ctx context.Context, sessionID string, payload map[string]string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[sessionID]
	if !ok {
		return 0, nil
	}
	lead.Payload = copyPayload(payload)
	lead.UpdatedAt = time.Now()
	return 1, nil
}

// GetLeadBySession returns the lead for a session id, or nil if none exists.
func (s *InMemoryStore) GetLeadBySession(ctx context.Context, sessionID string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[sessionID]
	if !ok {
		return nil, nil
	}
	out := *lead
	out.Payload = copyPayload(lead.Payload)
	return &out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func copyPayload(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
