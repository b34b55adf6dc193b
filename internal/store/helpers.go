package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/zenoccaz/chatlead/internal/models"
)

// scanLeadRow scans a Lead from a single sql.Row, returning nil when no row
// matched the session id.
func scanLeadRow(row *sql.Row, sessionID string) (*models.Lead, error) {
	var lead models.Lead
	var payloadJSON string
	err := row.Scan(&lead.ID, &lead.SessionID, &lead.Choice, &payloadJSON, &lead.CreatedAt, &lead.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lead row for session %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(payloadJSON), &lead.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead payload for session %s: %w", sessionID, err)
	}
	return &lead, nil
}
