package store

import (
	"context"
	"database/sql"
	"fmt"

	"pixel-relay/internal/models"
)

// FindOrCreateEventLog inserts the event log row if none exists for
// (shop_id, event_id) and returns the canonical row either way. The unique
// constraint makes ingestion idempotent across retries and concurrent calls.
func (s *Store) FindOrCreateEventLog(ctx context.Context, log *models.EventLog) (created bool, err error) {
	query := `
		INSERT INTO event_logs (shop_id, event_id, event_name, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shop_id, event_id) DO NOTHING
		RETURNING id, received_at`

	err = s.db.QueryRowxContext(ctx, query,
		log.ShopID, log.EventID, log.EventName, log.Payload).
		Scan(&log.ID, &log.ReceivedAt)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to insert event log: %w", err)
	}

	// Conflict path: the row already exists, fetch it.
	existing, err := s.GetEventLog(ctx, log.ShopID, log.EventID)
	if err != nil {
		return false, err
	}
	*log = *existing
	return false, nil
}

// GetEventLog retrieves an event log by its idempotency key.
func (s *Store) GetEventLog(ctx context.Context, shopID int64, eventID string) (*models.EventLog, error) {
	var log models.EventLog
	err := s.db.GetContext(ctx, &log,
		"SELECT * FROM event_logs WHERE shop_id = $1 AND event_id = $2", shopID, eventID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event log not found: shop=%d event=%s", shopID, eventID)
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}
