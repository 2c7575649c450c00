package store

import (
	"context"
	"database/sql"
	"fmt"

	"pixel-relay/internal/models"
)

// GetAttempt retrieves a delivery attempt by its four-part key. Returns
// (nil, nil) when no attempt exists.
func (s *Store) GetAttempt(ctx context.Context, shopID, eventLogID int64, destinationType, environment string) (*models.DeliveryAttempt, error) {
	var attempt models.DeliveryAttempt
	err := s.db.GetContext(ctx, &attempt, `
		SELECT * FROM delivery_attempts
		WHERE shop_id = $1 AND event_log_id = $2 AND destination_type = $3 AND environment = $4`,
		shopID, eventLogID, destinationType, environment)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// RecordAttempt upserts a delivery attempt keyed on
// (shop_id, event_log_id, destination_type, environment). An existing ok row
// is never overwritten; this single atomic statement is the at-most-once
// guarantee even across concurrent processes. written=false means a prior ok
// row won.
func (s *Store) RecordAttempt(ctx context.Context, a *models.DeliveryAttempt) (written bool, err error) {
	query := `
		INSERT INTO delivery_attempts
			(shop_id, event_log_id, destination_type, environment, status,
			 error_code, error_message, http_status, latency_ms, request_payload, response_body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (shop_id, event_log_id, destination_type, environment)
		DO UPDATE SET
			status = EXCLUDED.status,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			http_status = EXCLUDED.http_status,
			latency_ms = EXCLUDED.latency_ms,
			request_payload = EXCLUDED.request_payload,
			response_body = EXCLUDED.response_body,
			updated_at = NOW()
		WHERE delivery_attempts.status <> 'ok'
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRowxContext(ctx, query,
		a.ShopID, a.EventLogID, a.DestinationType, a.Environment, a.Status,
		a.ErrorCode, a.ErrorMessage, a.HTTPStatus, a.LatencyMs, a.RequestPayload, a.ResponseBody).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record delivery attempt: %w", err)
	}
	return true, nil
}

// GetAttemptsByEventLog lists the ledger rows for one event, for audit reads.
func (s *Store) GetAttemptsByEventLog(ctx context.Context, shopID, eventLogID int64) ([]models.DeliveryAttempt, error) {
	var attempts []models.DeliveryAttempt
	err := s.db.SelectContext(ctx, &attempts, `
		SELECT * FROM delivery_attempts
		WHERE shop_id = $1 AND event_log_id = $2
		ORDER BY destination_type, environment`,
		shopID, eventLogID)
	return attempts, err
}

// GetFailedAttempts lists fail rows for a shop, newest first. An external
// reconciliation job uses this to decide what to re-feed through the pipeline.
func (s *Store) GetFailedAttempts(ctx context.Context, shopID int64, limit int) ([]models.DeliveryAttempt, error) {
	var attempts []models.DeliveryAttempt
	err := s.db.SelectContext(ctx, &attempts, `
		SELECT * FROM delivery_attempts
		WHERE shop_id = $1 AND status = 'fail'
		ORDER BY updated_at DESC
		LIMIT $2`,
		shopID, limit)
	return attempts, err
}
