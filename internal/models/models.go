package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Platform identifiers
const (
	PlatformGA4    = "ga4"
	PlatformMeta   = "meta"
	PlatformTikTok = "tiktok"
)

// Environments
const (
	EnvironmentTest = "test"
	EnvironmentLive = "live"
)

// Delivery attempt statuses
const (
	AttemptStatusOK   = "ok"
	AttemptStatusFail = "fail"
)

// Error taxonomy surfaced as error_code on delivery attempts.
// ErrCodeDeduplicated is not a real error; it is recorded with status ok.
const (
	ErrCodeValidationFailed    = "validation_failed"
	ErrCodeMissingCredentials  = "missing_credentials"
	ErrCodeValidationError     = "validation_error"
	ErrCodeDecryptError        = "decrypt_error"
	ErrCodeConfigNotFound      = "config_not_found"
	ErrCodeUnsupportedPlatform = "unsupported_platform"
	ErrCodeTimeout             = "timeout"
	ErrCodeSendError           = "send_error"
	ErrCodeDeduplicated        = "deduplicated"
	ErrCodeConsentDenied       = "consent_denied"
	ErrCodeCancelled           = "cancelled"
)

// HTTPErrorCode builds the http_<status> error code for a non-2xx response.
func HTTPErrorCode(status int) string {
	return "http_" + strconv.Itoa(status)
}

// EventLog is the idempotent record of an accepted event. Created once per
// (shop_id, event_id); never mutated afterwards.
type EventLog struct {
	ID         int64           `db:"id" json:"id"`
	ShopID     int64           `db:"shop_id" json:"shop_id"`
	EventID    string          `db:"event_id" json:"event_id"`
	EventName  string          `db:"event_name" json:"event_name"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
}

// DeliveryAttempt is one row of the delivery ledger. The unique key
// (shop_id, event_log_id, destination_type, environment) is the at-most-once
// guarantee: an ok row is never overwritten, a fail row may be retried.
type DeliveryAttempt struct {
	ID              int64     `db:"id" json:"id"`
	ShopID          int64     `db:"shop_id" json:"shop_id"`
	EventLogID      int64     `db:"event_log_id" json:"event_log_id"`
	DestinationType string    `db:"destination_type" json:"destination_type"`
	Environment     string    `db:"environment" json:"environment"`
	Status          string    `db:"status" json:"status"`
	ErrorCode       string    `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage    string    `db:"error_message" json:"error_message,omitempty"`
	HTTPStatus      int       `db:"http_status" json:"http_status,omitempty"`
	LatencyMs       int64     `db:"latency_ms" json:"latency_ms"`
	RequestPayload  string    `db:"request_payload" json:"request_payload,omitempty"`
	ResponseBody    string    `db:"response_body" json:"response_body,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// DestinationConfig is a shop's configuration for one platform account,
// consumed read-only by this pipeline. PlatformID distinguishes multiple
// accounts of the same platform; empty means the shop's default.
type DestinationConfig struct {
	ID                   int64           `db:"id" json:"id"`
	ShopID               int64           `db:"shop_id" json:"shop_id"`
	Platform             string          `db:"platform" json:"platform"`
	PlatformID           string          `db:"platform_id" json:"platform_id,omitempty"`
	Environment          string          `db:"environment" json:"environment"`
	Enabled              bool            `db:"enabled" json:"enabled"`
	EncryptedCredentials string          `db:"encrypted_credentials" json:"-"`
	EventMappings        json.RawMessage `db:"event_mappings" json:"event_mappings,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// CustomMappings decodes the per-shop event-name overrides, if any.
func (c *DestinationConfig) CustomMappings() (map[string]string, error) {
	if len(c.EventMappings) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(c.EventMappings, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// CredentialBundle is a decrypted destination secret bundle. Which fields are
// populated depends on the platform.
type CredentialBundle struct {
	MeasurementID string `json:"measurement_id,omitempty"` // GA4
	APISecret     string `json:"api_secret,omitempty"`     // GA4
	PixelID       string `json:"pixel_id,omitempty"`       // Meta
	AccessToken   string `json:"access_token,omitempty"`   // Meta, TikTok
	TestEventCode string `json:"test_event_code,omitempty"`
	PixelCode     string `json:"pixel_code,omitempty"` // TikTok
}

// DestinationRequest selects one destination for an event.
type DestinationRequest struct {
	Platform   string `json:"platform"`
	ConfigID   int64  `json:"config_id,omitempty"`
	PlatformID string `json:"platform_id,omitempty"`
}

// ConfigFilter narrows a destination-configuration lookup.
type ConfigFilter struct {
	Platform    string
	Environment string
	EnabledOnly bool
}
