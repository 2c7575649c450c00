package models

import "time"

// Broker event types
const (
	EventTypePixelEventReceived = "PIXEL_EVENT_RECEIVED"
	EventTypeDeliveryRecorded   = "DELIVERY_RECORDED"
)

// BaseEvent contains common fields for all broker events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PixelEventReceived is the ingest-topic envelope: one raw pixel event plus
// the delivery instructions the webhook endpoint resolved for it.
type PixelEventReceived struct {
	BaseEvent
	ShopID        int64                `json:"shop_id"`
	ClientEventID string               `json:"client_event_id,omitempty"`
	Environment   string               `json:"environment"`
	Destinations  []DestinationRequest `json:"destinations"`
	Event         RawEvent             `json:"event"`
}

// DeliveryRecorded is published to the audit topic after every ledger write.
type DeliveryRecorded struct {
	BaseEvent
	ShopID          int64  `json:"shop_id"`
	PixelEventID    string `json:"pixel_event_id"`
	DestinationType string `json:"destination_type"`
	Environment     string `json:"environment"`
	Status          string `json:"status"`
	ErrorCode       string `json:"error_code,omitempty"`
	HTTPStatus      int    `json:"http_status,omitempty"`
	LatencyMs       int64  `json:"latency_ms"`
}
