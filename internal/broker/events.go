package broker

import (
	"context"
	"fmt"
	"time"

	"pixel-relay/internal/models"

	"github.com/google/uuid"
)

// AuditPublisher publishes delivery ledger outcomes to the audit topic.
type AuditPublisher struct {
	producer *Producer
}

func NewAuditPublisher(producer *Producer) *AuditPublisher {
	return &AuditPublisher{producer: producer}
}

// PublishDeliveryRecorded emits one audit event per ledger write.
func (ap *AuditPublisher) PublishDeliveryRecorded(ctx context.Context, attempt *models.DeliveryAttempt, pixelEventID string) error {
	event := &models.DeliveryRecorded{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeDeliveryRecorded,
			Timestamp: time.Now(),
		},
		ShopID:          attempt.ShopID,
		PixelEventID:    pixelEventID,
		DestinationType: attempt.DestinationType,
		Environment:     attempt.Environment,
		Status:          attempt.Status,
		ErrorCode:       attempt.ErrorCode,
		HTTPStatus:      attempt.HTTPStatus,
		LatencyMs:       attempt.LatencyMs,
	}

	key := fmt.Sprintf("shop-%d", attempt.ShopID)
	return ap.producer.PublishEvent(ctx, key, event)
}
