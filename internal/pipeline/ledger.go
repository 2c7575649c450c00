package pipeline

import (
	"context"
	"time"

	"pixel-relay/internal/models"
	"pixel-relay/internal/util"

	"go.uber.org/zap"
)

// AuditSink receives a copy of every ledger outcome, e.g. a Kafka topic.
type AuditSink interface {
	PublishDeliveryRecorded(ctx context.Context, attempt *models.DeliveryAttempt, pixelEventID string) error
}

// LedgerWriter persists delivery outcomes and mirrors them to the audit sink.
// Audit publishing is a supervised fire-and-forget task: its failures are
// logged, never propagated, and never block the delivery path.
type LedgerWriter struct {
	attempts AttemptStore
	cache    DedupCache
	audit    AuditSink
	logger   *zap.Logger
}

func NewLedgerWriter(attempts AttemptStore, cache DedupCache, audit AuditSink) *LedgerWriter {
	return &LedgerWriter{attempts: attempts, cache: cache, audit: audit, logger: util.GetLogger()}
}

// Record upserts the attempt row. written=false with a nil error means a
// concurrent attempt already succeeded and the row was left untouched;
// callers treat that as a dedup. A write error is returned as such — the
// attempt's outcome is still real and still mirrored to the audit sink.
// A successful send also sets the fast-path marker.
func (w *LedgerWriter) Record(ctx context.Context, attempt *models.DeliveryAttempt, pixelEventID string) (written bool, err error) {
	written, err = w.attempts.RecordAttempt(ctx, attempt)
	if err != nil {
		util.LedgerWriteFailuresTotal.Inc()
		w.logger.Error("Ledger write failed",
			zap.Int64("shop_id", attempt.ShopID),
			zap.Int64("event_log_id", attempt.EventLogID),
			zap.String("destination", attempt.DestinationType),
			zap.Error(err))
		w.publishAudit(attempt, pixelEventID)
		return false, err
	}

	if written && attempt.Status == models.AttemptStatusOK && w.cache != nil {
		if err := w.cache.MarkDelivered(ctx, attempt.ShopID, attempt.EventLogID, attempt.DestinationType, attempt.Environment); err != nil {
			w.logger.Warn("Failed to set dedup marker", zap.Error(err))
		}
	}

	w.publishAudit(attempt, pixelEventID)
	return written, nil
}

// PublishDedup emits an audit record for a send skipped by deduplication.
// The ledger row itself is the prior ok attempt and stays untouched.
func (w *LedgerWriter) PublishDedup(attempt *models.DeliveryAttempt, pixelEventID string) {
	w.publishAudit(attempt, pixelEventID)
}

func (w *LedgerWriter) publishAudit(attempt *models.DeliveryAttempt, pixelEventID string) {
	if w.audit == nil {
		return
	}
	// Detached from the request: audit is best-effort and must not block
	// or fail the delivery response.
	a := *attempt
	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Audit publish panicked", zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.audit.PublishDeliveryRecorded(ctx, &a, pixelEventID); err != nil {
			w.logger.Error("Audit publish failed",
				zap.String("destination", a.DestinationType),
				zap.Error(err))
		}
	}()
}
