package pipeline

import (
	"context"

	"pixel-relay/internal/models"
	"pixel-relay/internal/util"

	"go.uber.org/zap"
)

// DedupCache is an optional fast-path marker store for prior successful
// sends. Always best-effort.
type DedupCache interface {
	WasDelivered(ctx context.Context, shopID, eventLogID int64, destinationType, environment string) (bool, error)
	MarkDelivered(ctx context.Context, shopID, eventLogID int64, destinationType, environment string) error
}

// Deduplicator answers whether a destination already received an event. Only
// a prior attempt with status ok counts; fail rows are retryable. Lookup
// failures fail open so storage trouble never silently blocks delivery.
type Deduplicator struct {
	attempts AttemptStore
	cache    DedupCache
	logger   *zap.Logger
}

func NewDeduplicator(attempts AttemptStore, cache DedupCache) *Deduplicator {
	return &Deduplicator{attempts: attempts, cache: cache, logger: util.GetLogger()}
}

// CheckDuplicate reports whether a prior ok attempt exists for the four-part
// key.
func (d *Deduplicator) CheckDuplicate(ctx context.Context, shopID, eventLogID int64, destinationType, environment string) bool {
	if d.cache != nil {
		hit, err := d.cache.WasDelivered(ctx, shopID, eventLogID, destinationType, environment)
		if err != nil {
			d.logger.Warn("Dedup cache lookup failed, checking ledger",
				zap.Int64("event_log_id", eventLogID), zap.Error(err))
		} else if hit {
			return true
		}
	}

	attempt, err := d.attempts.GetAttempt(ctx, shopID, eventLogID, destinationType, environment)
	if err != nil {
		// Fail open: delivery proceeds and the ledger's unique constraint
		// still prevents a double success.
		d.logger.Error("Dedup ledger lookup failed, treating as not duplicate",
			zap.Int64("shop_id", shopID),
			zap.Int64("event_log_id", eventLogID),
			zap.String("destination", destinationType),
			zap.Error(err))
		return false
	}

	return attempt != nil && attempt.Status == models.AttemptStatusOK
}
