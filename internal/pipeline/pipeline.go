package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pixel-relay/internal/credentials"
	"pixel-relay/internal/destination"
	"pixel-relay/internal/mapper"
	"pixel-relay/internal/models"
	"pixel-relay/internal/normalizer"
	"pixel-relay/internal/util"
	"pixel-relay/internal/validator"

	"go.uber.org/zap"
)

// EventLogStore persists accepted events idempotently.
type EventLogStore interface {
	FindOrCreateEventLog(ctx context.Context, log *models.EventLog) (created bool, err error)
}

// AttemptStore is the delivery ledger.
type AttemptStore interface {
	GetAttempt(ctx context.Context, shopID, eventLogID int64, destinationType, environment string) (*models.DeliveryAttempt, error)
	RecordAttempt(ctx context.Context, a *models.DeliveryAttempt) (written bool, err error)
}

// CredentialResolver selects and decrypts one destination configuration.
type CredentialResolver interface {
	Resolve(ctx context.Context, shopID int64, dest models.DestinationRequest, environment string) (*models.DestinationConfig, *models.CredentialBundle, error)
}

// DefaultBatchConcurrency caps in-flight events during batch processing.
const DefaultBatchConcurrency = 5

// Pipeline sequences validation, normalization, idempotent logging and
// concurrent multi-destination delivery for pixel events.
type Pipeline struct {
	logs             EventLogStore
	resolver         CredentialResolver
	registry         *destination.Registry
	sender           *destination.Sender
	norm             *normalizer.Normalizer
	dedup            *Deduplicator
	ledger           *LedgerWriter
	batchConcurrency int
	logger           *zap.Logger
}

// New wires a pipeline. cache and audit may be nil.
func New(
	logs EventLogStore,
	attempts AttemptStore,
	resolver CredentialResolver,
	registry *destination.Registry,
	sender *destination.Sender,
	cache DedupCache,
	audit AuditSink,
	batchConcurrency int,
) *Pipeline {
	if batchConcurrency <= 0 {
		batchConcurrency = DefaultBatchConcurrency
	}
	return &Pipeline{
		logs:             logs,
		resolver:         resolver,
		registry:         registry,
		sender:           sender,
		norm:             normalizer.New(),
		dedup:            NewDeduplicator(attempts, cache),
		ledger:           NewLedgerWriter(attempts, cache, audit),
		batchConcurrency: batchConcurrency,
		logger:           util.GetLogger(),
	}
}

// ProcessEventRequest is one event plus its delivery instructions.
type ProcessEventRequest struct {
	ShopID        int64                       `json:"shop_id"`
	Event         models.RawEvent             `json:"event"`
	ClientEventID string                      `json:"client_event_id,omitempty"`
	Destinations  []models.DestinationRequest `json:"destinations"`
	Environment   string                      `json:"environment"`
}

// DestinationOutcome is the per-destination result of one ProcessEvent call.
type DestinationOutcome struct {
	Platform     string `json:"platform"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	HTTPStatus   int    `json:"http_status,omitempty"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
}

// ProcessEventResponse aggregates one event's pipeline run. Success means the
// event was validated and logged; individual destination failures do not fail
// the event.
type ProcessEventResponse struct {
	Success            bool                 `json:"success"`
	EventID            string               `json:"event_id,omitempty"`
	Destinations       []DestinationOutcome `json:"destinations"`
	Deduplicated       bool                 `json:"deduplicated"`
	ErrorCode          string               `json:"error_code,omitempty"`
	ValidationErrors   []string             `json:"validation_errors,omitempty"`
	ValidationWarnings []string             `json:"validation_warnings,omitempty"`
}

// ProcessEvent runs one event through the full state machine:
// received -> validated -> normalized -> logged -> dispatching -> completed.
// Destinations are dispatched concurrently and every outcome is collected;
// no failure propagates out of the pipeline as a panic or error, except a
// failure to durably log the event itself.
func (p *Pipeline) ProcessEvent(ctx context.Context, req *ProcessEventRequest) (*ProcessEventResponse, error) {
	ctx, span := util.StartSpan(ctx, "Pipeline.ProcessEvent")
	defer span.End()

	util.EventsReceivedTotal.WithLabelValues(req.Event.EventName).Inc()

	res := validator.Validate(&req.Event)
	canonical := p.norm.Normalize(&req.Event, req.ClientEventID)

	if !res.Valid {
		return p.rejectInvalid(ctx, req, canonical, res)
	}

	eventLog, err := p.logEvent(ctx, req.ShopID, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to log event: %w", err)
	}

	// Dispatch fans out concurrently. Sends run on a context detached from
	// the caller's cancellation: once fired, an attempt completes (bounded
	// by the sender's own timeout) and its outcome is recorded.
	sendCtx := context.WithoutCancel(ctx)
	outcomes := make([]DestinationOutcome, len(req.Destinations))
	var wg sync.WaitGroup
	for i, dest := range req.Destinations {
		wg.Add(1)
		go func(i int, dest models.DestinationRequest) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("Destination dispatch panicked",
						zap.String("platform", dest.Platform), zap.Any("panic", r))
					outcomes[i] = DestinationOutcome{
						Platform:  dest.Platform,
						Status:    models.AttemptStatusFail,
						ErrorCode: models.ErrCodeSendError,
					}
				}
			}()
			outcomes[i] = p.deliver(sendCtx, req.ShopID, eventLog, canonical, dest, req.Environment)
		}(i, dest)
	}
	wg.Wait()

	resp := &ProcessEventResponse{
		Success:            true,
		EventID:            canonical.ID,
		Destinations:       outcomes,
		ValidationWarnings: res.Warnings,
	}
	for _, o := range outcomes {
		if o.Deduplicated {
			resp.Deduplicated = true
		}
	}
	return resp, nil
}

// rejectInvalid still leaves a durable trail for an event that failed
// validation: the event log row plus one validation_failed ledger row per
// requested destination. Nothing is sent.
func (p *Pipeline) rejectInvalid(ctx context.Context, req *ProcessEventRequest, canonical *models.Event, res *validator.Result) (*ProcessEventResponse, error) {
	util.ValidationFailuresTotal.Inc()
	p.logger.Warn("Event failed validation",
		zap.String("event_name", req.Event.EventName),
		zap.String("shop_domain", req.Event.ShopDomain),
		zap.Strings("errors", res.Errors))

	eventLog, err := p.logEvent(ctx, req.ShopID, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to log invalid event: %w", err)
	}

	for _, dest := range req.Destinations {
		attempt := &models.DeliveryAttempt{
			ShopID:          req.ShopID,
			EventLogID:      eventLog.ID,
			DestinationType: dest.Platform,
			Environment:     req.Environment,
			Status:          models.AttemptStatusFail,
			ErrorCode:       models.ErrCodeValidationFailed,
			ErrorMessage:    fmt.Sprintf("validation errors: %v", res.Errors),
		}
		p.ledger.Record(ctx, attempt, canonical.ID)
	}

	return &ProcessEventResponse{
		Success:            false,
		EventID:            canonical.ID,
		Destinations:       []DestinationOutcome{},
		ErrorCode:          models.ErrCodeValidationFailed,
		ValidationErrors:   res.Errors,
		ValidationWarnings: res.Warnings,
	}, nil
}

// logEvent idempotently persists the canonical event.
func (p *Pipeline) logEvent(ctx context.Context, shopID int64, canonical *models.Event) (*models.EventLog, error) {
	payload, err := json.Marshal(canonical)
	if err != nil {
		return nil, err
	}

	eventLog := &models.EventLog{
		ShopID:    shopID,
		EventID:   canonical.ID,
		EventName: canonical.Name,
		Payload:   payload,
	}
	created, err := p.logs.FindOrCreateEventLog(ctx, eventLog)
	if err != nil {
		return nil, err
	}
	if !created {
		p.logger.Debug("Event log already exists",
			zap.Int64("shop_id", shopID),
			zap.String("event_id", canonical.ID))
	}
	return eventLog, nil
}

// deliver runs one destination's lifecycle: consent gate, dedup check,
// credential resolution, name mapping, send, ledger write.
func (p *Pipeline) deliver(ctx context.Context, shopID int64, eventLog *models.EventLog, ev *models.Event, dest models.DestinationRequest, environment string) DestinationOutcome {
	ctx, span := util.StartSpan(ctx, "Pipeline.deliver")
	defer span.End()

	if !consentAllows(ev.Consent, dest.Platform) {
		util.ConsentBlockedTotal.WithLabelValues(dest.Platform).Inc()
		return p.recordFailure(ctx, shopID, eventLog, ev, dest, environment,
			models.ErrCodeConsentDenied, "shopper consent does not cover this platform", nil)
	}

	if p.dedup.CheckDuplicate(ctx, shopID, eventLog.ID, dest.Platform, environment) {
		return p.recordDedup(shopID, eventLog, ev, dest, environment)
	}

	cfg, bundle, err := p.resolver.Resolve(ctx, shopID, dest, environment)
	if err != nil {
		code := models.ErrCodeSendError
		var decryptErr *credentials.DecryptError
		switch {
		case errors.Is(err, credentials.ErrConfigNotFound):
			code = models.ErrCodeConfigNotFound
		case errors.As(err, &decryptErr):
			code = models.ErrCodeDecryptError
		}
		return p.recordFailure(ctx, shopID, eventLog, ev, dest, environment, code, err.Error(), nil)
	}

	custom, err := cfg.CustomMappings()
	if err != nil {
		p.logger.Warn("Invalid custom event mappings, using static table",
			zap.Int64("config_id", cfg.ID), zap.Error(err))
	}
	mappedName := mapper.MapEventName(ev.Name, dest.Platform, custom)

	adapter, ok := p.registry.Lookup(dest.Platform)
	if !ok {
		return p.recordFailure(ctx, shopID, eventLog, ev, dest, environment,
			models.ErrCodeUnsupportedPlatform, fmt.Sprintf("no adapter for platform %q", dest.Platform), nil)
	}

	out := p.sender.Send(ctx, adapter, ev, mappedName, bundle, environment)

	attempt := &models.DeliveryAttempt{
		ShopID:          shopID,
		EventLogID:      eventLog.ID,
		DestinationType: dest.Platform,
		Environment:     environment,
		Status:          models.AttemptStatusFail,
		ErrorCode:       out.ErrorCode,
		ErrorMessage:    out.ErrorMessage,
		HTTPStatus:      out.HTTPStatus,
		LatencyMs:       out.LatencyMs,
		RequestPayload:  out.RequestPayload,
		ResponseBody:    out.ResponseBody,
	}
	if out.Success {
		attempt.Status = models.AttemptStatusOK
	}

	written, recordErr := p.ledger.Record(ctx, attempt, ev.ID)
	if recordErr == nil && !written && out.Success {
		// A concurrent attempt won the upsert with a prior ok row; this
		// send raced it. Surface as deduplicated rather than double-count.
		// A write error is not a dedup: the send's real outcome stands.
		util.DedupDroppedTotal.WithLabelValues(dest.Platform).Inc()
		return DestinationOutcome{
			Platform:     dest.Platform,
			Status:       models.AttemptStatusOK,
			ErrorCode:    models.ErrCodeDeduplicated,
			Deduplicated: true,
		}
	}

	if out.Success {
		util.DeliverySuccessTotal.WithLabelValues(dest.Platform).Inc()
		p.logger.Info("Delivered event",
			zap.String("platform", dest.Platform),
			zap.String("event_id", ev.ID),
			zap.Int("http_status", out.HTTPStatus),
			zap.Int64("latency_ms", out.LatencyMs))
	} else {
		util.DeliveryFailureTotal.WithLabelValues(dest.Platform, out.ErrorCode).Inc()
		p.logger.Warn("Delivery failed",
			zap.String("platform", dest.Platform),
			zap.String("event_id", ev.ID),
			zap.String("error_code", out.ErrorCode),
			zap.String("error", out.ErrorMessage))
	}

	return DestinationOutcome{
		Platform:   dest.Platform,
		Status:     attempt.Status,
		ErrorCode:  out.ErrorCode,
		HTTPStatus: out.HTTPStatus,
	}
}

// recordDedup notes a skipped send in the audit stream. The existing ok
// ledger row stays untouched; only the audit copy carries the deduplicated
// marker.
func (p *Pipeline) recordDedup(shopID int64, eventLog *models.EventLog, ev *models.Event, dest models.DestinationRequest, environment string) DestinationOutcome {
	util.DedupDroppedTotal.WithLabelValues(dest.Platform).Inc()
	p.logger.Info("Skipping duplicate delivery",
		zap.String("platform", dest.Platform),
		zap.String("event_id", ev.ID))

	p.ledger.PublishDedup(&models.DeliveryAttempt{
		ShopID:          shopID,
		EventLogID:      eventLog.ID,
		DestinationType: dest.Platform,
		Environment:     environment,
		Status:          models.AttemptStatusOK,
		ErrorCode:       models.ErrCodeDeduplicated,
	}, ev.ID)

	return DestinationOutcome{
		Platform:     dest.Platform,
		Status:       models.AttemptStatusOK,
		ErrorCode:    models.ErrCodeDeduplicated,
		Deduplicated: true,
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, shopID int64, eventLog *models.EventLog, ev *models.Event, dest models.DestinationRequest, environment, code, message string, out *destination.Outcome) DestinationOutcome {
	attempt := &models.DeliveryAttempt{
		ShopID:          shopID,
		EventLogID:      eventLog.ID,
		DestinationType: dest.Platform,
		Environment:     environment,
		Status:          models.AttemptStatusFail,
		ErrorCode:       code,
		ErrorMessage:    message,
	}
	if out != nil {
		attempt.HTTPStatus = out.HTTPStatus
		attempt.LatencyMs = out.LatencyMs
		attempt.RequestPayload = out.RequestPayload
		attempt.ResponseBody = out.ResponseBody
	}

	p.ledger.Record(ctx, attempt, ev.ID)
	util.DeliveryFailureTotal.WithLabelValues(dest.Platform, code).Inc()
	p.logger.Warn("Destination not attempted",
		zap.String("platform", dest.Platform),
		zap.String("event_id", ev.ID),
		zap.String("error_code", code),
		zap.String("reason", message))

	return DestinationOutcome{
		Platform:  dest.Platform,
		Status:    models.AttemptStatusFail,
		ErrorCode: code,
	}
}

// consentAllows applies the platform consent requirements: GA4 needs
// analytics consent, ad platforms need marketing consent. An absent consent
// object means no gating.
func consentAllows(c *models.Consent, platform string) bool {
	if c == nil {
		return true
	}
	switch platform {
	case models.PlatformGA4:
		return c.Analytics != nil && *c.Analytics
	default:
		return c.Marketing != nil && *c.Marketing
	}
}

// BatchEvent is one entry of a batch submission.
type BatchEvent struct {
	Event         models.RawEvent             `json:"event"`
	ClientEventID string                      `json:"client_event_id,omitempty"`
	Destinations  []models.DestinationRequest `json:"destinations"`
}

// ProcessBatch processes events with bounded concurrency. Results are
// order-preserving. Cancellation stops dispatching new events; in-flight ones
// run to completion.
func (p *Pipeline) ProcessBatch(ctx context.Context, shopID int64, events []BatchEvent, environment string) []*ProcessEventResponse {
	results := make([]*ProcessEventResponse, len(events))
	sem := make(chan struct{}, p.batchConcurrency)
	var wg sync.WaitGroup

	for i := range events {
		// Checked before the select: with a free semaphore slot and a
		// cancelled context both cases would be ready and the pick random.
		if ctx.Err() != nil {
			results[i] = cancelledResponse()
			continue
		}

		select {
		case <-ctx.Done():
			results[i] = cancelledResponse()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := p.ProcessEvent(ctx, &ProcessEventRequest{
				ShopID:        shopID,
				Event:         events[i].Event,
				ClientEventID: events[i].ClientEventID,
				Destinations:  events[i].Destinations,
				Environment:   environment,
			})
			if err != nil {
				p.logger.Error("Batch event processing failed", zap.Int("index", i), zap.Error(err))
				resp = &ProcessEventResponse{
					Success:      false,
					Destinations: []DestinationOutcome{},
					ErrorCode:    models.ErrCodeSendError,
				}
			}
			results[i] = resp
		}(i)
	}

	wg.Wait()
	return results
}

func cancelledResponse() *ProcessEventResponse {
	return &ProcessEventResponse{
		Success:      false,
		Destinations: []DestinationOutcome{},
		ErrorCode:    models.ErrCodeCancelled,
	}
}
