package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"pixel-relay/internal/broker"
	"pixel-relay/internal/models"
	"pixel-relay/internal/pipeline"
	"pixel-relay/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// IngestWorker consumes raw pixel events from the ingest topic and drives
// them through the pipeline. The upstream webhook endpoint enqueues here
// after shape validation.
type IngestWorker struct {
	consumer *broker.Consumer
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

func NewIngestWorker(consumer *broker.Consumer, p *pipeline.Pipeline) *IngestWorker {
	return &IngestWorker{
		consumer: consumer,
		pipeline: p,
		logger:   util.GetLogger(),
	}
}

// Start consumes until the context is cancelled.
func (w *IngestWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ingest worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker.
func (w *IngestWorker) Stop() error {
	w.logger.Info("Stopping ingest worker")
	return w.consumer.Close()
}

func (w *IngestWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var envelope models.PixelEventReceived
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		// Malformed messages cannot succeed on redelivery; log and commit.
		w.logger.Error("Dropping malformed ingest message", zap.Error(err))
		return nil
	}

	resp, err := w.pipeline.ProcessEvent(ctx, &pipeline.ProcessEventRequest{
		ShopID:        envelope.ShopID,
		Event:         envelope.Event,
		ClientEventID: envelope.ClientEventID,
		Destinations:  envelope.Destinations,
		Environment:   envelope.Environment,
	})
	if err != nil {
		// The event could not be durably logged; leave the message
		// uncommitted so the group redelivers it. The dedup key makes the
		// retry safe.
		return fmt.Errorf("process ingest event: %w", err)
	}

	w.logger.Debug("Processed ingest event",
		zap.String("event_id", resp.EventID),
		zap.Bool("success", resp.Success),
		zap.Int("destinations", len(resp.Destinations)))
	return nil
}
