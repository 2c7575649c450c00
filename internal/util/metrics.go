package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixel_events_received_total",
		Help: "Total number of pixel events received by the pipeline",
	}, []string{"event_name"})

	ValidationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixel_event_validation_failures_total",
		Help: "Total number of events rejected by validation",
	})

	DataQualityWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixel_event_data_quality_warnings_total",
		Help: "Total number of data-quality warnings raised during normalization",
	}, []string{"kind"})

	DeliverySuccessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "destination_delivery_success_total",
		Help: "Total number of successful destination deliveries",
	}, []string{"platform"})

	DeliveryFailureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "destination_delivery_failure_total",
		Help: "Total number of failed destination deliveries",
	}, []string{"platform", "reason"})

	DedupDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "destination_dedup_dropped_total",
		Help: "Total number of sends skipped because a prior attempt already succeeded",
	}, []string{"platform"})

	ConsentBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "destination_consent_blocked_total",
		Help: "Total number of sends skipped for missing shopper consent",
	}, []string{"platform"})

	DeliveryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "destination_delivery_latency_seconds",
		Help:    "Latency of outbound destination calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})

	LedgerWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delivery_ledger_write_failures_total",
		Help: "Total number of failed delivery ledger writes",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
