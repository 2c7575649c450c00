package api

import (
	"net/http"
	"strconv"
	"time"

	"pixel-relay/internal/models"
	"pixel-relay/internal/pipeline"
	"pixel-relay/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	pipeline *pipeline.Pipeline
}

// NewHandler creates a new HTTP handler
func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/events", h.processEvent)
		v1.POST("/events/batch", h.processBatch)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type processEventRequest struct {
	ShopID        int64                       `json:"shop_id" binding:"required"`
	Event         models.RawEvent             `json:"event" binding:"required"`
	ClientEventID string                      `json:"client_event_id,omitempty"`
	Destinations  []models.DestinationRequest `json:"destinations" binding:"required,min=1"`
	Environment   string                      `json:"environment"`
}

// processEvent accepts one event for multi-destination delivery. The response
// reports success whenever the event was accepted and logged; downstream
// destination failures are visible in the per-destination outcomes but do not
// turn into an HTTP error.
func (h *Handler) processEvent(c *gin.Context) {
	var req processEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Environment == "" {
		req.Environment = models.EnvironmentLive
	}

	resp, err := h.pipeline.ProcessEvent(c.Request.Context(), &pipeline.ProcessEventRequest{
		ShopID:        req.ShopID,
		Event:         req.Event,
		ClientEventID: req.ClientEventID,
		Destinations:  req.Destinations,
		Environment:   req.Environment,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process event",
			"details": err.Error(),
		})
		return
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

type processBatchRequest struct {
	ShopID      int64                 `json:"shop_id" binding:"required"`
	Events      []pipeline.BatchEvent `json:"events" binding:"required,min=1"`
	Environment string                `json:"environment"`
}

// processBatch accepts a list of events; results are order-preserving, one
// per input event.
func (h *Handler) processBatch(c *gin.Context) {
	var req processBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Environment == "" {
		req.Environment = models.EnvironmentLive
	}

	results := h.pipeline.ProcessBatch(c.Request.Context(), req.ShopID, req.Events, req.Environment)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
