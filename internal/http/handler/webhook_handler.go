package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amitsajwan/AgenticAiProperties/internal/metrics"
	"github.com/amitsajwan/AgenticAiProperties/internal/webhook"
	"github.com/amitsajwan/AgenticAiProperties/internal/worker"
)

const maxDeliveryBytes = 1 << 20

// Dispatcher processes one classified delivery. Implemented by
// service.SyncService.
type Dispatcher interface {
	ProcessDelivery(ctx context.Context, delivery *webhook.Delivery) error
}

// Submitter enqueues background work. Implemented by worker.Pool.
type Submitter interface {
	Submit(task worker.Task) error
}

// WebhookHandler owns the inbound webhook surface: the subscription
// handshake and signed deliveries. Only authentication and classification
// happen on the request path; everything else is queued.
type WebhookHandler struct {
	verifier    *webhook.Verifier
	verifyToken string
	dispatcher  Dispatcher
	pool        Submitter
	node        *snowflake.Node
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewWebhookHandler wires the webhook endpoints.
func NewWebhookHandler(verifier *webhook.Verifier, verifyToken string, dispatcher Dispatcher, pool Submitter, node *snowflake.Node, logger *zap.Logger, m *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{
		verifier:    verifier,
		verifyToken: verifyToken,
		dispatcher:  dispatcher,
		pool:        pool,
		node:        node,
		logger:      logger,
		metrics:     m,
	}
}

// Verify answers the platform's subscription handshake: echo hub.challenge
// when hub.verify_token matches the configured secret. No state mutation.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	challenge := c.Query("hub.challenge")
	verifyToken := c.Query("hub.verify_token")

	if verifyToken != h.verifyToken || h.verifyToken == "" {
		h.logger.Warn("webhook verification rejected", zap.String("mode", mode))
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid verify token"})
		return
	}

	c.String(http.StatusOK, challenge)
}

// Deliver authenticates and classifies one delivery synchronously, queues
// its processing, and acknowledges. The sender only ever sees the
// authentication/schema outcome; downstream failures surface in logs and
// metrics.
func (h *WebhookHandler) Deliver(c *gin.Context) {
	// Read one byte past the cap so an oversized body is detected instead
	// of silently truncated into a signature mismatch.
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDeliveryBytes+1))
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failure"})
		return
	}
	if len(body) > maxDeliveryBytes {
		h.logger.Warn("webhook body exceeds size cap", zap.Int("cap_bytes", maxDeliveryBytes))
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	if !h.verifier.Verify(body, c.GetHeader(webhook.SignatureHeader)) {
		h.logger.Warn("invalid webhook signature", zap.Int("body_len", len(body)))
		if h.metrics != nil {
			h.metrics.SignatureFailures.Inc()
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	delivery, err := webhook.Parse(body)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrMalformedPayload):
			h.logger.Warn("malformed webhook payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		case errors.Is(err, webhook.ErrInvalidSchema):
			h.logger.Warn("schema-invalid webhook payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload structure"})
		default:
			h.logger.Error("unexpected classification failure", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "classification failure"})
		}
		return
	}

	deliveryID := h.node.Generate().String()
	logger := h.logger.With(
		zap.String("delivery_id", deliveryID),
		zap.Int("events", len(delivery.Events)),
	)

	err = h.pool.Submit(func(ctx context.Context) {
		if err := h.dispatcher.ProcessDelivery(ctx, delivery); err != nil {
			logger.Error("delivery processed with failures", zap.Error(err))
			return
		}
		logger.Info("delivery processed")
	})
	if err != nil {
		// Refusing now makes the sender redeliver; acking work we dropped
		// would lose the events.
		logger.Warn("delivery rejected, queue saturated", zap.Error(err))
		if h.metrics != nil {
			h.metrics.DeliveriesDropped.Inc()
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy"})
		return
	}

	if h.metrics != nil {
		h.metrics.DeliveriesAccepted.Inc()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
