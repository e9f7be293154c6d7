package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/pinetwork"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// EventPublisher publishes payment lifecycle events for the
// reconciliation worker. May be nil when no broker is wired.
type EventPublisher interface {
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
	PublishPaymentCancelled(ctx context.Context, event *models.PaymentCancelledEvent) error
}

// PaymentCache holds short-lived payment snapshots so repeated reads do
// not hammer the upstream. May be nil when no cache is wired.
type PaymentCache interface {
	CachePaymentStatus(ctx context.Context, paymentID string, payload []byte, ttl time.Duration) error
	GetCachedPaymentStatus(ctx context.Context, paymentID string) ([]byte, error)
}

// paymentCacheTTL bounds how stale a cached payment snapshot can be.
const paymentCacheTTL = 10 * time.Second

// Handler exposes the payment gateway HTTP surface. Every write operation
// is a stateless relay to the Pi Platform API with no request
// deduplication; the only state the gateway touches is the short-lived
// read cache of payment snapshots.
type Handler struct {
	pi        *pinetwork.Client
	publisher EventPublisher
	cache     PaymentCache
	logger    *zap.Logger
}

// NewHandler creates a new gateway handler
func NewHandler(pi *pinetwork.Client, publisher EventPublisher, cache PaymentCache) *Handler {
	return &Handler{
		pi:        pi,
		publisher: publisher,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pi := router.Group("/api/pi")
	{
		pi.POST("/verify-user", h.verifyUser)
		pi.POST("/approve-payment", h.approvePayment)
		pi.POST("/complete-payment", h.completePayment)
		pi.GET("/payments/:paymentId", h.getPayment)
		pi.POST("/cancel-payment", h.cancelPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) verifyUser(c *gin.Context) {
	var req struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AccessToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Access token is required"})
		return
	}

	h.relayAuth(c, "Gateway.VerifyUser", "Failed to verify user with Pi Network",
		func(ctx context.Context) (interface{}, error) {
			return h.pi.Me(ctx, req.AccessToken)
		})
}

func (h *Handler) approvePayment(c *gin.Context) {
	var req struct {
		PaymentID string `json:"paymentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment ID is required"})
		return
	}

	h.relay(c, "Gateway.ApprovePayment", "Failed to approve payment with Pi Network",
		func(ctx context.Context) (interface{}, error) {
			payment, err := h.pi.Approve(ctx, req.PaymentID)
			if err == nil {
				util.PaymentApprovalsTotal.Inc()
			}
			return payment, err
		})
}

func (h *Handler) completePayment(c *gin.Context) {
	var req struct {
		PaymentID string `json:"paymentId"`
		TxID      string `json:"txid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentID == "" || req.TxID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment ID and transaction ID are required"})
		return
	}

	h.relay(c, "Gateway.CompletePayment", "Failed to complete payment with Pi Network",
		func(ctx context.Context) (interface{}, error) {
			payment, err := h.pi.Complete(ctx, req.PaymentID, req.TxID)
			if err != nil {
				return nil, err
			}
			util.PaymentCompletionsTotal.Inc()
			h.publishCompleted(ctx, payment, req.TxID)
			return payment, nil
		})
}

func (h *Handler) getPayment(c *gin.Context) {
	paymentID := c.Param("paymentId")
	if paymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment ID is required"})
		return
	}

	if h.cache != nil {
		payload, err := h.cache.GetCachedPaymentStatus(c.Request.Context(), paymentID)
		if err != nil {
			h.logger.Warn("Payment cache read failed", zap.Error(err))
		} else if payload != nil {
			c.Data(http.StatusOK, "application/json", payload)
			return
		}
	}

	h.relay(c, "Gateway.GetPayment", "Failed to get payment from Pi Network",
		func(ctx context.Context) (interface{}, error) {
			payment, err := h.pi.Get(ctx, paymentID)
			if err != nil {
				return nil, err
			}
			h.cachePayment(ctx, paymentID, payment)
			return payment, nil
		})
}

func (h *Handler) cachePayment(ctx context.Context, paymentID string, payment *pinetwork.Payment) {
	if h.cache == nil {
		return
	}
	payload, err := json.Marshal(payment)
	if err != nil {
		return
	}
	if err := h.cache.CachePaymentStatus(ctx, paymentID, payload, paymentCacheTTL); err != nil {
		h.logger.Warn("Payment cache write failed", zap.Error(err))
	}
}

func (h *Handler) cancelPayment(c *gin.Context) {
	var req struct {
		PaymentID string `json:"paymentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment ID is required"})
		return
	}

	h.relay(c, "Gateway.CancelPayment", "Failed to cancel payment with Pi Network",
		func(ctx context.Context) (interface{}, error) {
			payment, err := h.pi.Cancel(ctx, req.PaymentID)
			if err != nil {
				return nil, err
			}
			util.PaymentCancellationsTotal.Inc()
			h.publishCancelled(ctx, payment)
			return payment, nil
		})
}

// relay runs one upstream call with the uniform error mapping shared by
// all five gateway operations: 500 when the server key is missing, the
// upstream status and body forwarded on rejection, the upstream JSON
// echoed on success.
func (h *Handler) relay(c *gin.Context, spanName, failMsg string, call func(ctx context.Context) (interface{}, error)) {
	h.doRelay(c, spanName, failMsg, false, call)
}

// relayAuth is relay with the verify-user 401 mapping: an upstream 401
// means the caller's token is bad, not a relay failure.
func (h *Handler) relayAuth(c *gin.Context, spanName, failMsg string, call func(ctx context.Context) (interface{}, error)) {
	h.doRelay(c, spanName, failMsg, true, call)
}

func (h *Handler) doRelay(c *gin.Context, spanName, failMsg string, mapUnauthorized bool, call func(ctx context.Context) (interface{}, error)) {
	ctx, span := util.StartSpan(c.Request.Context(), spanName)
	defer span.End()

	if !h.pi.Configured() {
		h.logger.Error("PI_SERVER_API_KEY not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error"})
		return
	}

	result, err := call(ctx)
	if err != nil {
		var apiErr *pinetwork.APIError
		if errors.As(err, &apiErr) {
			h.logger.Error("Pi API error",
				zap.Int("status", apiErr.StatusCode),
				zap.String("body", apiErr.Body))

			if mapUnauthorized && apiErr.StatusCode == http.StatusUnauthorized {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired access token"})
				return
			}
			c.JSON(apiErr.StatusCode, gin.H{
				"error":   failMsg,
				"details": apiErr.Body,
			})
			return
		}

		h.logger.Error("Gateway relay failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) publishCompleted(ctx context.Context, payment *pinetwork.Payment, txid string) {
	if h.publisher == nil {
		return
	}
	event := &models.PaymentCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentCompleted,
			Timestamp: time.Now(),
		},
		PaymentID: payment.Identifier,
		TxID:      txid,
		UserUID:   payment.UserUID,
		AmountPi:  payment.Amount,
	}
	if err := h.publisher.PublishPaymentCompleted(ctx, event); err != nil {
		h.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
	}
}

func (h *Handler) publishCancelled(ctx context.Context, payment *pinetwork.Payment) {
	if h.publisher == nil {
		return
	}
	event := &models.PaymentCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentCancelled,
			Timestamp: time.Now(),
		},
		PaymentID: payment.Identifier,
		UserUID:   payment.UserUID,
	}
	if err := h.publisher.PublishPaymentCancelled(ctx, event); err != nil {
		h.logger.Error("Failed to publish PaymentCancelled event", zap.Error(err))
	}
}

// corsMiddleware answers pre-flight requests without touching upstream
// and attaches permissive cross-origin headers to every response.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")

		if c.Request.Method == http.MethodOptions {
			c.String(http.StatusOK, "ok")
			c.Abort()
			return
		}

		c.Next()
	}
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
