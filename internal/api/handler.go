package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"booking-service/internal/bookingerr"
	"booking-service/internal/orchestrator"
	"booking-service/internal/service"
	"booking-service/internal/util"
)

// Handler contains HTTP handlers
type Handler struct {
	quotes *service.QuoteService
	ledger *service.Ledger
	trips  *orchestrator.Orchestrator
}

// NewHandler creates a new HTTP handler. The orchestrator may be nil
// when the instance serves only the booking API side.
func NewHandler(quotes *service.QuoteService, ledger *service.Ledger, trips *orchestrator.Orchestrator) *Handler {
	return &Handler{
		quotes: quotes,
		ledger: ledger,
		trips:  trips,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	booking := router.Group("/api/booking")
	{
		booking.POST("/quote", h.quoteSingle)
		booking.POST("/itinerary/quote", h.quoteItinerary)
		booking.POST("/confirm", h.confirm)
	}

	if h.trips != nil {
		v1 := router.Group("/api/v1")
		{
			v1.POST("/trips/:id/quote/:type/:entityId", h.tripQuoteItem)
			v1.POST("/trips/:id/itinerary/quote", h.tripQuoteItinerary)
			v1.POST("/trips/:id/confirm", h.tripConfirm)
			v1.GET("/trips/:id/quotes", h.tripQuotes)
		}
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

// quoteSingle prices one product
func (h *Handler) quoteSingle(c *gin.Context) {
	var req service.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bookingerr.Errf(bookingerr.Validation, "invalid request body: %v", err))
		return
	}

	resp, err := h.quotes.QuoteSingle(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// quoteItinerary prices a bundle and returns a signed quote token
func (h *Handler) quoteItinerary(c *gin.Context) {
	var req service.ItineraryQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bookingerr.Errf(bookingerr.Validation, "invalid request body: %v", err))
		return
	}

	resp, err := h.quotes.QuoteItinerary(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// confirm turns a quote token into a booked order
func (h *Handler) confirm(c *gin.Context) {
	var req service.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bookingerr.Errf(bookingerr.Validation, "invalid request body: %v", err))
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")

	resp, err := h.ledger.Confirm(c.Request.Context(), &req, idempotencyKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// tripQuoteItem quotes a single item of a trip through the orchestrator
func (h *Handler) tripQuoteItem(c *gin.Context) {
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}
	entityID, ok := pathID(c, "entityId")
	if !ok {
		return
	}

	mirror, err := h.trips.QuoteSingleItem(c.Request.Context(), tripID, c.Param("type"), entityID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mirror)
}

// tripQuoteItinerary quotes every pending item of a trip as one bundle
func (h *Handler) tripQuoteItinerary(c *gin.Context) {
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.trips.QuoteItinerary(c.Request.Context(), tripID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type tripConfirmRequest struct {
	QuoteToken string   `json:"quote_token" binding:"required"`
	ItemRefs   []string `json:"item_refs"`
}

// tripConfirm confirms a quoted trip itinerary
func (h *Handler) tripConfirm(c *gin.Context) {
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req tripConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bookingerr.Errf(bookingerr.Validation, "invalid request body: %v", err))
		return
	}

	resp, err := h.trips.ConfirmBooking(c.Request.Context(), tripID, req.QuoteToken, req.ItemRefs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// tripQuotes returns the mirrored quote state of a trip
func (h *Handler) tripQuotes(c *gin.Context) {
	tripID, ok := pathID(c, "id")
	if !ok {
		return
	}

	quotes, err := h.trips.GetTripQuotes(c.Request.Context(), tripID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		writeError(c, bookingerr.Errf(bookingerr.Validation, "invalid %s parameter", name))
		return 0, false
	}
	return id, true
}

// writeError converts an error kind into the wire error envelope.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	var message string
	var e *bookingerr.Error
	if errors.As(err, &e) {
		message = e.Message
	} else {
		message = "internal error"
	}

	c.JSON(status, gin.H{
		"error_code": code,
		"message":    message,
	})
}

func classify(err error) (int, string) {
	switch bookingerr.KindOf(err) {
	case bookingerr.Validation:
		return http.StatusBadRequest, "ERR_VALIDATION"
	case bookingerr.QuoteExpired:
		return http.StatusConflict, "ERR_QUOTE_EXPIRED"
	case bookingerr.TokenInvalid:
		return http.StatusConflict, "ERR_TOKEN_INVALID"
	case bookingerr.PaymentFailed:
		return http.StatusPaymentRequired, "ERR_PAYMENT_FAILED"
	case bookingerr.PaymentToken:
		return http.StatusBadRequest, "ERR_PAYMENT_TOKEN"
	case bookingerr.IdempotencyMismatch:
		return http.StatusConflict, "ERR_IDEMPOTENCY_MISMATCH"
	default:
		return http.StatusInternalServerError, "ERR_INTERNAL"
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
