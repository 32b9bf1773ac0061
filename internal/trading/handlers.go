package trading

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/klear-splitter/internal/types"
	"github.com/ksred/klear-splitter/pkg/response"
)

// IdempotencyHeader carries the optional client deduplication token
const IdempotencyHeader = "Idempotency-Key"

// GinHandlers contains HTTP handlers for trading endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for trading endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("userID")
	if userID == "" {
		response.Unauthorized(c, "Missing authentication claims")
		return "", false
	}
	return userID, true
}

// CreateOrderHandler handles POST requests splitting an order across a portfolio.
// Requires JWTAuth; the Idempotency-Key header is optional.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		var req types.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.service.CreateOrder(c.Request.Context(), req, userID, c.GetHeader(IdempotencyHeader))
		response.Handle(c, order, err)
	}
}

// ListOrdersHandler handles GET requests listing the caller's orders
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		orders, err := h.service.ListOrders(c.Request.Context(), userID)
		response.Handle(c, orders, err)
	}
}

// GetOrderHandler handles GET requests for one of the caller's orders.
// URL parameter: order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		order, err := h.service.GetOrder(c.Request.Context(), orderID, userID)
		response.Handle(c, order, err)
	}
}

// HoldingsHandler handles GET requests for the caller's holdings summary
func (h *GinHandlers) HoldingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		summary, err := h.service.GetHoldingsSummary(c.Request.Context(), userID)
		response.Handle(c, summary, err)
	}
}

// SweepIdempotencyHandler handles POST requests evicting expired
// idempotency records. Requires InternalAuth.
func (h *GinHandlers) SweepIdempotencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		removed := h.service.EvictExpiredIdempotencyRecords()
		response.OK(c, types.SweepResponse{
			Removed:   removed,
			Timestamp: time.Now().UTC(),
		})
	}
}
