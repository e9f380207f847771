// services/payment-gateway/internal/handler/payment_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/repository"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/service"
	"github.com/tae5567/globalpay-gateway/shared/pkg/middleware"
)

// IdempotencyKeyHeader lets clients retry a checkout without paying twice.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// PaymentService is the checkout surface the handler needs.
type PaymentService interface {
	ProcessPayment(ctx context.Context, req *models.PaymentRequest) (*models.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	ListPayments(ctx context.Context, userID int64, limit int) ([]*models.Payment, error)
}

type PaymentHandler struct {
	service PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(service PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ListingID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id is required"})
		return
	}

	h.process(c, &req)
}

// CreateListingPayment handles POST /api/v1/listings/:id/payments
func (h *PaymentHandler) CreateListingPayment(c *gin.Context) {
	listingID, ok := parseID(c)
	if !ok {
		return
	}

	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ListingID = listingID

	h.process(c, &req)
}

func (h *PaymentHandler) process(c *gin.Context, req *models.PaymentRequest) {
	req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key is too long"})
		return
	}

	payment, err := h.service.ProcessPayment(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, req, err)
		return
	}

	response := models.PaymentResponse{Payment: payment}
	if payment.IsSuccessful {
		response.Message = "payment settled"
		c.JSON(http.StatusCreated, response)
		return
	}

	if payment.FailureReason != nil {
		response.Message = *payment.FailureReason
	}
	c.JSON(http.StatusPaymentRequired, response)
}

func (h *PaymentHandler) respondError(c *gin.Context, req *models.PaymentRequest, err error) {
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Cannot charge: listing not found"})
	case errors.Is(err, service.ErrPersistenceConflict):
		h.logger.Error("payment conflict",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Int64("listing_id", req.ListingID),
			zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "Payment could not be recorded, please retry"})
	case errors.Is(err, service.ErrIdempotencyInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "A request with this Idempotency-Key is still in progress"})
	case errors.Is(err, service.ErrIdempotencyKeyReused):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Idempotency-Key was already used for a different request"})
	default:
		h.logger.Error("failed to process payment",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Int64("listing_id", req.ListingID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process payment"})
	}
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID := c.Param("id")

	payment, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get payment", zap.String("payment_id", paymentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ListPayments handles GET /api/v1/payments?user_id=
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
			return
		}
	}

	payments, err := h.service.ListPayments(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list payments", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list payments"})
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
