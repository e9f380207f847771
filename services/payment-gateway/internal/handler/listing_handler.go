// services/payment-gateway/internal/handler/listing_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/repository"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/service"
)

type ListingService interface {
	CreateListing(ctx context.Context, req *models.CreateListingRequest) (*models.Listing, error)
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	GetPrice(ctx context.Context, id int64) (decimal.Decimal, error)
	UpdateListing(ctx context.Context, id int64, patch models.ListingPatch) (*models.Listing, error)
}

type ListingHandler struct {
	service ListingService
	logger  *zap.Logger
}

func NewListingHandler(service ListingService, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{
		service: service,
		logger:  logger,
	}
}

// CreateListing handles POST /api/v1/listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	var req models.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.service.CreateListing(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"listing": listing})
}

// GetListing handles GET /api/v1/listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	listing, err := h.service.GetListing(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing": listing})
}

// GetListingPrice handles GET /api/v1/listings/:id/price. The price shown
// here may lag an update briefly; checkout always charges the stored price.
func (h *ListingHandler) GetListingPrice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	price, err := h.service.GetPrice(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing_id": id, "price": price.StringFixed(2)})
}

// UpdateListing handles PATCH /api/v1/listings/:id
func (h *ListingHandler) UpdateListing(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var patch models.ListingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.service.UpdateListing(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"listing": listing})
}

func (h *ListingHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
	case errors.Is(err, service.ErrInvalidListing), errors.Is(err, service.ErrEmptyPatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("listing request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process listing"})
	}
}
