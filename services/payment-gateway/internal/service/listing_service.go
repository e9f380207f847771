// services/payment-gateway/internal/service/listing_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
)

var (
	ErrInvalidListing = errors.New("invalid listing")
	ErrEmptyPatch     = errors.New("patch sets no field")
)

// ListingStore persists listings.
type ListingStore interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id int64) (*models.Listing, error)
	Update(ctx context.Context, listing *models.Listing) error
}

// PriceCache serves listing prices for display. Checkout never reads it.
type PriceCache interface {
	GetPrice(ctx context.Context, listingID int64) (decimal.Decimal, error)
	Refresh(ctx context.Context, listingID int64, price decimal.Decimal) error
}

type ListingService struct {
	store  ListingStore
	prices PriceCache
	logger *zap.Logger
	now    func() time.Time
}

func NewListingService(store ListingStore, prices PriceCache, logger *zap.Logger) *ListingService {
	return &ListingService{
		store:  store,
		prices: prices,
		logger: logger,
		now:    time.Now,
	}
}

// CreateListing validates and stores a new listing.
func (s *ListingService) CreateListing(ctx context.Context, req *models.CreateListingRequest) (*models.Listing, error) {
	now := s.now().UTC()
	listing := &models.Listing{
		UserID:          req.UserID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		City:            strings.TrimSpace(req.City),
		District:        req.District,
		Street:          req.Street,
		ApartmentNumber: req.ApartmentNumber,
		RoomType:        req.RoomType,
		Price:           req.Price.Round(2),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := validateListing(listing); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	s.logger.Info("listing created",
		zap.Int64("listing_id", listing.ID),
		zap.Int64("user_id", listing.UserID),
		zap.String("price", listing.Price.StringFixed(2)))

	return listing, nil
}

func (s *ListingService) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	return s.store.GetByID(ctx, id)
}

// GetPrice returns the displayed price of a listing, cached when a price
// cache is configured.
func (s *ListingService) GetPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	if s.prices != nil {
		return s.prices.GetPrice(ctx, id)
	}
	listing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return listing.Price, nil
}

// UpdateListing applies a partial update. A price change is written through
// to the price cache.
func (s *ListingService) UpdateListing(ctx context.Context, id int64, patch models.ListingPatch) (*models.Listing, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}

	listing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(listing, s.now().UTC())
	listing.Title = strings.TrimSpace(listing.Title)
	listing.City = strings.TrimSpace(listing.City)
	listing.Price = listing.Price.Round(2)
	if err := validateListing(listing); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	if patch.Price.Set && s.prices != nil {
		if err := s.prices.Refresh(ctx, id, listing.Price); err != nil {
			s.logger.Error("failed to refresh cached price",
				zap.Int64("listing_id", id),
				zap.Error(err))
		}
	}

	return listing, nil
}

func validateListing(l *models.Listing) error {
	switch {
	case l.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidListing)
	case l.City == "":
		return fmt.Errorf("%w: city is required", ErrInvalidListing)
	case !l.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive", ErrInvalidListing)
	}
	return nil
}
