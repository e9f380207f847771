// services/payment-gateway/internal/repository/postgres_listing_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
)

const listingColumns = `
	id, user_id, title, description, city, district, street,
	apartment_number, room_type, price, created_at, updated_at`

type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts the listing and sets its generated ID.
func (r *ListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO listings (
			user_id, title, description, city, district, street,
			apartment_number, room_type, price, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		listing.UserID,
		listing.Title,
		listing.Description,
		listing.City,
		listing.District,
		listing.Street,
		listing.ApartmentNumber,
		listing.RoomType,
		listing.Price,
		listing.CreatedAt,
		listing.UpdatedAt,
	).Scan(&listing.ID)
}

func (r *ListingRepository) GetByID(ctx context.Context, id int64) (*models.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	listing := &models.Listing{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&listing.ID,
		&listing.UserID,
		&listing.Title,
		&listing.Description,
		&listing.City,
		&listing.District,
		&listing.Street,
		&listing.ApartmentNumber,
		&listing.RoomType,
		&listing.Price,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// GetPrice reads only the price column.
func (r *ListingRepository) GetPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var price decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT price FROM listings WHERE id = $1`, id).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrListingNotFound
	}
	return price, err
}

func (r *ListingRepository) Update(ctx context.Context, listing *models.Listing) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE listings
		SET title = $1, description = $2, city = $3, district = $4, street = $5,
			apartment_number = $6, room_type = $7, price = $8, updated_at = $9
		WHERE id = $10`

	result, err := r.db.ExecContext(ctx, query,
		listing.Title,
		listing.Description,
		listing.City,
		listing.District,
		listing.Street,
		listing.ApartmentNumber,
		listing.RoomType,
		listing.Price,
		listing.UpdatedAt,
		listing.ID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrListingNotFound
	}
	return nil
}
