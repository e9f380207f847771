// services/payment-gateway/internal/models/listing.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a priced item that payments are charged against. Checkout only
// reads its price; the listing endpoints own every write.
type Listing struct {
	ID              int64           `json:"id" db:"id" bson:"_id"`
	UserID          int64           `json:"user_id" db:"user_id" bson:"user_id"`
	Title           string          `json:"title" db:"title" bson:"title"`
	Description     string          `json:"description" db:"description" bson:"description"`
	City            string          `json:"city" db:"city" bson:"city"`
	District        string          `json:"district" db:"district" bson:"district"`
	Street          string          `json:"street" db:"street" bson:"street"`
	ApartmentNumber *string         `json:"apartment_number,omitempty" db:"apartment_number" bson:"apartment_number,omitempty"`
	RoomType        string          `json:"room_type" db:"room_type" bson:"room_type"`
	Price           decimal.Decimal `json:"price" db:"price" bson:"-"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

type CreateListingRequest struct {
	UserID          int64           `json:"user_id" binding:"required,gt=0"`
	Title           string          `json:"title" binding:"required,min=3,max=200"`
	Description     string          `json:"description" binding:"max=2000"`
	City            string          `json:"city" binding:"required,max=50"`
	District        string          `json:"district" binding:"max=50"`
	Street          string          `json:"street" binding:"max=200"`
	ApartmentNumber *string         `json:"apartment_number"`
	RoomType        string          `json:"room_type" binding:"max=20"`
	Price           decimal.Decimal `json:"price"`
}

// ListingPatch carries the fields of a partial listing update. A field is
// applied only when it was present in the request body.
type ListingPatch struct {
	Title           Optional[string]          `json:"title"`
	Description     Optional[string]          `json:"description"`
	City            Optional[string]          `json:"city"`
	District        Optional[string]          `json:"district"`
	Street          Optional[string]          `json:"street"`
	ApartmentNumber Optional[*string]         `json:"apartment_number"`
	RoomType        Optional[string]          `json:"room_type"`
	Price           Optional[decimal.Decimal] `json:"price"`
}

// Empty reports whether the patch sets no field.
func (p ListingPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.City.Set && !p.District.Set &&
		!p.Street.Set && !p.ApartmentNumber.Set && !p.RoomType.Set && !p.Price.Set
}

// Apply overwrites the fields present in the patch and stamps UpdatedAt.
func (p ListingPatch) Apply(l *Listing, now time.Time) {
	p.Title.ApplyTo(&l.Title)
	p.Description.ApplyTo(&l.Description)
	p.City.ApplyTo(&l.City)
	p.District.ApplyTo(&l.District)
	p.Street.ApplyTo(&l.Street)
	p.ApartmentNumber.ApplyTo(&l.ApartmentNumber)
	p.RoomType.ApplyTo(&l.RoomType)
	p.Price.ApplyTo(&l.Price)
	l.UpdatedAt = now
}

// Database schema
const ListingSchema = `
CREATE TABLE IF NOT EXISTS listings (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    city VARCHAR(50) NOT NULL,
    district VARCHAR(50) NOT NULL DEFAULT '',
    street VARCHAR(200) NOT NULL DEFAULT '',
    apartment_number VARCHAR(20),
    room_type VARCHAR(20) NOT NULL DEFAULT '',
    price NUMERIC(18, 2) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_listings_city ON listings (city);
CREATE INDEX IF NOT EXISTS idx_listings_price ON listings (price);
`
