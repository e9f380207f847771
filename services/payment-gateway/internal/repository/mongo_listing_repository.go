// services/payment-gateway/internal/repository/mongo_listing_repository.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
)

const (
	listingsCollection = "listings"
	countersCollection = "counters"
)

type listingDocument struct {
	models.Listing `bson:",inline"`
	Price          primitive.Decimal128 `bson:"price"`
}

type MongoListingRepository struct {
	db *mongo.Database
}

func NewMongoListingRepository(db *mongo.Database) *MongoListingRepository {
	return &MongoListingRepository{db: db}
}

// nextID allocates sequential listing ids so both stores expose int64 ids.
func (r *MongoListingRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": listingsCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate listing id: %w", err)
	}
	return counter.Seq, nil
}

func (r *MongoListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	price, err := toDecimal128(listing.Price)
	if err != nil {
		return err
	}

	listing.ID = id
	if _, err := r.db.Collection(listingsCollection).InsertOne(ctx, listingDocument{Listing: *listing, Price: price}); err != nil {
		listing.ID = 0
		return err
	}
	return nil
}

func (r *MongoListingRepository) GetByID(ctx context.Context, id int64) (*models.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc listingDocument
	err := r.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}

	price, err := fromDecimal128(doc.Price)
	if err != nil {
		return nil, err
	}
	listing := doc.Listing
	listing.Price = price
	return &listing, nil
}

func (r *MongoListingRepository) GetPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc struct {
		Price primitive.Decimal128 `bson:"price"`
	}
	opts := options.FindOne().SetProjection(bson.M{"price": 1})
	err := r.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return decimal.Zero, ErrListingNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return fromDecimal128(doc.Price)
}

func (r *MongoListingRepository) Update(ctx context.Context, listing *models.Listing) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	price, err := toDecimal128(listing.Price)
	if err != nil {
		return err
	}

	result, err := r.db.Collection(listingsCollection).ReplaceOne(ctx,
		bson.M{"_id": listing.ID},
		listingDocument{Listing: *listing, Price: price})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrListingNotFound
	}
	return nil
}
