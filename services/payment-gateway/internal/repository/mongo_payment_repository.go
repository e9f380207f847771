// services/payment-gateway/internal/repository/mongo_payment_repository.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
)

const (
	paymentsCollection = "payments"
	mongoOpTimeout     = 5 * time.Second
)

// paymentDocument stores the amount as Decimal128 next to the record fields.
type paymentDocument struct {
	models.Payment `bson:",inline"`
	Amount         primitive.Decimal128 `bson:"amount"`
}

type MongoPaymentRepository struct {
	db *mongo.Database
}

func NewMongoPaymentRepository(db *mongo.Database) *MongoPaymentRepository {
	return &MongoPaymentRepository{db: db}
}

// EnsureIndexes creates the unique transaction id index and the payer index.
func (r *MongoPaymentRepository) EnsureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_transaction_id"),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "listing_id", Value: 1}}},
	}
	if _, err := r.db.Collection(paymentsCollection).Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create payment indexes: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepository) Save(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	amount, err := toDecimal128(payment.Amount)
	if err != nil {
		return err
	}

	_, err = r.db.Collection(paymentsCollection).InsertOne(ctx, paymentDocument{Payment: *payment, Amount: amount})
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), "transaction_id") {
			return ErrDuplicateTransactionID
		}
	}
	return err
}

func (r *MongoPaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc paymentDocument
	err := r.db.Collection(paymentsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toPayment()
}

func (r *MongoPaymentRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.db.Collection(paymentsCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var payments []*models.Payment
	for cursor.Next(ctx) {
		var doc paymentDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		payment, err := doc.toPayment()
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, cursor.Err()
}

func (d paymentDocument) toPayment() (*models.Payment, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	payment := d.Payment
	payment.Amount = amount
	payment.CreatedAt = payment.CreatedAt.UTC()
	return &payment, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode amount %s: %w", v, err)
	}
	return d, nil
}
