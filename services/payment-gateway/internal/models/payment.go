// services/payment-gateway/internal/models/payment.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethodCreditCard is the only payment method currently accepted.
const PaymentMethodCreditCard = "CreditCard"

// PaymentState is a step of the checkout pipeline. Only the terminal states
// (settled, declined, rejected) are persisted as a record's status.
type PaymentState string

const (
	StateReceived   PaymentState = "received"
	StatePriced     PaymentState = "priced"
	StateValidating PaymentState = "validating"
	StateDeciding   PaymentState = "deciding"
	StateRejected   PaymentState = "rejected"
	StateSettled    PaymentState = "settled"
	StateDeclined   PaymentState = "declined"
)

// Terminal reports whether the state ends the pipeline.
func (s PaymentState) Terminal() bool {
	return s == StateRejected || s == StateSettled || s == StateDeclined
}

// Payment is the persisted outcome of one checkout attempt. It is written
// once and never updated; it never holds a raw card number or CVV.
type Payment struct {
	ID               string          `json:"id" db:"id" bson:"_id"`
	UserID           int64           `json:"user_id" db:"user_id" bson:"user_id"`
	ListingID        int64           `json:"listing_id" db:"listing_id" bson:"listing_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount" bson:"-"`
	PaymentMethod    string          `json:"payment_method" db:"payment_method" bson:"payment_method"`
	MaskedCardNumber *string         `json:"masked_card_number,omitempty" db:"masked_card_number" bson:"masked_card_number,omitempty"`
	CardNetwork      string          `json:"card_network,omitempty" db:"card_network" bson:"card_network,omitempty"`
	CardHolderName   string          `json:"card_holder_name" db:"card_holder_name" bson:"card_holder_name"`
	ExpiryDate       string          `json:"expiry_date" db:"expiry_date" bson:"expiry_date"`
	BillingAddress   string          `json:"billing_address" db:"billing_address" bson:"billing_address"`
	BillingCity      string          `json:"billing_city" db:"billing_city" bson:"billing_city"`
	PostalCode       string          `json:"postal_code" db:"postal_code" bson:"postal_code"`
	Description      string          `json:"description,omitempty" db:"description" bson:"description,omitempty"`
	TransactionID    string          `json:"transaction_id" db:"transaction_id" bson:"transaction_id"`
	Status           PaymentState    `json:"status" db:"status" bson:"status"`
	IsSuccessful     bool            `json:"is_successful" db:"is_successful" bson:"is_successful"`
	FailureCode      string          `json:"failure_code,omitempty" db:"failure_code" bson:"failure_code,omitempty"`
	FailureReason    *string         `json:"failure_reason,omitempty" db:"failure_reason" bson:"failure_reason,omitempty"`
	IdempotencyKey   string          `json:"-" db:"idempotency_key" bson:"idempotency_key,omitempty"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at" bson:"created_at"`
}

// PaymentRequest is the checkout input. Card number, expiry and CVV carry no
// binding rules; their failures are recorded as rejected payments.
type PaymentRequest struct {
	UserID         int64  `json:"user_id" binding:"required,gt=0"`
	ListingID      int64  `json:"listing_id"`
	PaymentMethod  string `json:"payment_method" binding:"required"`
	CardNumber     string `json:"card_number"`
	CardHolderName string `json:"card_holder_name" binding:"required,min=2,max=50"`
	ExpiryDate     string `json:"expiry_date"`
	CVV            string `json:"cvv"`
	BillingAddress string `json:"billing_address" binding:"required,min=10,max=200"`
	BillingCity    string `json:"billing_city" binding:"required,min=2,max=50"`
	PostalCode     string `json:"postal_code" binding:"required,numeric,len=5"`
	Description    string `json:"description" binding:"max=500"`

	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

// Redacted returns a copy with the card number and CVV removed, safe to log.
func (r PaymentRequest) Redacted() PaymentRequest {
	r.CardNumber = ""
	r.CVV = ""
	return r
}

// PaymentResponse wraps a record for the HTTP layer.
type PaymentResponse struct {
	Payment *Payment `json:"payment"`
	Message string   `json:"message"`
}

// Database schema
const PaymentSchema = `
CREATE TABLE IF NOT EXISTS payments (
    id VARCHAR(36) PRIMARY KEY,
    user_id BIGINT NOT NULL,
    listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE RESTRICT,
    amount NUMERIC(18, 2) NOT NULL,
    payment_method VARCHAR(32) NOT NULL,
    masked_card_number VARCHAR(19),
    card_network VARCHAR(20),
    card_holder_name VARCHAR(50) NOT NULL,
    expiry_date VARCHAR(5),
    billing_address VARCHAR(200) NOT NULL,
    billing_city VARCHAR(50) NOT NULL,
    postal_code VARCHAR(5) NOT NULL,
    description TEXT,
    transaction_id VARCHAR(64) NOT NULL,
    status VARCHAR(20) NOT NULL,
    is_successful BOOLEAN NOT NULL,
    failure_code VARCHAR(32),
    failure_reason TEXT,
    idempotency_key VARCHAR(255),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_transaction_id ON payments (transaction_id);
CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments (created_at);
`
