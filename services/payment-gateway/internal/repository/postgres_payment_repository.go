// services/payment-gateway/internal/repository/postgres_payment_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
)

const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	transactionIDIndexName = "idx_payments_transaction_id"

	queryTimeout = 5 * time.Second
)

const paymentColumns = `
	id, user_id, listing_id, amount, payment_method, masked_card_number,
	card_network, card_holder_name, expiry_date, billing_address, billing_city,
	postal_code, description, transaction_id, status, is_successful,
	failure_code, failure_reason, idempotency_key, created_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Save inserts the record inside one transaction. Nothing is written when
// it returns an error.
func (r *PaymentRepository) Save(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = tx.ExecContext(ctx, query,
		payment.ID,
		payment.UserID,
		payment.ListingID,
		payment.Amount,
		payment.PaymentMethod,
		payment.MaskedCardNumber,
		payment.CardNetwork,
		payment.CardHolderName,
		payment.ExpiryDate,
		payment.BillingAddress,
		payment.BillingCity,
		payment.PostalCode,
		payment.Description,
		payment.TransactionID,
		payment.Status,
		payment.IsSuccessful,
		payment.FailureCode,
		payment.FailureReason,
		nullString(payment.IdempotencyKey),
		payment.CreatedAt,
	)
	if err != nil {
		return translateInsertError(err)
	}

	return tx.Commit()
}

func translateInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pqUniqueViolation && pqErr.Constraint == transactionIDIndexName:
			return ErrDuplicateTransactionID
		case pqErr.Code == pqForeignKeyViolation:
			return ErrListingNotFound
		}
	}
	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return payment, err
}

// ListByUser returns a payer's payments, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		payment        models.Payment
		network        sql.NullString
		description    sql.NullString
		expiry         sql.NullString
		failureCode    sql.NullString
		idempotencyKey sql.NullString
	)

	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.ListingID,
		&payment.Amount,
		&payment.PaymentMethod,
		&payment.MaskedCardNumber,
		&network,
		&payment.CardHolderName,
		&expiry,
		&payment.BillingAddress,
		&payment.BillingCity,
		&payment.PostalCode,
		&description,
		&payment.TransactionID,
		&payment.Status,
		&payment.IsSuccessful,
		&failureCode,
		&payment.FailureReason,
		&idempotencyKey,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.CardNetwork = network.String
	payment.Description = description.String
	payment.ExpiryDate = expiry.String
	payment.FailureCode = failureCode.String
	payment.IdempotencyKey = idempotencyKey.String
	payment.CreatedAt = payment.CreatedAt.UTC()
	return &payment, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
