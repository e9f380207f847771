// services/payment-gateway/internal/repository/errors.go
package repository

import "errors"

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicateTransactionID reports a unique constraint violation on
	// the payment's transaction id. Nothing was written.
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
)
