// services/payment-gateway/internal/service/transaction_id.go
package service

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	transactionIDPrefix = "TXN"
	transactionIDLayout = "20060102150405"
)

// TransactionIDSource produces transaction identifiers.
type TransactionIDSource interface {
	Generate() string
}

// TransactionIDGenerator builds ids of the form TXN-20261018093015-4F1A9C02B7DE.
// Uniqueness is enforced by the store; the 48-bit suffix only makes
// collisions rare.
type TransactionIDGenerator struct {
	now    func() time.Time
	suffix func() string
}

func NewTransactionIDGenerator() *TransactionIDGenerator {
	return &TransactionIDGenerator{
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// Generate returns a new uppercased transaction id.
func (g *TransactionIDGenerator) Generate() string {
	var b strings.Builder
	b.WriteString(transactionIDPrefix)
	b.WriteByte('-')
	b.WriteString(g.now().UTC().Format(transactionIDLayout))
	b.WriteByte('-')
	b.WriteString(g.suffix())
	return strings.ToUpper(b.String())
}

// randomSuffix takes the last six bytes of a v4 UUID, which carry no
// version or variant bits.
func randomSuffix() string {
	id := uuid.New()
	return hex.EncodeToString(id[10:])
}
