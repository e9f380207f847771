// services/payment-gateway/internal/service/payment_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/repository"
)

var (
	// ErrItemNotFound means there is no listing to charge against. No
	// payment record is produced.
	ErrItemNotFound = errors.New("cannot charge: listing not found")

	// ErrPersistenceConflict means the transaction id collided twice in a row.
	ErrPersistenceConflict = errors.New("transaction id conflict persisted after retry")

	// ErrPersistenceFailure wraps storage errors while saving a record.
	ErrPersistenceFailure = errors.New("failed to persist payment")
)

// maxSaveAttempts is the first save plus one retry with a fresh transaction id.
const maxSaveAttempts = 2

// PriceLookup returns a listing's current price or repository.ErrListingNotFound.
// Checkout charges whatever it returns, so it must read the authoritative store.
type PriceLookup interface {
	GetPrice(ctx context.Context, listingID int64) (decimal.Decimal, error)
}

// PaymentStore persists a record atomically. It returns
// repository.ErrDuplicateTransactionID on a transaction id collision.
type PaymentStore interface {
	Save(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Payment, error)
}

type PaymentService struct {
	prices      PriceLookup
	store       PaymentStore
	decider     SettlementDecider
	ids         TransactionIDSource
	idempotency IdempotencyCache
	metrics     *Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// Option customizes a PaymentService.
type Option func(*PaymentService)

// WithIdempotencyCache replays earlier results for repeated Idempotency-Keys
// and refuses a key reused for a different request.
func WithIdempotencyCache(cache IdempotencyCache) Option {
	return func(s *PaymentService) { s.idempotency = cache }
}

func WithMetrics(m *Metrics) Option {
	return func(s *PaymentService) { s.metrics = m }
}

// WithTransactionIDSource replaces the default generator.
func WithTransactionIDSource(ids TransactionIDSource) Option {
	return func(s *PaymentService) { s.ids = ids }
}

// WithClock sets the time source used for expiry checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *PaymentService) { s.now = now }
}

func NewPaymentService(prices PriceLookup, store PaymentStore, decider SettlementDecider, logger *zap.Logger, opts ...Option) *PaymentService {
	s := &PaymentService{
		prices:  prices,
		store:   store,
		decider: decider,
		ids:     NewTransactionIDGenerator(),
		logger:  logger,
		tracer:  otel.Tracer("payment-gateway/service"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment runs one checkout attempt end to end. Every outcome except
// a missing listing is persisted and returned as a record; declines and
// validation failures are not errors.
func (s *PaymentService) ProcessPayment(ctx context.Context, req *models.PaymentRequest) (*models.Payment, error) {
	start := s.now()

	ctx, span := s.tracer.Start(ctx, "PaymentService.ProcessPayment",
		trace.WithAttributes(
			attribute.Int64("listing.id", req.ListingID),
			attribute.Int64("user.id", req.UserID),
		))
	defer span.End()

	var fingerprint string
	claimed := false
	if req.IdempotencyKey != "" && s.idempotency != nil {
		fingerprint = RequestFingerprint(req)
		replay, err := s.idempotency.Claim(ctx, req.UserID, req.IdempotencyKey, fingerprint)
		switch {
		case errors.Is(err, ErrIdempotencyKeyReused), errors.Is(err, ErrIdempotencyInProgress):
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		case err != nil:
			s.logger.Warn("idempotency claim failed", zap.Error(err))
		case replay != nil:
			s.metrics.IncReplay()
			span.SetAttributes(attribute.Bool("payment.replayed", true))
			return replay, nil
		default:
			claimed = true
		}
	}

	// received -> priced
	amount, err := s.prices.GetPrice(ctx, req.ListingID)
	if err != nil {
		s.releaseClaim(ctx, req, claimed)
		if errors.Is(err, repository.ErrListingNotFound) {
			span.SetStatus(codes.Error, "listing not found")
			return nil, ErrItemNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "price lookup failed")
		return nil, fmt.Errorf("failed to look up listing price: %w", err)
	}

	payment := s.newRecord(req, amount)
	s.evaluate(ctx, req, payment)

	if err := s.persist(ctx, payment); err != nil {
		s.releaseClaim(ctx, req, claimed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, err
	}

	if claimed {
		if err := s.idempotency.Complete(ctx, req.UserID, req.IdempotencyKey, fingerprint, payment); err != nil {
			s.logger.Warn("failed to cache idempotent payment", zap.Error(err))
		}
	}

	s.metrics.ObservePayment(payment, s.now().Sub(start))
	span.SetAttributes(
		attribute.String("payment.status", string(payment.Status)),
		attribute.String("payment.transaction_id", payment.TransactionID),
	)

	s.logger.Info("payment processed",
		zap.String("payment_id", payment.ID),
		zap.String("transaction_id", payment.TransactionID),
		zap.Int64("listing_id", payment.ListingID),
		zap.Int64("user_id", payment.UserID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("status", string(payment.Status)),
		zap.String("failure_code", payment.FailureCode))

	return payment, nil
}

// releaseClaim frees a claimed key after a request that stored no record.
func (s *PaymentService) releaseClaim(ctx context.Context, req *models.PaymentRequest, claimed bool) {
	if !claimed {
		return
	}
	if err := s.idempotency.Release(ctx, req.UserID, req.IdempotencyKey); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.Error(err))
	}
}

// newRecord copies the non-sensitive request fields into a fresh record.
func (s *PaymentService) newRecord(req *models.PaymentRequest, amount decimal.Decimal) *models.Payment {
	return &models.Payment{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		ListingID:      req.ListingID,
		Amount:         amount,
		PaymentMethod:  req.PaymentMethod,
		CardHolderName: req.CardHolderName,
		ExpiryDate:     req.ExpiryDate,
		BillingAddress: req.BillingAddress,
		BillingCity:    req.BillingCity,
		PostalCode:     req.PostalCode,
		Description:    req.Description,
		TransactionID:  s.ids.Generate(),
		Status:         models.StatePriced,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.now().UTC(),
	}
}

// evaluate moves the record from priced to a terminal state.
func (s *PaymentService) evaluate(ctx context.Context, req *models.PaymentRequest, payment *models.Payment) {
	// priced -> validating
	if req.PaymentMethod != models.PaymentMethodCreditCard {
		s.reject(payment, invalid(ReasonUnsupportedMethod, FieldPaymentMethod))
		return
	}
	payment.Status = models.StateValidating

	digits := NormalizeCardNumber(req.CardNumber)
	cardFailure := ValidateCardNumber(req.CardNumber)
	if cardFailure == nil || cardFailure.Code == ReasonFailedChecksum {
		masked := MaskCardNumber(digits)
		payment.MaskedCardNumber = &masked
		payment.CardNetwork = DetectCardNetwork(digits)
	}

	if failure := firstFailure(
		func() *ValidationFailure { return cardFailure },
		func() *ValidationFailure { return ValidateExpiry(req.ExpiryDate, s.now()) },
		func() *ValidationFailure { return ValidateCVV(req.CVV) },
	); failure != nil {
		s.reject(payment, failure)
		return
	}

	// validating -> deciding
	payment.Status = models.StateDeciding
	outcome := s.decider.Decide(ctx, Instrument{Last4: lastFour(digits), Network: payment.CardNetwork}, payment.Amount)
	if outcome.Approved {
		payment.Status = models.StateSettled
		payment.IsSuccessful = true
		return
	}

	reason := outcome.Reason
	if reason == "" {
		reason = ReasonSettlementDeclined
	}
	payment.Status = models.StateDeclined
	s.fail(payment, reason, reasonMessage(reason, ""))
}

// firstFailure runs checks in order and stops at the first failure.
func firstFailure(checks ...func() *ValidationFailure) *ValidationFailure {
	for _, check := range checks {
		if failure := check(); failure != nil {
			return failure
		}
	}
	return nil
}

func (s *PaymentService) reject(payment *models.Payment, failure *ValidationFailure) {
	payment.Status = models.StateRejected
	s.fail(payment, failure.Code, failure.Message())
}

func (s *PaymentService) fail(payment *models.Payment, code ReasonCode, message string) {
	payment.IsSuccessful = false
	payment.FailureCode = string(code)
	payment.FailureReason = &message
}

// persist saves the record, regenerating the transaction id once if it
// collides with an existing one.
func (s *PaymentService) persist(ctx context.Context, payment *models.Payment) error {
	for attempt := 1; ; attempt++ {
		err := s.store.Save(ctx, payment)
		if err == nil {
			return nil
		}

		if !errors.Is(err, repository.ErrDuplicateTransactionID) {
			s.logger.Error("failed to save payment",
				zap.String("payment_id", payment.ID),
				zap.Error(err))
			return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
		}

		s.metrics.IncCollision()
		if attempt >= maxSaveAttempts {
			s.logger.Error("transaction id collision after retry",
				zap.String("payment_id", payment.ID),
				zap.String("transaction_id", payment.TransactionID))
			return fmt.Errorf("%w: %s", ErrPersistenceConflict, payment.TransactionID)
		}

		previous := payment.TransactionID
		payment.TransactionID = s.ids.Generate()
		s.logger.Warn("transaction id collision, retrying",
			zap.String("previous", previous),
			zap.String("transaction_id", payment.TransactionID))
	}
}

// GetPayment retrieves a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.store.GetByID(ctx, paymentID)
}

// ListPayments returns a payer's most recent payments.
func (s *PaymentService) ListPayments(ctx context.Context, userID int64, limit int) ([]*models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByUser(ctx, userID, limit)
}
