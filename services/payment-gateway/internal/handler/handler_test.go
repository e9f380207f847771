// services/payment-gateway/internal/handler/handler_test.go
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/repository"
	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/service"
)

type stubPayments struct {
	result   *models.Payment
	err      error
	received *models.PaymentRequest
	list     []*models.Payment
}

func (s *stubPayments) ProcessPayment(_ context.Context, req *models.PaymentRequest) (*models.Payment, error) {
	s.received = req
	return s.result, s.err
}

func (s *stubPayments) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	if s.result != nil && s.result.ID == id {
		return s.result, nil
	}
	return nil, repository.ErrPaymentNotFound
}

func (s *stubPayments) ListPayments(_ context.Context, _ int64, _ int) ([]*models.Payment, error) {
	return s.list, s.err
}

type stubListings struct {
	listing *models.Listing
	err     error
	patch   models.ListingPatch
}

func (s *stubListings) CreateListing(_ context.Context, req *models.CreateListingRequest) (*models.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Listing{ID: 1, Title: req.Title, City: req.City, Price: req.Price}, nil
}

func (s *stubListings) GetListing(_ context.Context, id int64) (*models.Listing, error) {
	if s.listing == nil || s.listing.ID != id {
		return nil, repository.ErrListingNotFound
	}
	return s.listing, nil
}

func (s *stubListings) GetPrice(_ context.Context, id int64) (decimal.Decimal, error) {
	if s.listing == nil || s.listing.ID != id {
		return decimal.Zero, repository.ErrListingNotFound
	}
	return s.listing.Price, nil
}

func (s *stubListings) UpdateListing(_ context.Context, _ int64, patch models.ListingPatch) (*models.Listing, error) {
	s.patch = patch
	return s.listing, s.err
}

func newRouter(payments *stubPayments, listings *stubListings) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router,
		NewPaymentHandler(payments, zap.NewNop()),
		NewListingHandler(listings, zap.NewNop()))
	return router
}

func checkoutBody() map[string]any {
	return map[string]any{
		"user_id":          11,
		"listing_id":       1,
		"payment_method":   "CreditCard",
		"card_number":      "4556737586899855",
		"card_holder_name": "Ayse Yilmaz",
		"expiry_date":      "12/28",
		"cvv":              "123",
		"billing_address":  "Ataturk Caddesi No 15",
		"billing_city":     "Ankara",
		"postal_code":      "06100",
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func failedPayment(code service.ReasonCode, status models.PaymentState) *models.Payment {
	reason := "payment could not be processed"
	return &models.Payment{ID: "pay-2", Status: status, FailureCode: string(code), FailureReason: &reason}
}

func TestCreatePaymentStatusCodes(t *testing.T) {
	masked := "**** **** **** 9855"
	tests := []struct {
		name       string
		result     *models.Payment
		err        error
		wantStatus int
	}{
		{
			name:       "settled",
			result:     &models.Payment{ID: "pay-1", Status: models.StateSettled, IsSuccessful: true, MaskedCardNumber: &masked},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "declined",
			result:     failedPayment(service.ReasonSettlementDeclined, models.StateDeclined),
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name:       "rejected",
			result:     failedPayment(service.ReasonFailedChecksum, models.StateRejected),
			wantStatus: http.StatusPaymentRequired,
		},
		{name: "item not found", err: service.ErrItemNotFound, wantStatus: http.StatusNotFound},
		{name: "conflict", err: fmt.Errorf("%w: TXN-1", service.ErrPersistenceConflict), wantStatus: http.StatusConflict},
		{name: "idempotency key in progress", err: service.ErrIdempotencyInProgress, wantStatus: http.StatusConflict},
		{name: "idempotency key reused", err: service.ErrIdempotencyKeyReused, wantStatus: http.StatusUnprocessableEntity},
		{name: "persistence failure", err: fmt.Errorf("%w: %w", service.ErrPersistenceFailure, errors.New("disk full")), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &stubPayments{result: tt.result, err: tt.err}
			router := newRouter(payments, &stubListings{})

			w := doJSON(t, router, http.MethodPost, "/api/v1/payments", checkoutBody(), nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotContains(t, w.Body.String(), "4556737586899855")
			assert.NotContains(t, w.Body.String(), `"cvv"`)

			if tt.result != nil {
				var resp models.PaymentResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.result.ID, resp.Payment.ID)
			}
		})
	}
}

func TestCreateListingPaymentUsesPathID(t *testing.T) {
	payments := &stubPayments{result: &models.Payment{ID: "pay-1", IsSuccessful: true}}
	router := newRouter(payments, &stubListings{})

	body := checkoutBody()
	delete(body, "listing_id")
	w := doJSON(t, router, http.MethodPost, "/api/v1/listings/42/payments", body,
		map[string]string{IdempotencyKeyHeader: "order-42"})

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, payments.received)
	assert.Equal(t, int64(42), payments.received.ListingID)
	assert.Equal(t, "order-42", payments.received.IdempotencyKey)
	assert.Equal(t, "4556737586899855", payments.received.CardNumber)
}

func TestCreatePaymentBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		mutate func(map[string]any)
	}{
		{name: "short holder name", path: "/api/v1/payments", mutate: func(b map[string]any) { b["card_holder_name"] = "A" }},
		{name: "postal code", path: "/api/v1/payments", mutate: func(b map[string]any) { b["postal_code"] = "6100" }},
		{name: "short billing address", path: "/api/v1/payments", mutate: func(b map[string]any) { b["billing_address"] = "Short" }},
		{name: "missing listing", path: "/api/v1/payments", mutate: func(b map[string]any) { delete(b, "listing_id") }},
		{name: "bad path id", path: "/api/v1/listings/abc/payments", mutate: func(map[string]any) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &stubPayments{}
			router := newRouter(payments, &stubListings{})

			body := checkoutBody()
			tt.mutate(body)
			w := doJSON(t, router, http.MethodPost, tt.path, body, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, payments.received, "no record for shape errors")
		})
	}
}

func TestCreatePaymentCardFieldsAreNotBound(t *testing.T) {
	payments := &stubPayments{result: failedPayment(service.ReasonInvalidFormat, models.StateRejected)}
	router := newRouter(payments, &stubListings{})

	body := checkoutBody()
	body["card_number"] = "not a card"
	body["cvv"] = ""
	w := doJSON(t, router, http.MethodPost, "/api/v1/payments", body, nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	require.NotNil(t, payments.received)
}

func TestGetAndListPayments(t *testing.T) {
	payments := &stubPayments{
		result: &models.Payment{ID: "pay-1", TransactionID: "TXN-1"},
		list:   []*models.Payment{{ID: "pay-1"}},
	}
	router := newRouter(payments, &stubListings{})

	w := doJSON(t, router, http.MethodGet, "/api/v1/payments/pay-1", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TXN-1")

	w = doJSON(t, router, http.MethodGet, "/api/v1/payments/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/payments?user_id=11", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pay-1")

	w = doJSON(t, router, http.MethodGet, "/api/v1/payments", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListingEndpoints(t *testing.T) {
	listing := &models.Listing{ID: 7, Title: "Room", City: "Bursa", Price: decimal.NewFromInt(100)}
	listings := &stubListings{listing: listing}
	router := newRouter(&stubPayments{}, listings)

	w := doJSON(t, router, http.MethodPost, "/api/v1/listings", map[string]any{
		"user_id": 3, "title": "Loft", "city": "Izmir", "price": "899.99",
	}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"price":"899.99"`)

	w = doJSON(t, router, http.MethodGet, "/api/v1/listings/7", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/listings/8", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/listings/7/price", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"listing_id":7,"price":"100.00"}`, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/listings/8/price", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/api/v1/listings/7", map[string]any{"price": "120"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, listings.patch.Price.Set)
	assert.False(t, listings.patch.Title.Set)

	listings.err = fmt.Errorf("%w: price must be positive", service.ErrInvalidListing)
	w = doJSON(t, router, http.MethodPatch, "/api/v1/listings/7", map[string]any{"price": "0"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
