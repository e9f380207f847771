package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingPatchUnmarshal(t *testing.T) {
	var patch ListingPatch
	err := json.Unmarshal([]byte(`{"price":"1250.50","apartment_number":null}`), &patch)
	require.NoError(t, err)

	assert.True(t, patch.Price.Set)
	assert.True(t, patch.Price.Value.Equal(decimal.RequireFromString("1250.50")))
	assert.True(t, patch.ApartmentNumber.Set)
	assert.Nil(t, patch.ApartmentNumber.Value)
	assert.False(t, patch.Title.Set)
	assert.False(t, patch.City.Set)
	assert.False(t, patch.Empty())
}

func TestListingPatchApply(t *testing.T) {
	apt := "12B"
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	listing := &Listing{
		ID:              7,
		Title:           "Sea view flat",
		City:            "Izmir",
		ApartmentNumber: &apt,
		Price:           decimal.RequireFromString("900"),
		CreatedAt:       created,
		UpdatedAt:       created,
	}

	now := created.Add(48 * time.Hour)
	ListingPatch{
		City:            Some("Bodrum"),
		ApartmentNumber: Some[*string](nil),
	}.Apply(listing, now)

	assert.Equal(t, "Sea view flat", listing.Title)
	assert.Equal(t, "Bodrum", listing.City)
	assert.Nil(t, listing.ApartmentNumber)
	assert.True(t, listing.Price.Equal(decimal.RequireFromString("900")))
	assert.Equal(t, now, listing.UpdatedAt)
	assert.Equal(t, created, listing.CreatedAt)
}

func TestListingPatchEmpty(t *testing.T) {
	var patch ListingPatch
	require.NoError(t, json.Unmarshal([]byte(`{}`), &patch))
	assert.True(t, patch.Empty())
}

func TestPaymentRequestRedacted(t *testing.T) {
	req := PaymentRequest{CardNumber: "4556737586899855", CVV: "123", CardHolderName: "Ada Lovelace"}
	redacted := req.Redacted()

	assert.Empty(t, redacted.CardNumber)
	assert.Empty(t, redacted.CVV)
	assert.Equal(t, "Ada Lovelace", redacted.CardHolderName)
	assert.Equal(t, "4556737586899855", req.CardNumber)
}

func TestPaymentJSONNeverCarriesSensitiveInput(t *testing.T) {
	masked := "**** **** **** 9855"
	data, err := json.Marshal(&Payment{
		MaskedCardNumber: &masked,
		Amount:           decimal.RequireFromString("10.00"),
		IdempotencyKey:   "secret-key",
	})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "4556737586899855")
	assert.NotContains(t, string(data), "cvv")
	assert.NotContains(t, string(data), "secret-key")
	assert.Contains(t, string(data), `"masked_card_number":"**** **** **** 9855"`)
}

func TestPaymentStateTerminal(t *testing.T) {
	assert.True(t, StateSettled.Terminal())
	assert.True(t, StateDeclined.Terminal())
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateValidating.Terminal())
	assert.False(t, StateReceived.Terminal())
}
