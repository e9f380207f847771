// services/payment-gateway/cmd/server/checkout_e2e_test.go
//go:build e2e

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseURL() string {
	if url := os.Getenv("E2E_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func postJSON(t *testing.T, path string, payload any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, baseURL()+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "Failed to reach %s", path)
	defer resp.Body.Close()

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp, result
}

func TestCheckoutE2E(t *testing.T) {
	resp, result := postJSON(t, "/api/v1/listings", map[string]any{
		"user_id": 1,
		"title":   "E2E listing",
		"city":    "Ankara",
		"price":   "150.00",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	listing := result["listing"].(map[string]any)
	listingID := int64(listing["id"].(float64))

	checkout := map[string]any{
		"user_id":          2,
		"payment_method":   "CreditCard",
		"card_number":      "4242424242424242",
		"card_holder_name": "E2E Payer",
		"expiry_date":      "12/" + time.Now().AddDate(2, 0, 0).Format("06"),
		"cvv":              "123",
		"billing_address":  "Kizilay Meydani 1",
		"billing_city":     "Ankara",
		"postal_code":      "06420",
		"description":      "E2E Test Payment",
	}
	key := map[string]string{"Idempotency-Key": "e2e-test-" + time.Now().Format("20060102150405")}
	path := fmt.Sprintf("/api/v1/listings/%d/payments", listingID)

	resp, result = postJSON(t, path, checkout, key)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("Expected status 201 or 402, got %d", resp.StatusCode)
	}

	payment, ok := result["payment"].(map[string]any)
	require.True(t, ok, "Response doesn't contain payment object")
	assert.Equal(t, "150", fmt.Sprint(payment["amount"]))
	assert.Equal(t, "**** **** **** 4242", payment["masked_card_number"])
	assert.NotContains(t, fmt.Sprint(result), "4242424242424242")

	_, replay := postJSON(t, path, checkout, key)
	assert.Equal(t, payment["transaction_id"], replay["payment"].(map[string]any)["transaction_id"])

	resp, _ = postJSON(t, "/api/v1/listings/999999999/payments", checkout, key)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	checkout["card_number"] = "4242424242424241"
	resp, result = postJSON(t, path, checkout, nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "failed_checksum", result["payment"].(map[string]any)["failure_code"])

	resp, _ = postJSON(t, "/api/v1/listings/999999999/payments", checkout, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
