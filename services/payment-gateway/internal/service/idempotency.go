// services/payment-gateway/internal/service/idempotency.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tae5567/globalpay-gateway/services/payment-gateway/internal/models"
	"github.com/tae5567/globalpay-gateway/shared/pkg/redis"
)

var (
	// ErrIdempotencyKeyReused means the key already answered a request for a
	// different listing, method or card.
	ErrIdempotencyKeyReused = errors.New("idempotency key was used for a different request")

	// ErrIdempotencyInProgress means another request holding the key has not
	// finished yet.
	ErrIdempotencyInProgress = errors.New("a request with this idempotency key is in progress")
)

// pendingTTL bounds how long an unfinished claim blocks its key.
const pendingTTL = time.Minute

// IdempotencyCache ties a payer's Idempotency-Key to one request and its
// record.
type IdempotencyCache interface {
	// Claim reserves the key for a request with the given fingerprint. It
	// returns nil, nil when the caller now owns the key and the stored record
	// when the same request already completed.
	Claim(ctx context.Context, userID int64, key, fingerprint string) (*models.Payment, error)
	// Complete stores the record produced under a claimed key.
	Complete(ctx context.Context, userID int64, key, fingerprint string, payment *models.Payment) error
	// Release drops a claim whose request produced no record.
	Release(ctx context.Context, userID int64, key string) error
}

// KeyValueStore is the subset of the redis client the caches need.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// RequestFingerprint identifies what a checkout asks for: the listing, the
// method and the last four card digits.
func RequestFingerprint(req *models.PaymentRequest) string {
	return fmt.Sprintf("%d|%s|%s", req.ListingID, req.PaymentMethod, lastFour(NormalizeCardNumber(req.CardNumber)))
}

type idempotencyEntry struct {
	Fingerprint string          `json:"fingerprint"`
	Payment     *models.Payment `json:"payment,omitempty"`
}

type RedisIdempotencyCache struct {
	store KeyValueStore
	ttl   time.Duration
}

func NewRedisIdempotencyCache(store KeyValueStore, ttl time.Duration) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{store: store, ttl: ttl}
}

func idempotencyKey(userID int64, key string) string {
	return fmt.Sprintf("idempotency:%d:%s", userID, key)
}

func (c *RedisIdempotencyCache) Claim(ctx context.Context, userID int64, key, fingerprint string) (*models.Payment, error) {
	placeholder, err := json.Marshal(idempotencyEntry{Fingerprint: fingerprint})
	if err != nil {
		return nil, err
	}

	// A claim can expire between SETNX and GET; one more round settles it.
	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := c.store.SetNX(ctx, idempotencyKey(userID, key), placeholder, pendingTTL)
		if err != nil {
			return nil, err
		}
		if claimed {
			return nil, nil
		}

		entry, err := c.load(ctx, userID, key)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		if entry.Fingerprint != fingerprint {
			return nil, ErrIdempotencyKeyReused
		}
		if entry.Payment == nil {
			return nil, ErrIdempotencyInProgress
		}
		entry.Payment.IdempotencyKey = key
		return entry.Payment, nil
	}
	return nil, ErrIdempotencyInProgress
}

func (c *RedisIdempotencyCache) Complete(ctx context.Context, userID int64, key, fingerprint string, payment *models.Payment) error {
	data, err := json.Marshal(idempotencyEntry{Fingerprint: fingerprint, Payment: payment})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, idempotencyKey(userID, key), data, c.ttl)
}

func (c *RedisIdempotencyCache) Release(ctx context.Context, userID int64, key string) error {
	return c.store.Delete(ctx, idempotencyKey(userID, key))
}

func (c *RedisIdempotencyCache) load(ctx context.Context, userID int64, key string) (*idempotencyEntry, error) {
	raw, err := c.store.Get(ctx, idempotencyKey(userID, key))
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry idempotencyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency entry: %w", err)
	}
	return &entry, nil
}
