// services/payment-gateway/internal/repository/price_cache_test.go
package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tae5567/globalpay-gateway/shared/pkg/redis"
)

type countingSource struct {
	prices map[int64]decimal.Decimal
	calls  int
	// afterRead runs once, after the price has been read.
	afterRead func()
}

func (s *countingSource) GetPrice(_ context.Context, id int64) (decimal.Decimal, error) {
	s.calls++
	price, ok := s.prices[id]
	if !ok {
		return decimal.Zero, ErrListingNotFound
	}
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return price, nil
}

type mapCache struct {
	values map[string]string
	getErr error
	setErr error
	delErr error
}

func (m *mapCache) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return v, nil
}

func (m *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value.(string)
	return nil
}

func (m *mapCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.values, key)
	return nil
}

func TestCachedPriceLookup(t *testing.T) {
	source := &countingSource{prices: map[int64]decimal.Decimal{1: decimal.RequireFromString("1250.50")}}
	cache := &mapCache{values: map[string]string{}}
	lookup := NewCachedPriceLookup(source, cache, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		price, err := lookup.GetPrice(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "1250.50", price.StringFixed(2))
	}
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, "1250.5", cache.values["price:listing:1"])

	source.prices[1] = decimal.RequireFromString("1300")
	require.NoError(t, lookup.Refresh(ctx, 1, source.prices[1]))
	price, err := lookup.GetPrice(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "1300.00", price.StringFixed(2))
	assert.Equal(t, 1, source.calls)
}

func TestCachedPriceLookupUpdateDuringFill(t *testing.T) {
	tests := []struct {
		name     string
		setErr   error
		delErr   error
		wantErr  bool
		wantNext string
	}{
		{
			name:     "refresh overwrites the entry",
			wantNext: "250.00",
		},
		{
			name:    "failed refresh is reported",
			setErr:  errors.New("write timeout"),
			wantErr: true,
		},
		{
			name:    "failed refresh and drop are reported",
			setErr:  errors.New("write timeout"),
			delErr:  errors.New("write timeout"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cache := &mapCache{values: map[string]string{}}
			source := &countingSource{prices: map[int64]decimal.Decimal{1: decimal.NewFromInt(100)}}
			lookup := NewCachedPriceLookup(source, cache, time.Minute, zap.NewNop())

			// The listing changes after the fill has read the old price
			// and before it writes the cache.
			var refreshErr error
			source.afterRead = func() {
				source.prices[1] = decimal.NewFromInt(250)
				cache.setErr, cache.delErr = tt.setErr, tt.delErr
				refreshErr = lookup.Refresh(ctx, 1, source.prices[1])
				cache.setErr, cache.delErr = nil, nil
			}

			first, err := lookup.GetPrice(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "100.00", first.StringFixed(2))

			if tt.wantErr {
				assert.Error(t, refreshErr)
				return
			}
			require.NoError(t, refreshErr)

			next, err := lookup.GetPrice(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, next.StringFixed(2))
		})
	}
}

func TestCachedPriceLookupMissingListing(t *testing.T) {
	source := &countingSource{prices: map[int64]decimal.Decimal{}}
	cache := &mapCache{values: map[string]string{}}
	lookup := NewCachedPriceLookup(source, cache, time.Minute, zap.NewNop())

	_, err := lookup.GetPrice(context.Background(), 9)
	assert.ErrorIs(t, err, ErrListingNotFound)
	assert.Empty(t, cache.values)
}

func TestCachedPriceLookupCacheDown(t *testing.T) {
	source := &countingSource{prices: map[int64]decimal.Decimal{1: decimal.NewFromInt(10)}}
	cache := &mapCache{values: map[string]string{}, getErr: errors.New("connection refused")}
	lookup := NewCachedPriceLookup(source, cache, time.Minute, zap.NewNop())

	price, err := lookup.GetPrice(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(10)))
}

func TestCachedPriceLookupMalformedEntry(t *testing.T) {
	source := &countingSource{prices: map[int64]decimal.Decimal{1: decimal.NewFromInt(10)}}
	cache := &mapCache{values: map[string]string{"price:listing:1": "not-a-number"}}
	lookup := NewCachedPriceLookup(source, cache, time.Minute, zap.NewNop())

	price, err := lookup.GetPrice(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, "10", cache.values["price:listing:1"])
}
