package provider

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCachedRateFetcher_FetchRate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	currency := "cad"
	asset := "ETH"
	fetchedAt := time.Now().UTC().UnixMilli()
	quote := &Quote{ConversionDate: fetchedAt, ConversionRate: 2942.17}
	ttl := 10 * time.Second

	t.Run("cache miss then hit", func(t *testing.T) {
		mr.FlushAll()
		mockFetcher := new(MockFetcher)
		mockFetcher.On("FetchRate", mock.Anything, currency, asset, false).Return(quote, nil).Once()

		cached := NewCachedRateFetcher(mockFetcher, rdb, ttl, "test_provider")

		// First call - cache miss
		got, err := cached.FetchRate(context.Background(), currency, asset, false)
		assert.NoError(t, err)
		assert.Equal(t, quote.ConversionRate, got.ConversionRate)
		assert.Equal(t, fetchedAt, got.ConversionDate)
		mockFetcher.AssertExpectations(t)

		// Second call - cache hit (MockFetcher must NOT be called again because of .Once())
		got2, err := cached.FetchRate(context.Background(), currency, asset, false)
		assert.NoError(t, err)
		assert.Equal(t, quote.ConversionRate, got2.ConversionRate)
		assert.Equal(t, fetchedAt, got2.ConversionDate)
	})

	t.Run("usd variant is cached under its own key", func(t *testing.T) {
		mr.FlushAll()
		usd := 2951.02
		usdQuote := &Quote{ConversionDate: fetchedAt, ConversionRate: 2942.17, USDConversionRate: &usd}

		mockFetcher := new(MockFetcher)
		mockFetcher.On("FetchRate", mock.Anything, currency, asset, false).Return(quote, nil).Once()
		mockFetcher.On("FetchRate", mock.Anything, currency, asset, true).Return(usdQuote, nil).Once()

		cached := NewCachedRateFetcher(mockFetcher, rdb, ttl, "test_provider")

		_, err := cached.FetchRate(context.Background(), currency, asset, false)
		assert.NoError(t, err)

		// The cached non-USD quote must not satisfy a request that needs USD.
		got, err := cached.FetchRate(context.Background(), currency, asset, true)
		assert.NoError(t, err)
		if assert.NotNil(t, got.USDConversionRate) {
			assert.Equal(t, usd, *got.USDConversionRate)
		}
		mockFetcher.AssertExpectations(t)

		// USD hit comes back with the rate intact.
		got2, err := cached.FetchRate(context.Background(), currency, asset, true)
		assert.NoError(t, err)
		if assert.NotNil(t, got2.USDConversionRate) {
			assert.Equal(t, usd, *got2.USDConversionRate)
		}
	})

	t.Run("fetcher error is not cached", func(t *testing.T) {
		mr.FlushAll()
		mockFetcher := new(MockFetcher)
		mockFetcher.On("FetchRate", mock.Anything, currency, asset, false).Return(nil, assert.AnError).Once()

		cached := NewCachedRateFetcher(mockFetcher, rdb, ttl, "test_provider")

		_, err := cached.FetchRate(context.Background(), currency, asset, false)
		assert.Error(t, err)

		// Second call - fetcher is called again
		mockFetcher.On("FetchRate", mock.Anything, currency, asset, false).Return(quote, nil).Once()
		got, err := cached.FetchRate(context.Background(), currency, asset, false)
		assert.NoError(t, err)
		assert.Equal(t, quote.ConversionRate, got.ConversionRate)
		mockFetcher.AssertExpectations(t)
	})

	t.Run("cache expires", func(t *testing.T) {
		mr.FlushAll()
		mockFetcher := new(MockFetcher)
		mockFetcher.On("FetchRate", mock.Anything, currency, asset, false).Return(quote, nil).Once()

		cached := NewCachedRateFetcher(mockFetcher, rdb, ttl, "test_provider")

		_, _ = cached.FetchRate(context.Background(), currency, asset, false)

		mr.FastForward(ttl + time.Second)

		// Second call - cache expired, fetcher is called again
		mockFetcher.On("FetchRate", mock.Anything, currency, asset, false).Return(quote, nil).Once()
		_, err := cached.FetchRate(context.Background(), currency, asset, false)
		assert.NoError(t, err)
		mockFetcher.AssertExpectations(t)
	})
}
