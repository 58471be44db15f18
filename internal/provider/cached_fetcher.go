package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ RateFetcher = (*CachedRateFetcher)(nil)

// CachedRateFetcher wraps a RateFetcher with Redis caching.
type CachedRateFetcher struct {
	fetcher      RateFetcher
	cache        *redis.Client
	ttl          time.Duration
	providerName string
}

// NewCachedRateFetcher creates a new CachedRateFetcher.
func NewCachedRateFetcher(fetcher RateFetcher, cache *redis.Client, ttl time.Duration, providerName string) *CachedRateFetcher {
	return &CachedRateFetcher{
		fetcher:      fetcher,
		cache:        cache,
		ttl:          ttl,
		providerName: providerName,
	}
}

// The USD flag is part of the key: a quote cached without the USD rate must
// not satisfy a request that needs it.
func (f *CachedRateFetcher) cacheKey(currency, nativeCurrency string, includeUSDRate bool) string {
	return fmt.Sprintf("rate_cache:%s:{%s:%s}:usd=%t", f.providerName, nativeCurrency, currency, includeUSDRate)
}

// FetchRate attempts to serve the quote from cache before calling the underlying fetcher.
func (f *CachedRateFetcher) FetchRate(ctx context.Context, currency, nativeCurrency string, includeUSDRate bool) (*Quote, error) {
	if f.cache == nil {
		return f.fetcher.FetchRate(ctx, currency, nativeCurrency, includeUSDRate)
	}

	key := f.cacheKey(currency, nativeCurrency, includeUSDRate)

	if quote, ok := f.cacheGet(ctx, key, includeUSDRate); ok {
		return quote, nil
	}

	quote, err := f.fetcher.FetchRate(ctx, currency, nativeCurrency, includeUSDRate)
	if err != nil {
		return nil, err
	}

	f.cacheSet(ctx, key, quote)
	return quote, nil
}

func (f *CachedRateFetcher) cacheGet(ctx context.Context, key string, includeUSDRate bool) (*Quote, bool) {
	vals, err := f.cache.HMGet(ctx, key, "rate", "usd_rate", "fetched_at").Result()
	if err != nil || len(vals) != 3 || vals[0] == nil || vals[2] == nil {
		return nil, false
	}

	rate, ok := parseCachedFloat(vals[0])
	if !ok {
		return nil, false
	}
	fetchedAt, ok := parseCachedInt(vals[2])
	if !ok {
		return nil, false
	}

	quote := &Quote{
		ConversionDate: fetchedAt,
		ConversionRate: rate,
	}
	if includeUSDRate {
		usd, ok := parseCachedFloat(vals[1])
		if !ok {
			return nil, false
		}
		quote.USDConversionRate = &usd
	}
	return quote, true
}

func (f *CachedRateFetcher) cacheSet(ctx context.Context, key string, quote *Quote) {
	fields := []any{
		"rate", strconv.FormatFloat(quote.ConversionRate, 'f', -1, 64),
		"fetched_at", strconv.FormatInt(quote.ConversionDate, 10),
	}
	if quote.USDConversionRate != nil {
		fields = append(fields, "usd_rate", strconv.FormatFloat(*quote.USDConversionRate, 'f', -1, 64))
	}

	pipe := f.cache.Pipeline()
	pipe.HSet(ctx, key, fields...)
	pipe.Expire(ctx, key, f.ttl)
	_, _ = pipe.Exec(ctx)
}

func parseCachedFloat(v any) (float64, bool) {
	s, ok := cachedString(v)
	if !ok {
		return 0, false
	}
	fval, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return fval, true
}

func parseCachedInt(v any) (int64, bool) {
	s, ok := cachedString(v)
	if !ok {
		return 0, false
	}
	ival, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ival, true
}

func cachedString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}
