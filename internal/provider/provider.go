// Package provider implements external price-quote sources for fetching
// asset-to-currency conversion rates.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Quote is the result of a single rate fetch.
type Quote struct {
	// ConversionDate is when the rate was fetched, in milliseconds since epoch.
	ConversionDate int64
	// ConversionRate is the rate from the native asset to the requested currency.
	ConversionRate float64
	// USDConversionRate is set only when the USD rate was requested.
	USDConversionRate *float64
}

// RateFetcher fetches the conversion rate from a native asset (e.g. "ETH")
// to a quote currency (e.g. "usd") from an external source.
type RateFetcher interface {
	FetchRate(ctx context.Context, currency, nativeCurrency string, includeUSDRate bool) (*Quote, error)
}

// FetchError indicates the rate source failed or returned unusable data.
type FetchError struct {
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch conversion rate: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func fetchErrorf(providerName, format string, args ...any) error {
	return &FetchError{Provider: providerName, Err: fmt.Errorf(format, args...)}
}
