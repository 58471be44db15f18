package provider

import (
	"context"
	"errors"
)

var _ RateFetcher = (*FetcherFacade)(nil)

// FetcherFacade is an abstraction that calls fetchers sequentially.
type FetcherFacade struct {
	fetchers []RateFetcher
}

// NewFetcherFacade creates a new FetcherFacade with the given list of fetchers.
func NewFetcherFacade(fetchers ...RateFetcher) *FetcherFacade {
	return &FetcherFacade{
		fetchers: fetchers,
	}
}

// FetchRate calls fetchers sequentially until one succeeds.
func (f *FetcherFacade) FetchRate(ctx context.Context, currency, nativeCurrency string, includeUSDRate bool) (*Quote, error) {
	var errs []error
	for _, fetcher := range f.fetchers {
		quote, err := fetcher.FetchRate(ctx, currency, nativeCurrency, includeUSDRate)
		if err == nil {
			return quote, nil
		}
		errs = append(errs, err)
	}

	return nil, &FetchError{Provider: "facade", Err: errors.Join(errs...)}
}
