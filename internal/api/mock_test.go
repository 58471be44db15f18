package api

import (
	"context"

	"github.com/copperexchange/controllers/internal/tracker"
)

// mockTrackerService implements RateTrackerService for testing.
type mockTrackerService struct {
	stateFunc              func() tracker.ConversionState
	updateExchangeRateFunc func(ctx context.Context) error
	setCurrentCurrencyFunc func(ctx context.Context, currencyCode string) error
	setNativeCurrencyFunc  func(ctx context.Context, symbol string) error
}

func (m *mockTrackerService) State() tracker.ConversionState {
	return m.stateFunc()
}

func (m *mockTrackerService) UpdateExchangeRate(ctx context.Context) error {
	return m.updateExchangeRateFunc(ctx)
}

func (m *mockTrackerService) SetCurrentCurrency(ctx context.Context, currencyCode string) error {
	return m.setCurrentCurrencyFunc(ctx, currencyCode)
}

func (m *mockTrackerService) SetNativeCurrency(ctx context.Context, symbol string) error {
	return m.setNativeCurrencyFunc(ctx, symbol)
}
