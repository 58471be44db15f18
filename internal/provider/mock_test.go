package provider

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchRate(ctx context.Context, currency, nativeCurrency string, includeUSDRate bool) (*Quote, error) {
	args := m.Called(ctx, currency, nativeCurrency, includeUSDRate)
	quote, _ := args.Get(0).(*Quote)
	return quote, args.Error(1)
}
