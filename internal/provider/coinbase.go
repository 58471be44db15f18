package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const coinbaseName = "coinbase"

var _ RateFetcher = (*CoinbaseProvider)(nil)

// CoinbaseProvider fetches rates from the Coinbase exchange-rates API.
type CoinbaseProvider struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewCoinbaseProvider creates a new CoinbaseProvider.
func NewCoinbaseProvider(baseURL string, timeoutSec int) *CoinbaseProvider {
	if baseURL == "" {
		baseURL = "https://api.coinbase.com"
	}
	return &CoinbaseProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		now:     time.Now,
	}
}

// Coinbase returns every rate for the base asset in one call, keyed by
// upper-cased currency code with string-encoded decimal values.
type coinbaseResponse struct {
	Data struct {
		Currency string            `json:"currency"`
		Rates    map[string]string `json:"rates"`
	} `json:"data"`
}

// FetchRate fetches the native asset's rate in the given currency, and in USD
// when includeUSDRate is set.
func (p *CoinbaseProvider) FetchRate(ctx context.Context, currency, nativeCurrency string, includeUSDRate bool) (*Quote, error) {
	reqURL := p.baseURL + "/v2/exchange-rates?currency=" + strings.ToUpper(nativeCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fetchErrorf(coinbaseName, "request creation failed: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fetchErrorf(coinbaseName, "request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fetchErrorf(coinbaseName, "API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result coinbaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fetchErrorf(coinbaseName, "failed to decode response: %w", err)
	}

	rate, err := p.rateFor(result.Data.Rates, currency)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		ConversionDate: p.now().UTC().UnixMilli(),
		ConversionRate: rate,
	}
	if includeUSDRate {
		usd, err := p.rateFor(result.Data.Rates, "USD")
		if err != nil {
			return nil, err
		}
		quote.USDConversionRate = &usd
	}
	return quote, nil
}

func (p *CoinbaseProvider) rateFor(rates map[string]string, currency string) (float64, error) {
	raw, ok := rates[strings.ToUpper(currency)]
	if !ok {
		return 0, fetchErrorf(coinbaseName, "no rate for %s in response", strings.ToUpper(currency))
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fetchErrorf(coinbaseName, "unparsable rate %q for %s: %w", raw, strings.ToUpper(currency), err)
	}
	return rate, nil
}
