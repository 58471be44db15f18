package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const cryptoCompareName = "cryptocompare"

var _ RateFetcher = (*CryptoCompareProvider)(nil)

// CryptoCompareProvider fetches rates from the CryptoCompare price API.
type CryptoCompareProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
}

// NewCryptoCompareProvider creates a new CryptoCompareProvider with the given configuration.
func NewCryptoCompareProvider(baseURL, apiKey string, timeoutSec int) *CryptoCompareProvider {
	if baseURL == "" {
		baseURL = "https://min-api.cryptocompare.com"
	}
	return &CryptoCompareProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		now:     time.Now,
	}
}

// priceURL forms the API URL for fetching the rate. CryptoCompare keys
// quotes by upper-cased symbol, e.g. /data/price?fsym=ETH&tsyms=USD,CAD.
func (p *CryptoCompareProvider) priceURL(currency, nativeCurrency string, includeUSDRate bool) string {
	tsyms := strings.ToUpper(currency)
	if includeUSDRate && tsyms != "USD" {
		tsyms += ",USD"
	}
	u := p.baseURL + "/data/price?fsym=" + strings.ToUpper(nativeCurrency) + "&tsyms=" + tsyms
	if p.apiKey != "" {
		u += "&api_key=" + p.apiKey
	}
	return u
}

// CryptoCompare signals errors inside a 200 response body, so a flat
// symbol->rate map and the error envelope have to be told apart after decoding.
type cryptoCompareErrEnvelope struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
}

// FetchRate fetches the native asset's rate in the given currency, and in USD
// when includeUSDRate is set.
func (p *CryptoCompareProvider) FetchRate(ctx context.Context, currency, nativeCurrency string, includeUSDRate bool) (*Quote, error) {
	reqURL := p.priceURL(currency, nativeCurrency, includeUSDRate)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fetchErrorf(cryptoCompareName, "request creation failed: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fetchErrorf(cryptoCompareName, "request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErrorf(cryptoCompareName, "read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fetchErrorf(cryptoCompareName, "API returned status %d: %s", resp.StatusCode, string(body))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fetchErrorf(cryptoCompareName, "failed to decode response: %w", err)
	}
	if _, isErr := raw["Response"]; isErr {
		var envelope cryptoCompareErrEnvelope
		_ = json.Unmarshal(body, &envelope)
		return nil, fetchErrorf(cryptoCompareName, "API error for %s/%s: %s", nativeCurrency, currency, envelope.Message)
	}

	rate, err := rateFromRaw(raw, strings.ToUpper(currency))
	if err != nil {
		return nil, fetchErrorf(cryptoCompareName, "%w", err)
	}

	quote := &Quote{
		ConversionDate: p.now().UTC().UnixMilli(),
		ConversionRate: rate,
	}
	if includeUSDRate {
		usd, err := rateFromRaw(raw, "USD")
		if err != nil {
			return nil, fetchErrorf(cryptoCompareName, "%w", err)
		}
		quote.USDConversionRate = &usd
	}
	return quote, nil
}

func rateFromRaw(raw map[string]json.RawMessage, symbol string) (float64, error) {
	msg, ok := raw[symbol]
	if !ok {
		return 0, fmt.Errorf("no rate for %s in response", symbol)
	}
	var rate float64
	if err := json.Unmarshal(msg, &rate); err != nil {
		return 0, fmt.Errorf("unparsable rate for %s: %w", symbol, err)
	}
	return rate, nil
}
