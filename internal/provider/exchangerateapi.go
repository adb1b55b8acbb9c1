package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"valutatradehub/internal/rates"
)

// NameExchangeRateAPI identifies the fiat rate source.
const NameExchangeRateAPI = "ExchangeRate-API"

var _ RatesProvider = (*ExchangeRateAPIProvider)(nil)

// ExchangeRateAPIProvider fetches fiat rates from the ExchangeRate-API v6 endpoint.
type ExchangeRateAPIProvider struct {
	baseURL string
	apiKey  string
	base    string
	client  *http.Client
}

// NewExchangeRateAPIProvider creates a new ExchangeRateAPIProvider. The base
// argument is the currency all returned rates are denominated in.
func NewExchangeRateAPIProvider(baseURL, apiKey, base string, timeoutSec int) *ExchangeRateAPIProvider {
	if baseURL == "" {
		baseURL = "https://v6.exchangerate-api.com/v6"
	}
	return &ExchangeRateAPIProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		base:    rates.Normalize(base),
		client:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Name returns the provider identifier used for entry provenance.
func (p *ExchangeRateAPIProvider) Name() string { return NameExchangeRateAPI }

// exchangerate-api v6 latest response structure
type erAPIResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// FetchRates fetches the latest conversion rates and keeps only the requested codes.
func (p *ExchangeRateAPIProvider) FetchRates(ctx context.Context, codes []string) (rates.Table, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: empty code set", ErrInvalidRequest)
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: exchangerate-api key is not configured", ErrAuth)
	}

	reqURL := fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, p.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("exchangerate-api request creation failed: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: exchangerate-api request failed: %v", ErrNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: exchangerate-api returned 429", ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: exchangerate-api returned status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: exchangerate-api returned status %d: %s", ErrNetwork, resp.StatusCode, string(body))
	}

	var result erAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode exchangerate-api response: %w", err)
	}
	if result.Result != "success" {
		return nil, p.apiError(result.ErrorType)
	}

	fetchedAt := time.Now().UTC()
	table := rates.Table{}
	for _, code := range codes {
		norm := rates.Normalize(code)
		val, ok := result.ConversionRates[norm]
		if !ok {
			// UnsupportedCurrency is per-code: omit, never fail the call.
			continue
		}
		table.Set(rates.Entry{
			Code:      norm,
			Value:     val,
			Base:      p.base,
			Source:    p.Name(),
			FetchedAt: fetchedAt,
		})
	}
	return table, nil
}

// apiError maps exchangerate-api error-type values onto the provider error taxonomy.
func (p *ExchangeRateAPIProvider) apiError(errorType string) error {
	switch errorType {
	case "invalid-key", "inactive-account":
		return fmt.Errorf("%w: exchangerate-api: %s", ErrAuth, errorType)
	case "quota-reached":
		return fmt.Errorf("%w: exchangerate-api: %s", ErrRateLimited, errorType)
	case "":
		return errors.New("exchangerate-api returned result != success")
	default:
		return fmt.Errorf("exchangerate-api error: %s", errorType)
	}
}
