package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"valutatradehub/internal/rates"
)

// NameCoinGecko identifies the crypto rate source.
const NameCoinGecko = "CoinGecko"

var _ RatesProvider = (*CoinGeckoProvider)(nil)

// CoinGeckoProvider fetches crypto rates from the CoinGecko simple/price API.
// The API is keyless but aggressively rate-limited.
type CoinGeckoProvider struct {
	baseURL string
	base    string
	idMap   map[string]string // currency code -> coingecko asset id
	client  *http.Client
}

// NewCoinGeckoProvider creates a new CoinGeckoProvider. idMap translates
// currency codes (BTC) into CoinGecko asset ids (bitcoin); codes without a
// mapping are treated as unsupported.
func NewCoinGeckoProvider(baseURL, base string, idMap map[string]string, timeoutSec int) *CoinGeckoProvider {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	normalized := make(map[string]string, len(idMap))
	for code, id := range idMap {
		normalized[rates.Normalize(code)] = id
	}
	return &CoinGeckoProvider{
		baseURL: baseURL,
		base:    rates.Normalize(base),
		idMap:   normalized,
		client:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

// Name returns the provider identifier used for entry provenance.
func (p *CoinGeckoProvider) Name() string { return NameCoinGecko }

// FetchRates fetches prices for the requested codes. Codes without a CoinGecko
// id mapping, or missing from the response, are omitted from the result.
func (p *CoinGeckoProvider) FetchRates(ctx context.Context, codes []string) (rates.Table, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: empty code set", ErrInvalidRequest)
	}

	var ids []string
	idToCode := make(map[string]string)
	for _, code := range codes {
		norm := rates.Normalize(code)
		if id, ok := p.idMap[norm]; ok {
			ids = append(ids, id)
			idToCode[id] = norm
		}
	}
	if len(ids) == 0 {
		// Every requested code is unsupported; an empty table, not an error.
		return rates.Table{}, nil
	}

	vs := strings.ToLower(p.base)
	reqURL := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		p.baseURL, url.QueryEscape(strings.Join(ids, ",")), vs)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("coingecko request creation failed: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: coingecko request failed: %v", ErrNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: coingecko returned 429", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: coingecko returned status %d: %s", ErrNetwork, resp.StatusCode, string(body))
	}

	// Response shape: {"bitcoin": {"usd": 59337.21}, ...}
	var result map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode coingecko response: %w", err)
	}

	fetchedAt := time.Now().UTC()
	table := rates.Table{}
	for id, code := range idToCode {
		prices, ok := result[id]
		if !ok {
			continue
		}
		val, ok := prices[vs]
		if !ok {
			continue
		}
		table.Set(rates.Entry{
			Code:      code,
			Value:     val,
			Base:      p.base,
			Source:    p.Name(),
			FetchedAt: fetchedAt,
		})
	}
	return table, nil
}
