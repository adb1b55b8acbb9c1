package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"valutatradehub/internal/rates"
)

// CachedRatesProviderDecorator wraps a RatesProvider with Redis caching of the
// full fetched table, shielding the rate-limited upstream from repeated
// identical requests within the TTL window.
type CachedRatesProviderDecorator struct {
	provider RatesProvider
	cache    *redis.Client
	ttl      time.Duration
}

// NewCachedRatesProvider creates a new CachedRatesProviderDecorator.
// A nil cache client makes the decorator a passthrough.
func NewCachedRatesProvider(provider RatesProvider, cache *redis.Client, ttl time.Duration) *CachedRatesProviderDecorator {
	return &CachedRatesProviderDecorator{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
	}
}

// Name returns the underlying provider's identifier.
func (p *CachedRatesProviderDecorator) Name() string { return p.provider.Name() }

func (p *CachedRatesProviderDecorator) cacheKey(codes []string) string {
	sorted := make([]string, 0, len(codes))
	for _, code := range codes {
		sorted = append(sorted, rates.Normalize(code))
	}
	sort.Strings(sorted)
	return fmt.Sprintf("provider_cache:%s:{%s}", p.provider.Name(), strings.Join(sorted, ","))
}

// FetchRates attempts to serve the table from cache before calling the
// underlying provider. Provider errors are never cached.
func (p *CachedRatesProviderDecorator) FetchRates(ctx context.Context, codes []string) (rates.Table, error) {
	if p.cache == nil {
		return p.provider.FetchRates(ctx, codes)
	}

	key := p.cacheKey(codes)

	if raw, err := p.cache.Get(ctx, key).Bytes(); err == nil {
		var table rates.Table
		if err := json.Unmarshal(raw, &table); err == nil {
			return table, nil
		}
	}

	table, err := p.provider.FetchRates(ctx, codes)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(table); err == nil {
		_ = p.cache.Set(ctx, key, raw, p.ttl).Err()
	}

	return table, nil
}

var _ RatesProvider = (*CachedRatesProviderDecorator)(nil)
