// Package provider implements external rate providers for fetching currency exchange rates.
package provider

import (
	"context"
	"errors"

	"valutatradehub/internal/rates"
)

// Typed provider failures. Transport-level failures wrap ErrNetwork and are
// retryable; ErrAuth means the provider is unusable until reconfigured.
var (
	ErrNetwork        = errors.New("provider network error")
	ErrAuth           = errors.New("provider authentication error")
	ErrRateLimited    = errors.New("provider rate limit exceeded")
	ErrInvalidRequest = errors.New("invalid provider request")
)

// RatesProvider fetches rates for a set of currency codes from one external source.
// Codes the provider does not support are omitted from the result, not errors.
type RatesProvider interface {
	// Name identifies the provider in entry provenance and logs.
	Name() string
	// FetchRates returns a table of rates against the provider's configured
	// base currency. An empty code set fails with ErrInvalidRequest.
	FetchRates(ctx context.Context, codes []string) (rates.Table, error)
}
