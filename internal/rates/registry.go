package rates

import (
	"errors"
	"fmt"
	"sort"
)

// Kind classifies a currency as fiat or crypto. Provider routing and list
// filtering are keyed off this classification.
type Kind string

// Currency kinds.
const (
	KindFiat   Kind = "fiat"
	KindCrypto Kind = "crypto"
)

// ErrUnknownCurrency indicates a code that is not in the currency registry.
var ErrUnknownCurrency = errors.New("unknown currency")

// Currency holds static metadata about a tracked currency.
type Currency struct {
	Code           string
	Name           string
	Kind           Kind
	IssuingCountry string // fiat only
	Algorithm      string // crypto only
}

// Registry is a read-only lookup of tracked currencies. It is populated once
// at startup and never mutated afterwards, so it is safe for concurrent reads.
type Registry struct {
	currencies map[string]Currency
}

// NewRegistry builds a registry from the given currencies.
func NewRegistry(currencies ...Currency) *Registry {
	r := &Registry{currencies: make(map[string]Currency, len(currencies))}
	for _, c := range currencies {
		c.Code = Normalize(c.Code)
		r.currencies[c.Code] = c
	}
	return r
}

// DefaultRegistry returns the registry with the default tracked currency set.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Currency{Code: "USD", Name: "US Dollar", Kind: KindFiat, IssuingCountry: "United States"},
		Currency{Code: "EUR", Name: "Euro", Kind: KindFiat, IssuingCountry: "Eurozone"},
		Currency{Code: "GBP", Name: "British Pound", Kind: KindFiat, IssuingCountry: "United Kingdom"},
		Currency{Code: "RUB", Name: "Russian Ruble", Kind: KindFiat, IssuingCountry: "Russia"},
		Currency{Code: "JPY", Name: "Japanese Yen", Kind: KindFiat, IssuingCountry: "Japan"},
		Currency{Code: "CNY", Name: "Chinese Yuan", Kind: KindFiat, IssuingCountry: "China"},
		Currency{Code: "BTC", Name: "Bitcoin", Kind: KindCrypto, Algorithm: "SHA-256"},
		Currency{Code: "ETH", Name: "Ethereum", Kind: KindCrypto, Algorithm: "Ethash"},
		Currency{Code: "SOL", Name: "Solana", Kind: KindCrypto, Algorithm: "Proof of History"},
		Currency{Code: "ADA", Name: "Cardano", Kind: KindCrypto, Algorithm: "Ouroboros"},
		Currency{Code: "DOT", Name: "Polkadot", Kind: KindCrypto, Algorithm: "Nominated Proof-of-Stake"},
	)
}

// Lookup returns the currency for a code, or ErrUnknownCurrency.
func (r *Registry) Lookup(code string) (Currency, error) {
	norm, err := ValidateCode(code)
	if err != nil {
		return Currency{}, err
	}
	c, ok := r.currencies[norm]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, norm)
	}
	return c, nil
}

// Known reports whether the code is registered (case-insensitive).
func (r *Registry) Known(code string) bool {
	_, ok := r.currencies[Normalize(code)]
	return ok
}

// CodesByKind returns the sorted codes of all registered currencies of the given kind.
func (r *Registry) CodesByKind(kind Kind) []string {
	var codes []string
	for code, c := range r.currencies {
		if c.Kind == kind {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// All returns every registered currency, sorted by code.
func (r *Registry) All() []Currency {
	out := make([]Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
