// Package fusion merges rate tables from the fiat and crypto providers into one result.
package fusion

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"valutatradehub/internal/provider"
	"valutatradehub/internal/rates"
)

// ErrRefreshFailed indicates that every configured rate source failed.
var ErrRefreshFailed = errors.New("all rate sources failed")

// SourceError records a per-provider failure inside a partial result.
type SourceError struct {
	Source string
	Err    error
}

// Result is the outcome of one fusion pass. Failed is non-empty for a partial
// result where at least one provider still delivered data.
type Result struct {
	Table  rates.Table
	Failed []SourceError
}

// Partial reports whether some sources failed while others succeeded.
func (r *Result) Partial() bool { return len(r.Failed) > 0 }

// Fusion drives both providers concurrently and merges their tables.
// Providers are independent failure domains: one provider's error never
// cancels or blocks the other's fetch.
type Fusion struct {
	fiat        provider.RatesProvider
	crypto      provider.RatesProvider
	fiatCodes   []string
	cryptoCodes []string
	log         *zap.SugaredLogger
}

// New creates a Fusion over the two providers and their tracked code sets.
func New(fiat, crypto provider.RatesProvider, fiatCodes, cryptoCodes []string, logger *zap.SugaredLogger) *Fusion {
	return &Fusion{
		fiat:        fiat,
		crypto:      crypto,
		fiatCodes:   fiatCodes,
		cryptoCodes: cryptoCodes,
		log:         logger,
	}
}

type sourceResult struct {
	name  string
	table rates.Table
	err   error
}

// Fetch queries both providers in parallel and merges the union of their
// tables. It returns ErrRefreshFailed only when both providers fail.
func (f *Fusion) Fetch(ctx context.Context) (*Result, error) {
	results := make([]sourceResult, 2)

	// Errors are collected in the result slots, not returned from the group
	// funcs, so a failing provider does not cancel the other's request.
	var g errgroup.Group
	g.Go(func() error {
		results[0] = f.fetchOne(ctx, f.fiat, f.fiatCodes)
		return nil
	})
	g.Go(func() error {
		results[1] = f.fetchOne(ctx, f.crypto, f.cryptoCodes)
		return nil
	})
	_ = g.Wait()

	res := &Result{Table: rates.Table{}}
	var errs []error
	for _, sr := range results {
		if sr.err != nil {
			f.log.Errorw("Rate source failed", "source", sr.name, "error", sr.err)
			res.Failed = append(res.Failed, SourceError{Source: sr.name, Err: sr.err})
			errs = append(errs, fmt.Errorf("%s: %w", sr.name, sr.err))
			continue
		}
		f.log.Infow("Rate source fetched", "source", sr.name, "entries", len(sr.table))
		mergeInto(res.Table, sr.table)
	}

	if len(errs) == len(results) {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, errors.Join(errs...))
	}
	return res, nil
}

func (f *Fusion) fetchOne(ctx context.Context, p provider.RatesProvider, codes []string) sourceResult {
	table, err := p.FetchRates(ctx, codes)
	return sourceResult{name: p.Name(), table: table, err: err}
}

// mergeInto overlays src onto dst. Fiat and crypto code domains are disjoint
// by construction; should both sources ever report the same code, the entry
// with the newer FetchedAt wins.
func mergeInto(dst, src rates.Table) {
	for code, e := range src {
		if existing, ok := dst[code]; ok && existing.FetchedAt.After(e.FetchedAt) {
			continue
		}
		dst[code] = e
	}
}
