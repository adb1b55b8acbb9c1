// Package cache holds the unified rate table and runs refreshes against it.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"valutatradehub/internal/fusion"
	"valutatradehub/internal/rates"
)

// Cache errors.
var (
	// ErrNotFound indicates a code that has never been cached.
	ErrNotFound = errors.New("rate not found")
	// ErrRefreshInProgress is returned by TryRefreshNow when a refresh is already running.
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// Fetcher produces a merged rate table from the external sources.
type Fetcher interface {
	Fetch(ctx context.Context) (*fusion.Result, error)
}

// StaleEntry pairs a rate entry with its read-time staleness flag.
type StaleEntry struct {
	rates.Entry
	Stale bool
}

// RefreshResult summarizes one refresh pass. Fetched carries the entries this
// refresh actually produced (for journaling); it is not part of the wire shape.
type RefreshResult struct {
	Updated       int       `json:"updated"`
	Retained      int       `json:"retained"`
	FailedSources []string  `json:"failed_sources,omitempty"`
	Partial       bool      `json:"partial"`
	RefreshedAt   time.Time `json:"refreshed_at"`

	Fetched rates.Table `json:"-"`
}

// RateCache is the exclusive owner of the current rate table. Readers receive
// immutable snapshots; a refresh builds a new table and installs it with a
// single pointer swap, so readers always observe either the pre-refresh or
// the fully merged post-refresh state.
type RateCache struct {
	fetcher Fetcher
	store   SnapshotStore // nil disables persistence
	ttl     time.Duration
	now     func() time.Time
	log     *zap.SugaredLogger

	mu         sync.RWMutex // guards snap pointer swap
	snap       *rates.Snapshot
	group      singleflight.Group
	refreshing atomic.Bool
}

// Option customizes a RateCache.
type Option func(*RateCache)

// WithClock injects a clock, used by tests to control staleness.
func WithClock(now func() time.Time) Option {
	return func(c *RateCache) { c.now = now }
}

// New creates a RateCache with an empty table for the given base currency.
func New(base string, ttl time.Duration, fetcher Fetcher, store SnapshotStore, logger *zap.SugaredLogger, opts ...Option) *RateCache {
	c := &RateCache{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger,
		snap:    rates.EmptySnapshot(base),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore loads the persisted snapshot, if any, into the cache. Called once
// at startup before any refresh.
func (c *RateCache) Restore() error {
	if c.store == nil {
		return nil
	}
	snap, err := c.store.Load()
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if snap.Base == "" {
		snap.Base = c.snap.Base
	}
	c.snap = snap
	c.log.Infow("Restored rate snapshot", "entries", len(snap.Table), "last_refresh", snap.LastRefreshAt)
	return nil
}

// Snapshot returns the current immutable snapshot.
func (c *RateCache) Snapshot() *rates.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// LastRefreshAt returns the time of the last successful refresh.
func (c *RateCache) LastRefreshAt() time.Time {
	return c.Snapshot().LastRefreshAt
}

// Refreshing reports whether a refresh is currently in flight.
func (c *RateCache) Refreshing() bool {
	return c.refreshing.Load()
}

func (c *RateCache) isStale(e rates.Entry) bool {
	return c.now().Sub(e.FetchedAt) > c.ttl
}

// Get returns the entry for a code with its staleness flag. Stale entries are
// still returned; the caller decides whether to trigger a refresh.
func (c *RateCache) Get(code string) (rates.Entry, bool, error) {
	snap := c.Snapshot()
	e, ok := snap.Table[rates.Normalize(code)]
	if !ok {
		return rates.Entry{}, false, ErrNotFound
	}
	return e, c.isStale(e), nil
}

// GetAll returns all entries matching the filter (nil matches everything),
// sorted by code, each with its staleness flag.
func (c *RateCache) GetAll(filter func(rates.Entry) bool) []StaleEntry {
	snap := c.Snapshot()
	out := make([]StaleEntry, 0, len(snap.Table))
	for _, code := range snap.Table.Codes() {
		e := snap.Table[code]
		if filter != nil && !filter(e) {
			continue
		}
		out = append(out, StaleEntry{Entry: e, Stale: c.isStale(e)})
	}
	return out
}

// RefreshNow fetches from the sources and atomically installs the merged
// table. Concurrent callers join the in-flight refresh and receive its
// result; at most one refresh runs at a time.
func (c *RateCache) RefreshNow(ctx context.Context) (*RefreshResult, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.doRefresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RefreshResult), nil
}

// TryRefreshNow starts a refresh only when none is running, otherwise it
// returns ErrRefreshInProgress without blocking. Used by the scheduler to
// skip overlapping ticks.
func (c *RateCache) TryRefreshNow(ctx context.Context) (*RefreshResult, error) {
	if c.refreshing.Load() {
		return nil, ErrRefreshInProgress
	}
	return c.RefreshNow(ctx)
}

func (c *RateCache) doRefresh(ctx context.Context) (*RefreshResult, error) {
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	fetched, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now()
	prev := c.Snapshot()

	// Codes the current refresh omitted keep their previous entry and
	// timestamp: monotonic staleness, never data loss.
	table := prev.Table.Clone()
	updated := 0
	for code, e := range fetched.Table {
		table[code] = e
		updated++
	}
	retained := len(table) - updated

	next := &rates.Snapshot{
		Base:          prev.Base,
		Table:         table,
		LastRefreshAt: now,
	}

	c.mu.Lock()
	c.snap = next
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(next); err != nil {
			c.log.Warnw("Failed to persist rate snapshot", "error", err)
		}
	}

	res := &RefreshResult{
		Updated:     updated,
		Retained:    retained,
		Partial:     fetched.Partial(),
		RefreshedAt: now,
		Fetched:     fetched.Table,
	}
	for _, se := range fetched.Failed {
		res.FailedSources = append(res.FailedSources, se.Source)
	}

	c.log.Infow("Rate cache refreshed",
		"updated", res.Updated,
		"retained", res.Retained,
		"partial", res.Partial,
		"failed_sources", res.FailedSources,
	)
	return res, nil
}
