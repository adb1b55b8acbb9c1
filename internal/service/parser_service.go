// Package service implements the parser operations exposed to the rest of the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"valutatradehub/internal/cache"
	"valutatradehub/internal/rates"
	"valutatradehub/internal/repository"
	"valutatradehub/internal/scheduler"
)

// ErrInvalidFilter indicates an unknown kind filter passed to ListRates.
var ErrInvalidFilter = errors.New("invalid rates filter")

// RateInfo is a rate entry as served to collaborators, with its staleness flag.
type RateInfo struct {
	Code      string
	Base      string
	Rate      float64
	Source    string
	FetchedAt time.Time
	Stale     bool
}

// Status describes the parser state for the status operation.
type Status struct {
	Running       bool
	LastRefreshAt time.Time
	LastError     string
}

// ParserServiceInterface defines the parser operations available to collaborators.
type ParserServiceInterface interface {
	GetRate(ctx context.Context, code string) (*RateInfo, error)
	ListRates(ctx context.Context, kind string) ([]RateInfo, error)
	GetHistory(ctx context.Context, code string, limit int) ([]repository.HistoryRecord, error)
	TriggerUpdate(ctx context.Context) (*cache.RefreshResult, error)
	StartAutoUpdate(interval time.Duration) error
	StopAutoUpdate() error
	Status() Status
}

// ParserService wires the rate cache, the currency registry, the background
// scheduler, and the optional history journal together.
type ParserService struct {
	cache    *cache.RateCache
	registry *rates.Registry
	history  repository.HistoryRepository // nil disables journaling
	sched    *scheduler.Scheduler
	log      *zap.SugaredLogger

	mu           sync.Mutex
	lastErr      error
	lastRecorded time.Time
}

// NewParserService creates a ParserService owning its own scheduler.
func NewParserService(rc *cache.RateCache, registry *rates.Registry, history repository.HistoryRepository, logger *zap.SugaredLogger) *ParserService {
	s := &ParserService{
		cache:    rc,
		registry: registry,
		history:  history,
		log:      logger,
	}
	s.sched = scheduler.New(s, logger)
	return s
}

// GetRate returns the cached rate for a code. Unknown codes fail against the
// registry; known codes never fetched yet fail with cache.ErrNotFound.
func (s *ParserService) GetRate(_ context.Context, code string) (*RateInfo, error) {
	cur, err := s.registry.Lookup(code)
	if err != nil {
		return nil, err
	}

	e, stale, err := s.cache.Get(cur.Code)
	if err != nil {
		return nil, err
	}
	info := rateInfoFromEntry(e, stale)
	return &info, nil
}

// ListRates returns all cached rates, optionally filtered by currency kind
// ("fiat" or "crypto"; empty means everything).
func (s *ParserService) ListRates(_ context.Context, kind string) ([]RateInfo, error) {
	var filter func(rates.Entry) bool
	switch rates.Kind(kind) {
	case "":
		filter = nil
	case rates.KindFiat, rates.KindCrypto:
		want := rates.Kind(kind)
		filter = func(e rates.Entry) bool {
			cur, err := s.registry.Lookup(e.Code)
			return err == nil && cur.Kind == want
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, kind)
	}

	entries := s.cache.GetAll(filter)
	out := make([]RateInfo, 0, len(entries))
	for _, se := range entries {
		out = append(out, rateInfoFromEntry(se.Entry, se.Stale))
	}
	return out, nil
}

// GetHistory returns the newest journal rows for a code. Without a configured
// database the journal is empty.
func (s *ParserService) GetHistory(ctx context.Context, code string, limit int) ([]repository.HistoryRecord, error) {
	cur, err := s.registry.Lookup(code)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	return s.history.ListByCode(ctx, cur.Code, limit)
}

// TriggerUpdate synchronously refreshes the cache. Concurrent calls join the
// in-flight refresh and receive its result.
func (s *ParserService) TriggerUpdate(ctx context.Context) (*cache.RefreshResult, error) {
	return s.finishRefresh(s.cache.RefreshNow(ctx))
}

// TryRefreshNow implements scheduler.Refresher: it refreshes unless a refresh
// is already running, in which case the tick is skipped.
func (s *ParserService) TryRefreshNow(ctx context.Context) (*cache.RefreshResult, error) {
	res, err := s.cache.TryRefreshNow(ctx)
	if errors.Is(err, cache.ErrRefreshInProgress) {
		return nil, err
	}
	return s.finishRefresh(res, err)
}

// finishRefresh records the refresh outcome: last error for the status
// operation, and journal rows for a successful pass. Joined refresh callers
// share one result, so journaling is deduplicated by refresh time.
func (s *ParserService) finishRefresh(res *cache.RefreshResult, err error) (*cache.RefreshResult, error) {
	s.mu.Lock()
	s.lastErr = err
	record := err == nil && res.RefreshedAt.After(s.lastRecorded)
	if record {
		s.lastRecorded = res.RefreshedAt
	}
	s.mu.Unlock()

	if record {
		s.recordHistory(res)
	}
	return res, err
}

// recordHistory journals the fetched entries. Best effort: a journal failure
// is logged and never fails the refresh.
func (s *ParserService) recordHistory(res *cache.RefreshResult) {
	if s.history == nil || len(res.Fetched) == 0 {
		return
	}

	refreshID := uuid.New().String()
	records := make([]repository.HistoryRecord, 0, len(res.Fetched))
	for _, e := range res.Fetched {
		records = append(records, repository.HistoryRecord{
			ID:        uuid.New().String(),
			RefreshID: refreshID,
			Code:      e.Code,
			Base:      e.Base,
			Rate:      e.Value,
			Source:    e.Source,
			FetchedAt: e.FetchedAt,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.InsertBatch(ctx, records); err != nil {
		s.log.Warnw("Failed to journal refresh", "refresh_id", refreshID, "error", err)
		return
	}
	s.log.Infow("Journaled refresh", "refresh_id", refreshID, "records", len(records))
}

// StartAutoUpdate begins periodic background refreshes.
func (s *ParserService) StartAutoUpdate(interval time.Duration) error {
	return s.sched.Start(interval)
}

// StopAutoUpdate stops the background schedule; an in-flight refresh completes.
func (s *ParserService) StopAutoUpdate() error {
	return s.sched.Stop()
}

// Status reports whether auto-update is running, the last refresh time, and
// the last refresh error if any.
func (s *ParserService) Status() Status {
	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()

	st := Status{
		Running:       s.sched.Running(),
		LastRefreshAt: s.cache.LastRefreshAt(),
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	return st
}

func rateInfoFromEntry(e rates.Entry, stale bool) RateInfo {
	return RateInfo{
		Code:      e.Code,
		Base:      e.Base,
		Rate:      e.Value,
		Source:    e.Source,
		FetchedAt: e.FetchedAt,
		Stale:     stale,
	}
}
