package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"valutatradehub/internal/rates"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleTable() rates.Table {
	tbl := rates.Table{}
	tbl.Set(rates.Entry{
		Code:      "EUR",
		Value:     0.92,
		Base:      "USD",
		Source:    "upstream",
		FetchedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	})
	return tbl
}

func TestCachedProviderMissThenHit(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	upstream := new(MockProvider)
	upstream.On("Name").Return("upstream")
	upstream.On("FetchRates", mock.Anything, []string{"EUR"}).Return(sampleTable(), nil).Once()

	cached := NewCachedRatesProvider(upstream, client, time.Minute)

	// First call goes to the upstream.
	table, err := cached.FetchRates(ctx, []string{"EUR"})
	require.NoError(t, err)
	assert.Equal(t, 0.92, table["EUR"].Value)

	// Second call is served from Redis; Once() above fails the test otherwise.
	table, err = cached.FetchRates(ctx, []string{"EUR"})
	require.NoError(t, err)
	assert.Equal(t, 0.92, table["EUR"].Value)

	upstream.AssertExpectations(t)
}

func TestCachedProviderKeyIsCodeOrderInsensitive(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	upstream := new(MockProvider)
	upstream.On("Name").Return("upstream")
	upstream.On("FetchRates", mock.Anything, mock.Anything).Return(sampleTable(), nil).Once()

	cached := NewCachedRatesProvider(upstream, client, time.Minute)

	_, err := cached.FetchRates(ctx, []string{"eur", "GBP"})
	require.NoError(t, err)

	// Same set, different order and case: must hit the cache.
	_, err = cached.FetchRates(ctx, []string{"GBP", "EUR"})
	require.NoError(t, err)

	upstream.AssertExpectations(t)
}

func TestCachedProviderExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	upstream := new(MockProvider)
	upstream.On("Name").Return("upstream")
	upstream.On("FetchRates", mock.Anything, []string{"EUR"}).Return(sampleTable(), nil).Twice()

	cached := NewCachedRatesProvider(upstream, client, 30*time.Second)

	_, err := cached.FetchRates(ctx, []string{"EUR"})
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	_, err = cached.FetchRates(ctx, []string{"EUR"})
	require.NoError(t, err)

	upstream.AssertExpectations(t)
}

func TestCachedProviderErrorsNotCached(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	upstream := new(MockProvider)
	upstream.On("Name").Return("upstream")
	upstream.On("FetchRates", mock.Anything, []string{"EUR"}).
		Return(nil, errors.New("upstream down")).Once()
	upstream.On("FetchRates", mock.Anything, []string{"EUR"}).
		Return(sampleTable(), nil).Once()

	cached := NewCachedRatesProvider(upstream, client, time.Minute)

	_, err := cached.FetchRates(ctx, []string{"EUR"})
	require.Error(t, err)

	// A failed fetch must not poison the cache; the retry reaches the upstream.
	table, err := cached.FetchRates(ctx, []string{"EUR"})
	require.NoError(t, err)
	assert.Contains(t, table, "EUR")

	upstream.AssertExpectations(t)
}

func TestCachedProviderNilClientPassthrough(t *testing.T) {
	upstream := new(MockProvider)
	// The passthrough path never computes a cache key, so Name is never called.
	upstream.On("FetchRates", mock.Anything, []string{"EUR"}).Return(sampleTable(), nil).Twice()

	cached := NewCachedRatesProvider(upstream, nil, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cached.FetchRates(context.Background(), []string{"EUR"})
		require.NoError(t, err)
	}
	upstream.AssertExpectations(t)
}
