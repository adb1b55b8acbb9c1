package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var geckoIDs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"SOL": "solana",
}

func TestCoinGeckoFetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		ids := r.URL.Query().Get("ids")
		assert.Contains(t, ids, "bitcoin")
		assert.Contains(t, ids, "ethereum")

		_, _ = w.Write([]byte(`{
			"bitcoin": {"usd": 59337.21},
			"ethereum": {"usd": 2412.77}
		}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "USD", geckoIDs, 5)

	table, err := p.FetchRates(context.Background(), []string{"btc", "ETH"})
	require.NoError(t, err)
	require.Len(t, table, 2)

	btc := table["BTC"]
	assert.Equal(t, 59337.21, btc.Value)
	assert.Equal(t, "USD", btc.Base)
	assert.Equal(t, NameCoinGecko, btc.Source)
}

func TestCoinGeckoUnmappedCodesOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bitcoin": {"usd": 60000}}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "USD", geckoIDs, 5)

	table, err := p.FetchRates(context.Background(), []string{"BTC", "SHIB"})
	require.NoError(t, err)
	assert.Len(t, table, 1)
	assert.Contains(t, table, "BTC")
}

func TestCoinGeckoAllCodesUnmapped(t *testing.T) {
	// No HTTP call should be made when nothing can be requested.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request to upstream")
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "USD", geckoIDs, 5)

	table, err := p.FetchRates(context.Background(), []string{"SHIB", "PEPE"})
	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestCoinGeckoMissingFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bitcoin": {"usd": 60000}}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.URL, "USD", geckoIDs, 5)

	table, err := p.FetchRates(context.Background(), []string{"BTC", "SOL"})
	require.NoError(t, err)
	assert.Len(t, table, 1)
	assert.NotContains(t, table, "SOL")
}

func TestCoinGeckoErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, wantErr: ErrNetwork},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewCoinGeckoProvider(srv.URL, "USD", geckoIDs, 5)

			_, err := p.FetchRates(context.Background(), []string{"BTC"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCoinGeckoEmptyCodeSet(t *testing.T) {
	p := NewCoinGeckoProvider("http://unused", "USD", geckoIDs, 5)

	_, err := p.FetchRates(context.Background(), []string{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
