package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valutatradehub/internal/rates"
)

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "rates.json"))

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestFileStoreSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "rates.json")
	store := NewFileStore(path)

	fetchedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	table := rates.Table{}
	table.Set(rates.Entry{Code: "EUR", Value: 0.92, Base: "USD", Source: "fiat", FetchedAt: fetchedAt})

	in := &rates.Snapshot{Base: "USD", Table: table, LastRefreshAt: fetchedAt}
	require.NoError(t, store.Save(in), "Save must create intermediate directories")

	out, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "USD", out.Base)
	assert.True(t, out.LastRefreshAt.Equal(fetchedAt))

	eur := out.Table["EUR"]
	assert.Equal(t, 0.92, eur.Value)
	assert.Equal(t, "fiat", eur.Source)
	assert.True(t, eur.FetchedAt.Equal(fetchedAt))
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestFileStoreSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "rates.json"))

	require.NoError(t, store.Save(rates.EmptySnapshot("USD")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rates.json", entries[0].Name())
}

func TestFileStoreLoadNullPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"base":"USD","pairs":null}`), 0o644))

	snap, err := NewFileStore(path).Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.NotNil(t, snap.Table, "nil pairs must come back as an empty table")
}
