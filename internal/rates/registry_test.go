package rates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()

	t.Run("known fiat", func(t *testing.T) {
		c, err := reg.Lookup("usd")
		require.NoError(t, err)
		assert.Equal(t, "USD", c.Code)
		assert.Equal(t, KindFiat, c.Kind)
		assert.NotEmpty(t, c.IssuingCountry)
	})

	t.Run("known crypto", func(t *testing.T) {
		c, err := reg.Lookup("BTC")
		require.NoError(t, err)
		assert.Equal(t, KindCrypto, c.Kind)
		assert.NotEmpty(t, c.Algorithm)
	})

	t.Run("unregistered code", func(t *testing.T) {
		_, err := reg.Lookup("CHF")
		assert.ErrorIs(t, err, ErrUnknownCurrency)
	})

	t.Run("malformed code", func(t *testing.T) {
		_, err := reg.Lookup("not-a-code")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})
}

func TestRegistryKnown(t *testing.T) {
	reg := DefaultRegistry()

	assert.True(t, reg.Known("eth"))
	assert.True(t, reg.Known("EUR"))
	assert.False(t, reg.Known("XYZ"))
}

func TestRegistryCodesByKind(t *testing.T) {
	reg := NewRegistry(
		Currency{Code: "usd", Kind: KindFiat},
		Currency{Code: "EUR", Kind: KindFiat},
		Currency{Code: "btc", Kind: KindCrypto},
	)

	assert.Equal(t, []string{"EUR", "USD"}, reg.CodesByKind(KindFiat))
	assert.Equal(t, []string{"BTC"}, reg.CodesByKind(KindCrypto))
}

func TestRegistryAllSorted(t *testing.T) {
	all := DefaultRegistry().All()
	require.Len(t, all, 11)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Code, all[i].Code)
	}
}
