package subprovider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

func TestHookedWalletCallbacks(t *testing.T) {
	dev := newFakeDevice()
	wallet := subprovider.NewHookedWallet(newProvider(dev, subprovider.Options{AccountsLength: 2}))

	var (
		calls     int
		addresses []string
	)
	wallet.GetAccounts(t.Context(), func(err error, result []string) {
		calls++
		require.NoError(t, err)
		addresses = result
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{
		"0xAaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0xBbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}, addresses)

	wallet.SignPersonalMessage(t.Context(), &subprovider.MessageParams{From: addresses[0], Data: "0x01"}, func(err error, signature string) {
		calls++
		require.NoError(t, err)
		assert.Len(t, signature, 132)
	})

	wallet.SignTransaction(t.Context(), &subprovider.TxParams{From: addresses[1]}, func(err error, signed string) {
		calls++
		require.NoError(t, err)
		assert.NotEmpty(t, signed)
	})

	wallet.SignTransaction(t.Context(), &subprovider.TxParams{From: "0x0000000000000000000000000000000000000001"}, func(err error, signed string) {
		calls++
		require.ErrorIs(t, err, subprovider.ErrUnknownAddress)
		assert.Empty(t, signed)
	})

	assert.Equal(t, 4, calls)
}

func TestHookedWalletGetAccountsError(t *testing.T) {
	dev := newFakeDevice()
	dev.failPath = "m/44'/60'/0'/0/0"
	wallet := subprovider.NewHookedWallet(newProvider(dev, subprovider.Options{}))

	wallet.GetAccounts(t.Context(), func(err error, addresses []string) {
		require.ErrorIs(t, err, errDevice)
		assert.Nil(t, addresses)
	})
}
