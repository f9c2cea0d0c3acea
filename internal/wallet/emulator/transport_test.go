package emulator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/test"
	"github/chapool/ledger-subprovider/internal/wallet/emulator"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
)

func TestNewInvalidMnemonic(t *testing.T) {
	_, err := emulator.New("test test test", "")
	require.ErrorIs(t, err, emulator.ErrInvalidMnemonic)
}

func TestPassphraseChangesAddresses(t *testing.T) {
	plain, err := emulator.New(test.Mnemonic, "")
	require.NoError(t, err)
	protected, err := emulator.New(test.Mnemonic, "secret")
	require.NoError(t, err)

	a, err := ledger.NewEthApp(plain, nil).GetAddress(t.Context(), "m/44'/60'/0'/0/0", false, false)
	require.NoError(t, err)
	b, err := ledger.NewEthApp(protected, nil).GetAddress(t.Context(), "m/44'/60'/0'/0/0", false, false)
	require.NoError(t, err)

	assert.NotEqual(t, a.Address, b.Address)
}

func TestRawCommands(t *testing.T) {
	transport := test.NewTestEmulator(t)

	reply, err := transport.Exchange(t.Context(), []byte{0xe0, 0x06, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 1, 9, 17, 0x90, 0x00}, reply)

	reply, err = transport.Exchange(t.Context(), []byte{0xe0, 0x42, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6d, 0x00}, reply)

	reply, err = transport.Exchange(t.Context(), []byte{0xb0, 0x06, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6e, 0x00}, reply)

	reply, err = transport.Exchange(t.Context(), []byte{0xe0, 0x06, 0x00, 0x00, 0x02, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x67, 0x00}, reply)

	// continuation without a first chunk
	reply, err = transport.Exchange(t.Context(), []byte{0xe0, 0x04, 0x80, 0x00, 0x01, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6b, 0x00}, reply)
}

func TestClosedTransport(t *testing.T) {
	transport, err := emulator.New(test.Mnemonic, "")
	require.NoError(t, err)
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	_, err = transport.Exchange(t.Context(), []byte{0xe0, 0x06, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestCancelledExchange(t *testing.T) {
	transport := test.NewTestEmulator(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := transport.Exchange(ctx, []byte{0xe0, 0x06, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, context.Canceled)
}
