package test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/wallet/device"
	"github/chapool/ledger-subprovider/internal/wallet/emulator"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
)

// Mnemonic is the well known development mnemonic used by the test emulator.
const Mnemonic = "test test test test test test test test test test test junk"

// NewTestEmulator returns an emulated device closed on test cleanup.
func NewTestEmulator(t *testing.T, opts ...emulator.Option) *emulator.Transport {
	t.Helper()

	transport, err := emulator.New(Mnemonic, "", opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = transport.Close()
	})

	return transport
}

// NewTestOpener returns an opener creating Ledger app sessions on transport.
//
//nolint:ireturn
func NewTestOpener(t *testing.T, transport device.Transport) device.Opener {
	t.Helper()

	return ledger.NewOpener(device.ResolvedTransport(transport), nil)
}
