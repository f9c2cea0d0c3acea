package ledger_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/metrics"
	"github/chapool/ledger-subprovider/internal/test"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
)

// scriptedTransport records every APDU and answers with the queued replies,
// falling back to a bare success status word.
type scriptedTransport struct {
	sent    [][]byte
	replies [][]byte
}

func (s *scriptedTransport) Exchange(_ context.Context, apdu []byte) ([]byte, error) {
	s.sent = append(s.sent, bytes.Clone(apdu))

	if len(s.replies) == 0 {
		return []byte{0x90, 0x00}, nil
	}

	reply := s.replies[0]
	s.replies = s.replies[1:]

	return reply, nil
}

func (s *scriptedTransport) Close() error {
	return nil
}

// m/44'/60'/0'/0/0
const encodedDefaultPath = "058000002c8000003c800000000000000000000000"

func signatureReply(v byte) []byte {
	reply := []byte{v}
	reply = append(reply, bytes.Repeat([]byte{0x11}, 32)...)
	reply = append(reply, bytes.Repeat([]byte{0x22}, 32)...)
	return append(reply, 0x90, 0x00)
}

func TestGetAddressCommand(t *testing.T) {
	transport := &scriptedTransport{}
	app := ledger.NewEthApp(transport, nil)

	// replies are checked against the emulator elsewhere, only the command matters here
	_, _ = app.GetAddress(t.Context(), "m/44'/60'/0'/0/0", true, true)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, "e0020101"+"15"+encodedDefaultPath, hex.EncodeToString(transport.sent[0]))
}

func TestGetAddressAgainstEmulator(t *testing.T) {
	app := ledger.NewEthApp(test.NewTestEmulator(t), metrics.New())

	address, err := app.GetAddress(t.Context(), "44'/60'/0'/0/0", false, true)
	require.NoError(t, err)

	assert.Len(t, address.Address, 42)
	assert.True(t, strings.HasPrefix(address.Address, "0x"))
	assert.Len(t, address.PublicKey, 130)
	assert.Len(t, address.ChainCode, 64)

	again, err := app.GetAddress(t.Context(), "m/44'/60'/0'/0/0", false, false)
	require.NoError(t, err)
	assert.Equal(t, address.Address, again.Address)
	assert.Empty(t, again.ChainCode)

	other, err := app.GetAddress(t.Context(), "m/44'/60'/0'/0/1", false, false)
	require.NoError(t, err)
	assert.NotEqual(t, address.Address, other.Address)
}

func TestGetAddressInvalidPath(t *testing.T) {
	transport := &scriptedTransport{}
	app := ledger.NewEthApp(transport, nil)

	_, err := app.GetAddress(t.Context(), "m/44'/x'/0'", false, false)
	require.Error(t, err)
	assert.Empty(t, transport.sent)
}

func TestStatusWordError(t *testing.T) {
	transport := &scriptedTransport{replies: [][]byte{{0x69, 0x85}, {0x6e, 0x00}}}
	app := ledger.NewEthApp(transport, nil)

	_, err := app.SignPersonalMessage(t.Context(), "m/44'/60'/0'/0/0", "00")
	require.Error(t, err)
	assert.True(t, ledger.IsUserRefused(err))
	assert.Contains(t, err.Error(), "0x6985")

	_, err = app.GetAppConfiguration(t.Context())
	var statusErr *ledger.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, uint16(ledger.StatusClassUnknown), statusErr.Code)
	assert.False(t, ledger.IsUserRefused(err))
}

func TestSignPersonalMessageChunks(t *testing.T) {
	transport := &scriptedTransport{replies: [][]byte{{0x90, 0x00}, {0x90, 0x00}, signatureReply(28)}}
	app := ledger.NewEthApp(transport, nil)

	message := strings.Repeat("ab", 600)
	sig, err := app.SignPersonalMessage(t.Context(), "m/44'/60'/0'/0/0", message)
	require.NoError(t, err)

	assert.Equal(t, 28, sig.V)
	assert.Equal(t, strings.Repeat("11", 32), sig.R)
	assert.Equal(t, strings.Repeat("22", 32), sig.S)

	// 21 path + 4 length + 600 message = 625 bytes in 255 byte chunks
	require.Len(t, transport.sent, 3)
	assert.Equal(t, []byte{0xe0, 0x08, 0x00, 0x00, 0xff}, transport.sent[0][:5])
	assert.Equal(t, encodedDefaultPath+"00000258", hex.EncodeToString(transport.sent[0][5:30]))
	assert.Equal(t, []byte{0xe0, 0x08, 0x80, 0x00, 0xff}, transport.sent[1][:5])
	assert.Equal(t, []byte{0xe0, 0x08, 0x80, 0x00, 0x73}, transport.sent[2][:5])
}

func TestSignTransactionAvoidsLoneEIP155Tail(t *testing.T) {
	// 21 byte path + 236 byte transaction leaves 2 bytes after a 255 byte chunk
	rawTx := strings.Repeat("00", 236)

	transport := &scriptedTransport{replies: [][]byte{{0x90, 0x00}, signatureReply(0x25)}}
	app := ledger.NewEthApp(transport, nil)

	sig, err := app.SignTransaction(t.Context(), "m/44'/60'/0'/0/0", rawTx)
	require.NoError(t, err)
	assert.Equal(t, "25", sig.V)

	require.Len(t, transport.sent, 2)
	last := transport.sent[1]
	assert.Equal(t, byte(0x80), last[2])
	assert.Greater(t, int(last[4]), 3)
	assert.Equal(t, 257, int(transport.sent[0][4])+int(last[4]))
}

func TestSignTransactionMalformedReply(t *testing.T) {
	transport := &scriptedTransport{replies: [][]byte{{0x01, 0x02, 0x90, 0x00}}}
	app := ledger.NewEthApp(transport, nil)

	_, err := app.SignTransaction(t.Context(), "m/44'/60'/0'/0/0", "c0")
	require.Error(t, err)

	_, err = app.SignTransaction(t.Context(), "m/44'/60'/0'/0/0", "not hex")
	require.Error(t, err)
}

func TestGetAppConfiguration(t *testing.T) {
	app := ledger.NewEthApp(test.NewTestEmulator(t), nil)

	config, err := app.GetAppConfiguration(t.Context())
	require.NoError(t, err)
	assert.True(t, config.ArbitraryDataEnabled)
	assert.False(t, config.ERC20ProvisioningRequired)
	assert.Equal(t, "1.9.17", config.Version)
}
