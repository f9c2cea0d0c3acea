package envelope_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/wallet/device"
	"github/chapool/ledger-subprovider/internal/wallet/envelope"
)

func newEnvelope() *envelope.Envelope {
	to := common.HexToAddress("0x3535353535353535353535353535353535353535")

	return &envelope.Envelope{
		Nonce:    9,
		GasPrice: big.NewInt(20_000_000_000),
		GasLimit: 21000,
		To:       &to,
		Value:    big.NewInt(1_000_000_000_000_000_000),
	}
}

func TestSeedEIP155MatchesSigningPayload(t *testing.T) {
	// EIP-155 example transaction, the seeded envelope must be its signing payload.
	e := newEnvelope()
	e.SeedEIP155(1)

	raw, err := e.EncodeHex()
	require.NoError(t, err)
	assert.Equal(t, "ec098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a764000080018080", raw)
}

func TestSeedEIP155TruncatesNetworkID(t *testing.T) {
	e := newEnvelope()
	e.SeedEIP155(0x1234)

	assert.Equal(t, []byte{0x34}, e.V)
	assert.Empty(t, e.R)
	assert.Empty(t, e.S)
}

func TestSetSignatureStripsLeadingZeros(t *testing.T) {
	e := newEnvelope()
	e.SeedEIP155(1)

	err := e.SetSignature(&device.TxSignature{
		V: "25",
		R: "0000ab" + strings.Repeat("11", 29),
		S: "00" + strings.Repeat("22", 31),
	})
	require.NoError(t, err)

	assert.Equal(t, []byte{0x25}, e.V)
	assert.Equal(t, byte(0xab), e.R[0])
	assert.Len(t, e.R, 30)
	assert.Len(t, e.S, 31)

	require.Error(t, e.SetSignature(&device.TxSignature{V: "", R: "00", S: "00"}))
	require.Error(t, e.SetSignature(&device.TxSignature{V: "zz", R: "00", S: "00"}))
}

func TestSignedChainID(t *testing.T) {
	e := newEnvelope()

	_, err := e.SignedChainID()
	require.Error(t, err)

	for v, expected := range map[byte]int{37: 1, 38: 1, 35: 0, 36: 0, 28: -4, 27: -4, 0: -18, 255: 110} {
		e.V = []byte{v}
		chainID, err := e.SignedChainID()
		require.NoError(t, err)
		assert.Equal(t, expected, chainID, "v=%d", v)
	}
}

func TestDecodeRoundTripAndSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	signer := types.NewEIP155Signer(big.NewInt(3))
	e := newEnvelope()
	signed, err := types.SignTx(e.Transaction(), signer, key)
	require.NoError(t, err)

	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	decoded, err := envelope.Decode(raw)
	require.NoError(t, err)

	chainID, err := decoded.SignedChainID()
	require.NoError(t, err)
	assert.Equal(t, 3, chainID)

	sender, err := types.Sender(signer, decoded.Transaction())
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), sender)

	reencoded, err := decoded.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, reencoded)
}

func TestContractCreationEncodesEmptyTo(t *testing.T) {
	e := newEnvelope()
	e.To = nil
	e.Data = common.FromHex("0x6060")
	e.SeedEIP155(1)

	raw, err := e.MarshalBinary()
	require.NoError(t, err)

	decoded, err := envelope.Decode(raw)
	require.NoError(t, err)
	assert.Nil(t, decoded.To)
	assert.Equal(t, []byte{0x60, 0x60}, decoded.Data)
}
