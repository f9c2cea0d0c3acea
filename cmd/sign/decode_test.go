package sign_test

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/cmd/sign"
	"github/chapool/ledger-subprovider/internal/test"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

func signedEnvelope(t *testing.T, networkID uint64) (string, common.Address) {
	t.Helper()

	p := subprovider.NewProvider(test.NewTestOpener(t, test.NewTestEmulator(t)), subprovider.Options{NetworkID: networkID}, nil)

	accounts, err := p.GetAccounts(t.Context())
	require.NoError(t, err)

	to := common.HexToAddress("0x3535353535353535353535353535353535353535")
	nonce := hexutil.Uint64(5)
	gas := hexutil.Uint64(21000)

	signed, err := p.SignTransaction(t.Context(), &subprovider.TxParams{
		From:     accounts[0].Address,
		To:       &to,
		Nonce:    &nonce,
		GasPrice: (*hexutil.Big)(big.NewInt(20_000_000_000)),
		Gas:      &gas,
		Value:    (*hexutil.Big)(big.NewInt(1)),
	})
	require.NoError(t, err)

	return signed, common.HexToAddress(accounts[0].Address)
}

func TestDecode(t *testing.T) {
	signed, from := signedEnvelope(t, 42)

	decoded, err := sign.Decode(hexutil.MustDecode(signed))
	require.NoError(t, err)

	assert.Equal(t, from, decoded.From)
	assert.Equal(t, uint64(42), decoded.ChainID)
	assert.Equal(t, uint64(5), decoded.Nonce)
	assert.Equal(t, uint64(21000), decoded.Gas)
	assert.Equal(t, big.NewInt(1), decoded.Value.ToInt())
	require.NotNil(t, decoded.To)
	assert.Equal(t, common.HexToAddress("0x3535353535353535353535353535353535353535"), *decoded.To)
}

func TestDecodeWithoutReplayProtection(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, GasPrice: big.NewInt(1)}), types.HomesteadSigner{}, key)
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	decoded, err := sign.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), decoded.ChainID)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), decoded.From)
	assert.Nil(t, decoded.To)
}

func TestDecodeMultiByteV(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x3535353535353535353535353535353535353535")
	signer := types.NewEIP155Signer(big.NewInt(137))

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{Nonce: 2, To: &to, Gas: 21000, GasPrice: big.NewInt(30_000_000_000)}), signer, key)
	require.NoError(t, err)

	v, _, _ := tx.RawSignatureValues()
	require.Greater(t, v.BitLen(), 8, "v of chain 137 spans two bytes")

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	decoded, err := sign.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(137), decoded.ChainID)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), decoded.From)
	assert.Equal(t, tx.Hash(), decoded.Hash)
}

func TestDecodeUnsigned(t *testing.T) {
	_, err := sign.Decode(hexutil.MustDecode("0xec098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a764000080808080"))
	require.Error(t, err)
}

func TestDecodeCommand(t *testing.T) {
	signed, from := signedEnvelope(t, 3)

	cmd := sign.New()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"decode", signed})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), from.Hex())
	assert.Contains(t, out.String(), "chainId")
}
