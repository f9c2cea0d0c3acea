// Package envelope encodes legacy Ethereum transactions the way the Ledger
// Ethereum application expects them, and installs the signature it returns.
package envelope

import (
	"bytes"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github/chapool/ledger-subprovider/internal/wallet/device"
)

// Envelope is a legacy transaction in its RLP field order. Before signing V, R
// and S hold the EIP-155 replay protection slots, after signing the signature.
type Envelope struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       *common.Address `rlp:"nil"` // nil means contract creation
	Value    *big.Int
	Data     []byte
	V        []byte
	R        []byte
	S        []byte
}

// SeedEIP155 prepares the envelope for signing under networkID.
//
// V is set to the single byte networkID & 0xff and R, S are emptied. Network
// ids above 255 are truncated, the device derives its v from this byte and
// existing signatures depend on the exact encoding, so it must not change.
func (e *Envelope) SeedEIP155(networkID uint64) {
	e.V = []byte{byte(networkID & 0xff)} //nolint:mnd
	e.R = nil
	e.S = nil
}

// MarshalBinary returns the RLP encoding of the envelope.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	raw, err := rlp.EncodeToBytes(e)
	if err != nil {
		return nil, errors.Wrap(err, "failed to RLP encode transaction")
	}

	return raw, nil
}

// EncodeHex returns the RLP encoding as hex without 0x prefix.
func (e *Envelope) EncodeHex() (string, error) {
	raw, err := e.MarshalBinary()
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(raw), nil
}

// SetSignature installs a device signature. V is kept as returned, leading
// zero bytes are stripped from R and S so they encode as canonical integers.
func (e *Envelope) SetSignature(sig *device.TxSignature) error {
	v, err := hex.DecodeString(sig.V)
	if err != nil {
		return errors.Wrap(err, "signature v is not valid hex")
	}
	r, err := hex.DecodeString(sig.R)
	if err != nil {
		return errors.Wrap(err, "signature r is not valid hex")
	}
	s, err := hex.DecodeString(sig.S)
	if err != nil {
		return errors.Wrap(err, "signature s is not valid hex")
	}

	if len(v) == 0 {
		return errors.New("signature lacks v")
	}

	e.V = v
	e.R = bytes.TrimLeft(r, "\x00")
	e.S = bytes.TrimLeft(s, "\x00")

	return nil
}

// SignedChainID returns the chain id implied by the first byte of V, that is
// floor((v - 35) / 2).
func (e *Envelope) SignedChainID() (int, error) {
	if len(e.V) == 0 {
		return 0, errors.New("transaction is not signed")
	}

	//nolint:mnd // EIP-155: v = chainId * 2 + 35 + recid
	n := int(e.V[0]) - 35
	if n < 0 {
		// floor for negative values, Go truncates towards zero
		return (n - 1) / 2, nil //nolint:mnd
	}

	return n / 2, nil //nolint:mnd
}

// Transaction converts the envelope into a go-ethereum legacy transaction.
func (e *Envelope) Transaction() *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    e.Nonce,
		GasPrice: bigOrZero(e.GasPrice),
		Gas:      e.GasLimit,
		To:       e.To,
		Value:    bigOrZero(e.Value),
		Data:     e.Data,
		V:        new(big.Int).SetBytes(e.V),
		R:        new(big.Int).SetBytes(e.R),
		S:        new(big.Int).SetBytes(e.S),
	})
}

// Decode parses an RLP encoded envelope, signed or not.
func Decode(raw []byte) (*Envelope, error) {
	var e Envelope
	if err := rlp.DecodeBytes(raw, &e); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction envelope")
	}

	return &e, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return v
}
