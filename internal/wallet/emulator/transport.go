// Package emulator is an in-process stand-in for a Ledger running the Ethereum
// application. It answers the same APDU commands from keys derived from a BIP39
// mnemonic and is meant for development and tests only.
package emulator

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-subprovider/internal/wallet/device"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
)

const (
	cla byte = 0xe0

	insGetAddress          byte = 0x02
	insSignTransaction     byte = 0x04
	insGetConfiguration    byte = 0x06
	insSignPersonalMessage byte = 0x08

	p1First byte = 0x00
	p1More  byte = 0x80

	legacyTxFields = 6
	eip155TxFields = 9
)

// AppVersion is reported by GET_APP_CONFIGURATION.
var AppVersion = [3]byte{1, 9, 17}

// Request describes a command waiting for user approval.
type Request struct {
	Instruction string
	Path        accounts.DerivationPath
	Payload     []byte // Message or RLP transaction, nil for address display
}

// ConfirmFunc plays the user pressing the buttons. Returning false rejects the
// request with status 0x6985.
type ConfirmFunc func(req Request) bool

// Option configures a Transport.
type Option func(t *Transport)

// WithConfirm installs the function approving requests. The default approves everything.
func WithConfirm(confirm ConfirmFunc) Option {
	return func(t *Transport) {
		t.confirm = confirm
	}
}

// Transport implements device.Transport without any hardware.
type Transport struct {
	mu      sync.Mutex
	keys    *keyring
	confirm ConfirmFunc
	closed  bool

	// multi chunk command in progress
	pendingIns byte
	pending    []byte
}

var _ device.Transport = (*Transport)(nil)

// New creates an emulated device holding the seed of mnemonic.
func New(mnemonic string, passphrase string, opts ...Option) (*Transport, error) {
	keys, err := newKeyring(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		keys:    keys,
		confirm: func(Request) bool { return true },
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Close wipes the seed. Exchanges after Close fail.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.keys.wipe()
		t.closed = true
	}

	return nil
}

// Exchange implements device.Transport.
func (t *Transport) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "emulator exchange cancelled")
	}

	if t.closed {
		return nil, errors.New("emulator: transport closed")
	}

	//nolint:mnd // CLA INS P1 P2 Lc
	if len(apdu) < 5 {
		return status(ledger.StatusIncorrectDataLength), nil
	}

	ins, p1, p2, data := apdu[1], apdu[2], apdu[3], apdu[5:]
	if apdu[0] != cla {
		return status(ledger.StatusClassUnknown), nil
	}
	if int(apdu[4]) != len(data) {
		return status(ledger.StatusIncorrectDataLength), nil
	}

	log.Trace().Hex("apdu", apdu).Msg("Emulator received APDU")

	var (
		reply []byte
		code  uint16
	)

	switch ins {
	case insGetAddress:
		reply, code = t.getAddress(p1, p2, data)
	case insSignTransaction:
		reply, code = t.accumulate(ins, p1, data, t.signTransaction)
	case insSignPersonalMessage:
		reply, code = t.accumulate(ins, p1, data, t.signPersonalMessage)
	case insGetConfiguration:
		reply, code = []byte{0x01, AppVersion[0], AppVersion[1], AppVersion[2]}, ledger.StatusOK
	default:
		code = ledger.StatusInstructionUnknown
	}

	return append(reply, status(code)...), nil
}

func (t *Transport) getAddress(p1 byte, p2 byte, data []byte) ([]byte, uint16) {
	path, _, err := ledger.DecodePath(data)
	if err != nil {
		return nil, ledger.StatusInvalidData
	}

	key, chainCode, err := t.keys.derive(path)
	if err != nil {
		log.Debug().Err(err).Msg("Emulator failed to derive key")
		return nil, ledger.StatusInvalidData
	}

	if p1 == 0x01 && !t.confirm(Request{Instruction: "get_address", Path: path}) {
		return nil, ledger.StatusUserRefused
	}

	publicKey := crypto.FromECDSAPub(&key.PublicKey)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()[2:]

	reply := make([]byte, 0, 2+len(publicKey)+len(address)+len(chainCode))
	reply = append(reply, byte(len(publicKey)))
	reply = append(reply, publicKey...)
	reply = append(reply, byte(len(address)))
	reply = append(reply, address...)
	if p2 == 0x01 {
		reply = append(reply, chainCode...)
	}

	return reply, ledger.StatusOK
}

// accumulate buffers chunked commands until complete reports the payload as
// whole, then runs it. Intermediate chunks are acknowledged with an empty reply.
func (t *Transport) accumulate(ins byte, p1 byte, data []byte, complete func(path accounts.DerivationPath, payload []byte) ([]byte, uint16, bool)) ([]byte, uint16) {
	switch {
	case p1 == p1First:
		t.pendingIns, t.pending = ins, append([]byte(nil), data...)
	case p1 == p1More && t.pendingIns == ins && t.pending != nil:
		t.pending = append(t.pending, data...)
	default:
		t.reset()
		return nil, ledger.StatusWrongParameters
	}

	path, payload, err := ledger.DecodePath(t.pending)
	if err != nil {
		t.reset()
		return nil, ledger.StatusInvalidData
	}

	reply, code, done := complete(path, payload)
	if done {
		t.reset()
	}

	return reply, code
}

func (t *Transport) reset() {
	t.pendingIns, t.pending = 0, nil
}

func (t *Transport) signTransaction(path accounts.DerivationPath, payload []byte) ([]byte, uint16, bool) {
	_, _, rest, err := rlp.Split(payload)
	switch {
	case errors.Is(err, rlp.ErrValueTooLarge):
		return nil, ledger.StatusOK, false
	case err != nil || len(rest) != 0:
		return nil, ledger.StatusInvalidData, true
	}

	var fields []rlp.RawValue
	if err := rlp.DecodeBytes(payload, &fields); err != nil {
		return nil, ledger.StatusInvalidData, true
	}

	chainID := new(big.Int)
	switch len(fields) {
	case legacyTxFields:
		chainID = nil
	case eip155TxFields:
		if err := rlp.DecodeBytes(fields[6], chainID); err != nil {
			// single byte network ids below 0x80 may be encoded as 0x00
			if len(fields[6]) != 1 {
				return nil, ledger.StatusInvalidData, true
			}
			chainID.SetUint64(uint64(fields[6][0]))
		}
	default:
		return nil, ledger.StatusInvalidData, true
	}

	key, code := t.approve("sign_transaction", path, payload)
	if key == nil {
		return nil, code, true
	}

	sig, err := crypto.Sign(crypto.Keccak256(payload), key)
	if err != nil {
		return nil, ledger.StatusInvalidData, true
	}

	v := new(big.Int).SetUint64(uint64(sig[crypto.RecoveryIDOffset]))
	if chainID == nil {
		v.Add(v, big.NewInt(27)) //nolint:mnd
	} else {
		v.Add(v, new(big.Int).Add(new(big.Int).Lsh(chainID, 1), big.NewInt(35))) //nolint:mnd
	}

	// The app only has room for the low byte of v.
	return signatureReply(byte(v.Uint64()), sig), ledger.StatusOK, true
}

func (t *Transport) signPersonalMessage(path accounts.DerivationPath, payload []byte) ([]byte, uint16, bool) {
	//nolint:mnd // 4 byte big endian message length
	if len(payload) < 4 {
		return nil, ledger.StatusInvalidData, true
	}

	length := int(binary.BigEndian.Uint32(payload))
	message := payload[4:]

	switch {
	case len(message) < length:
		return nil, ledger.StatusOK, false
	case len(message) > length:
		return nil, ledger.StatusInvalidData, true
	}

	key, code := t.approve("sign_personal_message", path, message)
	if key == nil {
		return nil, code, true
	}

	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, ledger.StatusInvalidData, true
	}

	return signatureReply(27+sig[crypto.RecoveryIDOffset], sig), ledger.StatusOK, true //nolint:mnd
}

func (t *Transport) approve(instruction string, path accounts.DerivationPath, payload []byte) (*ecdsa.PrivateKey, uint16) {
	key, _, err := t.keys.derive(path)
	if err != nil {
		log.Debug().Err(err).Msg("Emulator failed to derive key")
		return nil, ledger.StatusInvalidData
	}

	if !t.confirm(Request{Instruction: instruction, Path: path, Payload: bytes.Clone(payload)}) {
		return nil, ledger.StatusUserRefused
	}

	return key, ledger.StatusOK
}

// signatureReply lays out a [R || S || recid] signature as V R S.
func signatureReply(v byte, sig []byte) []byte {
	reply := make([]byte, 0, crypto.SignatureLength)
	reply = append(reply, v)
	return append(reply, sig[:64]...)
}

func status(code uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, code)
}
