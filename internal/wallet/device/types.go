package device

import (
	"context"
	"io"
)

// Device is the Ethereum application running on a key-custody device.
// All keys stay on the device, callers only ever see addresses and signatures.
type Device interface {
	// GetAddress returns the address at path, optionally asking the user to
	// confirm it on the device screen and returning the BIP32 chain code.
	GetAddress(ctx context.Context, path string, display bool, chainCode bool) (*Address, error)

	// SignPersonalMessage signs hexData (no 0x prefix) with the EIP-191 personal message prefix.
	SignPersonalMessage(ctx context.Context, path string, hexData string) (*MessageSignature, error)

	// SignTransaction signs the RLP encoded transaction rawTxHex (no 0x prefix).
	SignTransaction(ctx context.Context, path string, rawTxHex string) (*TxSignature, error)
}

// Address is the reply of GetAddress.
type Address struct {
	PublicKey string // Uncompressed public key, hex without 0x prefix
	Address   string // Address with 0x prefix, case as returned by the device
	ChainCode string // Hex chain code, empty unless requested
}

// MessageSignature is the reply of SignPersonalMessage.
type MessageSignature struct {
	V int    // Recovery value in the device's convention (27 or 28)
	R string // 32 bytes, hex without 0x prefix
	S string // 32 bytes, hex without 0x prefix
}

// TxSignature is the reply of SignTransaction, every component hex encoded without 0x prefix.
type TxSignature struct {
	V string
	R string
	S string
}

// Transport moves APDU commands to a device and returns the raw reply,
// status word included.
type Transport interface {
	io.Closer
	Exchange(ctx context.Context, apdu []byte) ([]byte, error)
}

// Opener creates a fresh device session. Sessions are cheap, every signing
// operation opens its own.
type Opener interface {
	OpenDevice(ctx context.Context) (Device, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Device, error)

// OpenDevice implements Opener.
func (f OpenerFunc) OpenDevice(ctx context.Context) (Device, error) {
	return f(ctx)
}
