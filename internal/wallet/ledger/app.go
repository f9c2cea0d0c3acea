package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/ledger-subprovider/internal/metrics"
	"github/chapool/ledger-subprovider/internal/wallet/derivation"
	"github/chapool/ledger-subprovider/internal/wallet/device"
)

// AppConfiguration is the reply of the GET_APP_CONFIGURATION instruction.
type AppConfiguration struct {
	ArbitraryDataEnabled      bool
	ERC20ProvisioningRequired bool
	Version                   string
}

// EthApp is a session with the Ethereum application over an APDU transport.
// It is cheap to create, callers make a new one per operation.
type EthApp struct {
	transport device.Transport
	metrics   *metrics.Service
}

var _ device.Device = (*EthApp)(nil)

// NewEthApp creates a session on transport. metrics may be nil.
func NewEthApp(transport device.Transport, metrics *metrics.Service) *EthApp {
	return &EthApp{
		transport: transport,
		metrics:   metrics,
	}
}

// NewOpener returns a device.Opener awaiting the transport promise and opening
// a fresh EthApp session on every call.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewOpener(promise *device.TransportPromise, metrics *metrics.Service) device.Opener {
	return device.OpenerFunc(func(ctx context.Context) (device.Device, error) {
		transport, err := promise.Await(ctx)
		if err != nil {
			return nil, err
		}

		return NewEthApp(transport, metrics), nil
	})
}

// GetAddress implements device.Device.
//
// Reply layout:
//
//	Description             | Length
//	------------------------+-------------------
//	Public Key length       | 1 byte
//	Uncompressed Public Key | arbitrary
//	Ethereum address length | 1 byte
//	Ethereum address        | 40 bytes hex ascii
//	Chain code if requested | 32 bytes
func (a *EthApp) GetAddress(ctx context.Context, path string, display bool, chainCode bool) (*device.Address, error) {
	prefix, err := pathPrefix(path)
	if err != nil {
		return nil, err
	}

	p1, p2 := p1ReturnAddress, p2NoChainCode
	if display {
		p1 = p1DisplayAddress
	}
	if chainCode {
		p2 = p2ChainCode
	}

	reply, err := a.exchange(ctx, opGetAddress, p1, p2, prefix)
	if err != nil {
		return nil, err
	}

	if len(reply) < 1 || len(reply) < 1+int(reply[0]) {
		return nil, errors.New("ledger: reply lacks public key entry")
	}
	publicKey := reply[1 : 1+int(reply[0])]
	reply = reply[1+int(reply[0]):]

	if len(reply) < 1 || len(reply) < 1+int(reply[0]) {
		return nil, errors.New("ledger: reply lacks address entry")
	}
	addressASCII := string(reply[1 : 1+int(reply[0])])
	reply = reply[1+int(reply[0]):]

	if _, err := hex.DecodeString(addressASCII); err != nil {
		return nil, errors.Wrap(err, "ledger: reply contains a malformed address")
	}

	result := &device.Address{
		PublicKey: hex.EncodeToString(publicKey),
		Address:   "0x" + addressASCII,
	}

	if chainCode {
		//nolint:mnd // BIP32 chain codes are 32 bytes
		if len(reply) < 32 {
			return nil, errors.New("ledger: reply lacks chain code")
		}
		result.ChainCode = hex.EncodeToString(reply[:32])
	}

	return result, nil
}

// SignPersonalMessage implements device.Device. The first chunk carries the path
// and the 4 byte big endian message length, later chunks only message data.
func (a *EthApp) SignPersonalMessage(ctx context.Context, path string, hexData string) (*device.MessageSignature, error) {
	prefix, err := pathPrefix(path)
	if err != nil {
		return nil, err
	}

	message, err := hex.DecodeString(hexData)
	if err != nil {
		return nil, errors.Wrap(err, "message is not valid hex")
	}

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(message)))

	payload := append(append(prefix, length...), message...)

	reply, err := a.exchangeChunks(ctx, opSignPersonalMessage, payload, maxChunkSize)
	if err != nil {
		return nil, err
	}

	v, r, s, err := splitSignature(reply)
	if err != nil {
		return nil, err
	}

	return &device.MessageSignature{
		V: int(v[0]),
		R: r,
		S: s,
	}, nil
}

// SignTransaction implements device.Device. The payload is the path followed by
// the RLP transaction, sent in chunks of at most 255 bytes.
func (a *EthApp) SignTransaction(ctx context.Context, path string, rawTxHex string) (*device.TxSignature, error) {
	prefix, err := pathPrefix(path)
	if err != nil {
		return nil, err
	}

	rawTx, err := hex.DecodeString(rawTxHex)
	if err != nil {
		return nil, errors.Wrap(err, "transaction is not valid hex")
	}

	payload := append(prefix, rawTx...)

	reply, err := a.exchangeChunks(ctx, opSignTransaction, payload, transactionChunkSize(len(payload)))
	if err != nil {
		return nil, err
	}

	v, r, s, err := splitSignature(reply)
	if err != nil {
		return nil, err
	}

	return &device.TxSignature{
		V: hex.EncodeToString(v),
		R: r,
		S: s,
	}, nil
}

// GetAppConfiguration returns the version of the running Ethereum application.
func (a *EthApp) GetAppConfiguration(ctx context.Context) (*AppConfiguration, error) {
	reply, err := a.exchange(ctx, opGetConfiguration, 0, 0, nil)
	if err != nil {
		return nil, err
	}

	//nolint:mnd // flags + major + minor + patch
	if len(reply) != 4 {
		return nil, errors.New("ledger: invalid version reply")
	}

	return &AppConfiguration{
		ArbitraryDataEnabled:      reply[0]&0x01 != 0,
		ERC20ProvisioningRequired: reply[0]&0x02 != 0,
		Version:                   fmt.Sprintf("%d.%d.%d", reply[1], reply[2], reply[3]),
	}, nil
}

func (a *EthApp) exchangeChunks(ctx context.Context, op opcode, payload []byte, chunkSize int) ([]byte, error) {
	var (
		p1    = p1FirstChunk
		reply []byte
		err   error
	)

	for len(payload) > 0 {
		chunk := chunkSize
		if chunk > len(payload) {
			chunk = len(payload)
		}

		reply, err = a.exchange(ctx, op, p1, 0, payload[:chunk])
		if err != nil {
			return nil, err
		}

		payload = payload[chunk:]
		p1 = p1NextChunk
	}

	return reply, nil
}

func (a *EthApp) exchange(ctx context.Context, op opcode, p1 byte, p2 byte, data []byte) ([]byte, error) {
	if len(data) > maxChunkSize {
		return nil, errors.Errorf("ledger: APDU data too long (%d bytes)", len(data))
	}

	start := time.Now()
	reply, err := a.transport.Exchange(ctx, command(op, p1, p2, data))
	if a.metrics != nil {
		a.metrics.ObserveExchange(op.String(), time.Since(start))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "ledger: %s exchange failed", op)
	}

	return splitStatus(reply)
}

func pathPrefix(path string) ([]byte, error) {
	components, err := derivation.Parse(path)
	if err != nil {
		return nil, err
	}

	return encodePath(components)
}

// splitSignature splits a V(1) R(32) S(32) reply.
func splitSignature(reply []byte) ([]byte, string, string, error) {
	if len(reply) != crypto.SignatureLength {
		return nil, "", "", errors.New("ledger: reply lacks signature")
	}

	return reply[:1], hex.EncodeToString(reply[1:33]), hex.EncodeToString(reply[33:65]), nil
}
