// Package ledger talks to the Ethereum application of Ledger hardware wallets.
// The APDU protocol is documented in
// https://github.com/LedgerHQ/app-ethereum/blob/develop/doc/ethapp.adoc
package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// opcode is an enumeration encoding the supported Ledger instructions.
type opcode byte

const (
	claEthereum byte = 0xe0

	opGetAddress          opcode = 0x02 // Returns the public key and address for a BIP32 path
	opSignTransaction     opcode = 0x04 // Signs a transaction after the user validated it
	opGetConfiguration    opcode = 0x06 // Returns the application version and flags
	opSignPersonalMessage opcode = 0x08 // Signs an EIP-191 personal message

	p1FirstChunk     byte = 0x00 // First data block of a multi chunk command
	p1NextChunk      byte = 0x80 // Subsequent data block
	p1ReturnAddress  byte = 0x00 // Return the address without user interaction
	p1DisplayAddress byte = 0x01 // Display the address and wait for confirmation
	p2NoChainCode    byte = 0x00 // Do not return the chain code
	p2ChainCode      byte = 0x01 // Return the chain code along with the address

	maxChunkSize = 255 // Lc is a single byte
	eip155Size   = 3   // Size of the EIP-155 chain_id,r,s tail of unsigned transactions
	maxPathDepth = 10

	statusOK = 0x9000
)

// String returns the instruction name, used as metrics label.
func (op opcode) String() string {
	switch op {
	case opGetAddress:
		return "get_address"
	case opSignTransaction:
		return "sign_transaction"
	case opGetConfiguration:
		return "get_configuration"
	case opSignPersonalMessage:
		return "sign_personal_message"
	default:
		return fmt.Sprintf("0x%02x", byte(op))
	}
}

// Status words returned by the Ethereum application.
const (
	StatusOK                  = statusOK
	StatusUserRefused         = 0x6985
	StatusInvalidData         = 0x6a80
	StatusWrongParameters     = 0x6b00
	StatusInstructionUnknown  = 0x6d00
	StatusClassUnknown        = 0x6e00
	StatusAppNotOpen          = 0x6e01
	StatusLocked              = 0x5515
	StatusIncorrectDataLength = 0x6700
)

var statusText = map[uint16]string{
	StatusUserRefused:         "condition of use not satisfied (denied by the user?)",
	StatusInvalidData:         "invalid data",
	StatusWrongParameters:     "incorrect parameters",
	StatusInstructionUnknown:  "instruction not supported",
	StatusClassUnknown:        "class not supported (is the Ethereum app open?)",
	StatusAppNotOpen:          "application not open",
	StatusLocked:              "device is locked",
	StatusIncorrectDataLength: "incorrect data length",
}

// StatusError is returned when the device answers with a status word other than 0x9000.
type StatusError struct {
	Code uint16
}

func (e *StatusError) Error() string {
	if text, ok := statusText[e.Code]; ok {
		return fmt.Sprintf("ledger: %s (0x%04x)", text, e.Code)
	}

	return fmt.Sprintf("ledger: unexpected status word 0x%04x", e.Code)
}

// IsUserRefused reports whether err is the device signalling that the user rejected the request.
func IsUserRefused(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == StatusUserRefused
}

// command builds a single APDU frame.
func command(op opcode, p1 byte, p2 byte, data []byte) []byte {
	apdu := make([]byte, 0, 5+len(data))
	apdu = append(apdu, claEthereum, byte(op), p1, p2, byte(len(data)))
	return append(apdu, data...)
}

// splitStatus separates the payload of a reply from its status word.
func splitStatus(reply []byte) ([]byte, error) {
	if len(reply) < 2 {
		return nil, errors.New("ledger: reply too short to contain a status word")
	}

	payload, sw := reply[:len(reply)-2], binary.BigEndian.Uint16(reply[len(reply)-2:])
	if sw != statusOK {
		return nil, &StatusError{Code: sw}
	}

	return payload, nil
}

// encodePath flattens BIP32 components into the Ledger request prefix.
func encodePath(components []uint32) ([]byte, error) {
	if len(components) == 0 || len(components) > maxPathDepth {
		return nil, errors.Errorf("ledger: derivation path must have 1 to %d components, got %d", maxPathDepth, len(components))
	}

	path := make([]byte, 1+4*len(components))
	path[0] = byte(len(components))
	for i, component := range components {
		binary.BigEndian.PutUint32(path[1+4*i:], component)
	}

	return path, nil
}

// DecodePath is the inverse of encodePath, it returns the components and the
// remaining data.
func DecodePath(data []byte) ([]uint32, []byte, error) {
	if len(data) < 1 {
		return nil, nil, errors.New("ledger: missing derivation path length")
	}

	depth := int(data[0])
	if depth == 0 || depth > maxPathDepth || len(data) < 1+4*depth {
		return nil, nil, errors.New("ledger: malformed derivation path")
	}

	components := make([]uint32, depth)
	for i := range components {
		components[i] = binary.BigEndian.Uint32(data[1+4*i:])
	}

	return components, data[1+4*depth:], nil
}

// transactionChunkSize picks a chunk size so the last chunk never holds only
// the EIP-155 tail, which the app fails to parse on its own.
// https://github.com/LedgerHQ/app-ethereum/issues/409
func transactionChunkSize(payloadLen int) int {
	chunk := maxChunkSize
	for payloadLen > eip155Size && chunk > eip155Size+1 && payloadLen%chunk <= eip155Size {
		chunk--
	}

	return chunk
}
