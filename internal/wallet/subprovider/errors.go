package subprovider

import (
	"fmt"

	"github.com/pkg/errors"
)

// Stable error identifiers, exposed to JSON-RPC clients.
const (
	ErrorIDUnknownAddress   = "UnknownAddress"
	ErrorIDInvalidNetworkID = "InvalidNetworkId"
)

// ErrUnknownAddress is returned when signing is requested for an address that
// no enumeration has produced.
var ErrUnknownAddress = errors.New("address unknown")

type unknownAddressError struct {
	from string
}

func (e *unknownAddressError) Error() string {
	return fmt.Sprintf("address unknown '%s'", e.from)
}

func (e *unknownAddressError) Is(target error) bool {
	return target == ErrUnknownAddress
}

func newUnknownAddressError(from string) error {
	return errors.WithStack(&unknownAddressError{from: from})
}

// InvalidNetworkIDError is returned when the signature returned by the device
// does not encode the configured network id.
type InvalidNetworkIDError struct {
	Expected uint64
	Got      int
}

func (e *InvalidNetworkIDError) Error() string {
	return fmt.Sprintf("Invalid networkId signature returned. Expected: %d, Got: %d", e.Expected, e.Got)
}

// ErrorID returns the stable identifier of err, or an empty string for errors
// without one.
func ErrorID(err error) string {
	var networkErr *InvalidNetworkIDError

	switch {
	case errors.Is(err, ErrUnknownAddress):
		return ErrorIDUnknownAddress
	case errors.As(err, &networkErr):
		return ErrorIDInvalidNetworkID
	default:
		return ""
	}
}
