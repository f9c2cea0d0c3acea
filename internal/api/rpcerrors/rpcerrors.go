// Package rpcerrors maps wallet failures to JSON-RPC error objects served by
// the go-ethereum rpc server.
package rpcerrors

import (
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

// Error codes, https://www.jsonrpc.org/specification#error_object and EIP-1193.
// The protocol level codes are produced by the rpc server itself.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
	CodeUserRejected   = 4001
)

var (
	_ rpc.Error     = (*Error)(nil)
	_ rpc.DataError = (*Error)(nil)
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *Data  `json:"data,omitempty"`
}

// Data carries the stable identifier of provider errors.
type Data struct {
	ID string `json:"id"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) ErrorCode() int {
	return e.Code
}

func (e *Error) ErrorData() any {
	if e.Data == nil {
		// a typed nil would be rendered as "data": null
		return nil
	}

	return e.Data
}

func NewInvalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params: " + err.Error()}
}

// FromError converts an error returned by the wallet into an error object.
func FromError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	if ledger.IsUserRefused(err) {
		return &Error{Code: CodeUserRejected, Message: "User rejected the request on the device"}
	}

	result := &Error{Code: CodeServerError, Message: err.Error()}
	if id := subprovider.ErrorID(err); id != "" {
		// keep the plain message, clients match on it
		result.Message = errors.Cause(err).Error()
		result.Data = &Data{ID: id}
	}

	return result
}
