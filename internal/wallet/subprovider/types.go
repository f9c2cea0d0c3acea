package subprovider

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github/chapool/ledger-subprovider/internal/wallet/derivation"
	"github/chapool/ledger-subprovider/internal/wallet/envelope"
)

// Options configures a Provider.
type Options struct {
	// NetworkID is the EIP-155 chain id transactions are signed for.
	NetworkID uint64
	// Path is the derivation path template, see derivation.PathFromIndex.
	Path string
	// AskConfirm makes the device display each enumerated address for confirmation.
	AskConfirm bool
	// AccountsLength is the number of accounts enumerated, at least 1.
	AccountsLength int
	// AccountsOffset is the index of the first enumerated account.
	AccountsOffset int
}

// DefaultOptions returns the options used for unset fields.
func DefaultOptions() Options {
	return Options{
		NetworkID:      1,
		Path:           derivation.DefaultPath,
		AskConfirm:     false,
		AccountsLength: 1,
		AccountsOffset: 0,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()

	if o.NetworkID == 0 {
		o.NetworkID = defaults.NetworkID
	}
	if o.Path == "" {
		o.Path = defaults.Path
	}
	if o.AccountsLength < 1 {
		o.AccountsLength = defaults.AccountsLength
	}
	if o.AccountsOffset < 0 {
		o.AccountsOffset = defaults.AccountsOffset
	}

	return o
}

// Account is an enumerated (path, address) pair.
type Account struct {
	Path    string `json:"path"`
	Address string `json:"address"`
}

// Accounts is the result of an enumeration, in enumeration order.
type Accounts []Account

// Addresses returns the addresses in enumeration order.
func (a Accounts) Addresses() []string {
	addresses := make([]string, len(a))
	for i, account := range a {
		addresses[i] = account.Address
	}

	return addresses
}

// ByPath returns the accounts as a path to address map.
func (a Accounts) ByPath() map[string]string {
	byPath := make(map[string]string, len(a))
	for _, account := range a {
		byPath[account.Path] = account.Address
	}

	return byPath
}

func (a Accounts) clone() Accounts {
	if a == nil {
		return Accounts{}
	}

	return append(Accounts(nil), a...)
}

// MessageParams are the parameters of a personal message signature request.
type MessageParams struct {
	From string `json:"from"`
	Data string `json:"data"` // hex, 0x prefix optional
}

// TxParams are the parameters of a transaction signature request. Missing
// numeric fields default to zero, a missing To creates a contract.
type TxParams struct {
	From     string          `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasLimit *hexutil.Uint64 `json:"gasLimit,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     *hexutil.Bytes  `json:"data,omitempty"`
	Input    *hexutil.Bytes  `json:"input,omitempty"`
}

// Envelope builds the unsigned transaction envelope.
func (p *TxParams) Envelope() *envelope.Envelope {
	e := &envelope.Envelope{
		To:       p.To,
		GasPrice: new(big.Int),
		Value:    new(big.Int),
	}

	if p.Nonce != nil {
		e.Nonce = uint64(*p.Nonce)
	}
	if p.GasPrice != nil {
		e.GasPrice = p.GasPrice.ToInt()
	}

	// "gas" is the JSON-RPC name, "gasLimit" the name used by transaction libraries
	switch {
	case p.Gas != nil:
		e.GasLimit = uint64(*p.Gas)
	case p.GasLimit != nil:
		e.GasLimit = uint64(*p.GasLimit)
	}

	if p.Value != nil {
		e.Value = p.Value.ToInt()
	}

	switch {
	case p.Data != nil:
		e.Data = *p.Data
	case p.Input != nil:
		e.Data = *p.Input
	}

	return e
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
