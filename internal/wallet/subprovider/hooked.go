package subprovider

import (
	"context"
)

// HookedWallet is the callback style wallet interface of the web3 provider
// engine middleware. Each callback is invoked exactly once with either an error
// or the result.
type HookedWallet interface {
	GetAccounts(ctx context.Context, cb func(err error, addresses []string))
	SignPersonalMessage(ctx context.Context, msg *MessageParams, cb func(err error, signature string))
	SignTransaction(ctx context.Context, tx *TxParams, cb func(err error, signed string))
}

type hookedWallet struct {
	provider *Provider
}

// NewHookedWallet adapts provider to the HookedWallet interface.
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewHookedWallet(provider *Provider) HookedWallet {
	return &hookedWallet{provider: provider}
}

func (w *hookedWallet) GetAccounts(ctx context.Context, cb func(err error, addresses []string)) {
	accounts, err := w.provider.GetAccounts(ctx)
	if err != nil {
		cb(err, nil)
		return
	}

	cb(nil, accounts.Addresses())
}

func (w *hookedWallet) SignPersonalMessage(ctx context.Context, msg *MessageParams, cb func(err error, signature string)) {
	signature, err := w.provider.SignPersonalMessage(ctx, msg)
	if err != nil {
		cb(err, "")
		return
	}

	cb(nil, signature)
}

func (w *hookedWallet) SignTransaction(ctx context.Context, tx *TxParams, cb func(err error, signed string)) {
	signed, err := w.provider.SignTransaction(ctx, tx)
	if err != nil {
		cb(err, "")
		return
	}

	cb(nil, signed)
}
