// Package subprovider turns a Ledger running the Ethereum application into the
// signing authority of a hooked wallet: it enumerates addresses, signs personal
// messages and signs transactions, keeping track of which derivation path
// belongs to which address.
package subprovider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/ledger-subprovider/internal/metrics"
	"github/chapool/ledger-subprovider/internal/util"
	"github/chapool/ledger-subprovider/internal/wallet/derivation"
	"github/chapool/ledger-subprovider/internal/wallet/device"
)

// Operation names used in logs and metrics.
const (
	OperationGetAccounts         = "get_accounts"
	OperationSignPersonalMessage = "sign_personal_message"
	OperationSignTransaction     = "sign_transaction"
)

// Provider implements the subprovider operations on top of a device.
// It is safe for concurrent use, enumerations are serialized.
type Provider struct {
	opener  device.Opener
	opts    Options
	metrics *metrics.Service

	enumerate sync.Mutex

	mu            sync.RWMutex
	addressToPath map[string]string
	lastAccounts  Accounts
}

// NewProvider creates a Provider opening device sessions through opener.
// Zero valued options fall back to DefaultOptions. metrics may be nil.
func NewProvider(opener device.Opener, opts Options, metrics *metrics.Service) *Provider {
	return &Provider{
		opener:        opener,
		opts:          opts.withDefaults(),
		metrics:       metrics,
		addressToPath: make(map[string]string),
	}
}

// Options returns the effective options.
func (p *Provider) Options() Options {
	return p.opts
}

// GetAccounts enumerates accountsLength addresses starting at accountsOffset.
//
// When the device returns, for some path, the same address the previous
// enumeration recorded for it, the previous result is returned as a whole.
// Every new address is remembered for later signing. On error nothing is
// returned and the previous result is kept.
func (p *Provider) GetAccounts(ctx context.Context) (result Accounts, err error) {
	ctx, log := p.begin(ctx, OperationGetAccounts)
	defer func() { p.finish(log, OperationGetAccounts, err) }()

	p.enumerate.Lock()
	defer p.enumerate.Unlock()

	dev, err := p.opener.OpenDevice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open device")
	}

	previous := p.snapshot().ByPath()
	accounts := make(Accounts, 0, p.opts.AccountsLength)

	for i := p.opts.AccountsOffset; i < p.opts.AccountsOffset+p.opts.AccountsLength; i++ {
		path := derivation.PathFromIndex(p.opts.Path, i)

		address, err := dev.GetAddress(ctx, path, p.opts.AskConfirm, false)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get address at %s", path)
		}

		if last, ok := previous[path]; ok && last == address.Address {
			log.Debug().Str("path", path).Str("address", address.Address).Msg("Address unchanged, returning previous accounts")
			return p.snapshot(), nil
		}

		accounts = append(accounts, Account{Path: path, Address: address.Address})
		p.remember(address.Address, path)

		log.Debug().Int("index", i).Str("path", path).Str("address", address.Address).Msg("Enumerated address")
	}

	p.mu.Lock()
	p.lastAccounts = accounts
	p.mu.Unlock()

	return accounts.clone(), nil
}

// SignPersonalMessage signs msg.Data with the key of msg.From and returns the
// 0x prefixed r || s || v signature, v being 0 or 1.
func (p *Provider) SignPersonalMessage(ctx context.Context, msg *MessageParams) (signature string, err error) {
	ctx, log := p.begin(ctx, OperationSignPersonalMessage)
	defer func() { p.finish(log, OperationSignPersonalMessage, err) }()

	path, err := p.pathOf(msg.From)
	if err != nil {
		return "", err
	}
	log.Debug().Str("path", path).Str("from", msg.From).Msg("Resolved signer path")

	dev, err := p.opener.OpenDevice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to open device")
	}

	result, err := dev.SignPersonalMessage(ctx, path, strip0x(msg.Data))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign personal message")
	}

	//nolint:mnd // the device returns v as 27 or 28
	v := result.V - 27
	if v < 0 {
		return "", errors.Errorf("device returned invalid signature v %d", result.V)
	}

	return fmt.Sprintf("0x%s%s%02x", result.R, result.S, v), nil
}

// SignTransaction signs the legacy transaction described by tx with the key of
// tx.From for the configured network and returns the 0x prefixed signed RLP.
func (p *Provider) SignTransaction(ctx context.Context, tx *TxParams) (signed string, err error) {
	ctx, log := p.begin(ctx, OperationSignTransaction)
	defer func() { p.finish(log, OperationSignTransaction, err) }()

	path, err := p.pathOf(tx.From)
	if err != nil {
		return "", err
	}
	log.Debug().Str("path", path).Str("from", tx.From).Msg("Resolved signer path")

	dev, err := p.opener.OpenDevice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to open device")
	}

	e := tx.Envelope()
	e.SeedEIP155(p.opts.NetworkID)

	unsigned, err := e.EncodeHex()
	if err != nil {
		return "", err
	}

	result, err := dev.SignTransaction(ctx, path, unsigned)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}

	if err := e.SetSignature(result); err != nil {
		return "", errors.Wrap(err, "device returned a malformed signature")
	}

	signedChainID, err := e.SignedChainID()
	if err != nil {
		return "", err
	}

	if expected := int(p.opts.NetworkID & 0xff); signedChainID != expected { //nolint:mnd
		return "", errors.WithStack(&InvalidNetworkIDError{Expected: p.opts.NetworkID, Got: signedChainID})
	}

	raw, err := e.EncodeHex()
	if err != nil {
		return "", err
	}

	return "0x" + raw, nil
}

func (p *Provider) pathOf(from string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	path, ok := p.addressToPath[normalizeAddress(from)]
	if !ok {
		return "", newUnknownAddressError(from)
	}

	return path, nil
}

func (p *Provider) remember(address string, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.addressToPath[normalizeAddress(address)] = path
}

func (p *Provider) snapshot() Accounts {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.lastAccounts.clone()
}

func (p *Provider) begin(ctx context.Context, operation string) (context.Context, zerolog.Logger) {
	log := util.LogFromContext(ctx).With().
		Str("component", "subprovider").
		Str("operation", operation).
		Str("call_id", uuid.NewString()).
		Logger()

	log.Debug().Msg("Starting operation")

	return log.WithContext(ctx), log
}

func (p *Provider) finish(log zerolog.Logger, operation string, err error) {
	p.metrics.ObserveOperation(operation, err)

	if err != nil {
		log.Error().Err(err).Msg("Operation failed")
		return
	}

	log.Debug().Msg("Operation finished")
}

func strip0x(data string) string {
	if strings.HasPrefix(data, "0x") || strings.HasPrefix(data, "0X") {
		return data[2:]
	}

	return data
}
