package api

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/metrics"
	"github/chapool/ledger-subprovider/internal/wallet/device"
	"github/chapool/ledger-subprovider/internal/wallet/emulator"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

// PROVIDERS - https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

// NewTransportPromise returns the promise of the configured device transport.
// The device is opened lazily on the first operation, so the server starts
// without a Ledger plugged in.
func NewTransportPromise(cfg config.Server) *device.TransportPromise {
	return device.NewTransportPromise(func(ctx context.Context) (device.Transport, error) {
		return OpenTransport(ctx, cfg.Device)
	})
}

// OpenTransport opens the device selected by cfg.
//
//nolint:ireturn
func OpenTransport(ctx context.Context, cfg config.Device) (device.Transport, error) {
	switch cfg.Kind {
	case config.DeviceKindEmulator:
		log.Warn().Msg("Using the device emulator, keys are derived in process. Never use it with real funds.")
		transport, err := emulator.New(cfg.EmulatorMnemonic, cfg.EmulatorPassphrase)
		if err != nil {
			return nil, err
		}

		return transport, nil
	case config.DeviceKindLedger:
		return ledger.OpenHID(ctx)
	default:
		return nil, errors.Errorf("unknown device kind %q", cfg.Kind)
	}
}

// NewOpener returns the device opener creating a Ledger app session per operation.
//
//nolint:ireturn
func NewOpener(transport *device.TransportPromise, metrics *metrics.Service) device.Opener {
	return ledger.NewOpener(transport, metrics)
}

// NewProvider creates the subprovider from the signer configuration.
func NewProvider(cfg config.Server, opener device.Opener, metrics *metrics.Service) *subprovider.Provider {
	return subprovider.NewProvider(opener, subprovider.Options{
		NetworkID:      cfg.Signer.NetworkID,
		Path:           cfg.Signer.Path,
		AskConfirm:     cfg.Signer.AskConfirm,
		AccountsLength: cfg.Signer.AccountsLength,
		AccountsOffset: cfg.Signer.AccountsOffset,
	}, metrics)
}
