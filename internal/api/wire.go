//go:build wireinject

package api

import (
	"github.com/google/wire"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/metrics"
	"github/chapool/ledger-subprovider/internal/wallet/device"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serviceSet groups the default set of providers that are required for initing a server
var serviceSet = wire.NewSet(
	newServerWithComponents,
	metrics.New,
	NewOpener,
	NewProvider,
	subprovider.NewHookedWallet,
)

// InitNewServer returns a new Server instance.
// The device configured in config.Server is opened on first use.
func InitNewServer(
	_ config.Server,
) (*Server, error) {
	wire.Build(serviceSet, NewTransportPromise)
	return new(Server), nil
}

// InitNewServerWithTransport returns a new Server instance talking to the given transport.
// All the other components are initialized via go wire according to the configuration.
func InitNewServerWithTransport(
	_ config.Server,
	_ device.Transport,
) (*Server, error) {
	wire.Build(serviceSet, device.ResolvedTransport)
	return new(Server), nil
}
