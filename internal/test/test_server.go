package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/api/router"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/wallet/emulator"
)

// WithTestServer returns a fully configured server talking to an emulated device.
func WithTestServer(t *testing.T, closure func(s *api.Server), opts ...emulator.Option) {
	t.Helper()

	WithTestServerConfigurable(t, NewTestConfig(), closure, opts...)
}

// WithTestServerConfigurable returns a fully configured server, allowing for configuration using the provided server config.
func WithTestServerConfigurable(t *testing.T, config config.Server, closure func(s *api.Server), opts ...emulator.Option) {
	t.Helper()

	s := NewTestServer(t, config, opts...)

	closure(s)

	// echo is managed and should close automatically after running the test
	if errs := s.Shutdown(context.Background()); len(errs) > 0 {
		t.Fatalf("Failed to shutdown server: %v", errs)
	}
}

// NewTestConfig returns the environment config switched to the emulated device.
func NewTestConfig() config.Server {
	cfg := config.DefaultServiceConfigFromEnv()
	cfg.Device.Kind = config.DeviceKindEmulator
	cfg.Device.EmulatorMnemonic = Mnemonic
	cfg.Device.EmulatorPassphrase = ""

	return cfg
}

// NewTestServer builds a server on a fresh emulated device. Callers must shut it down.
func NewTestServer(t *testing.T, config config.Server, opts ...emulator.Option) *api.Server {
	t.Helper()

	s, err := api.InitNewServerWithTransport(config, NewTestEmulator(t, opts...))
	require.NoError(t, err, "Failed to init server")

	router.Init(s)

	return s
}
