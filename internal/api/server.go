package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/metrics"
	"github/chapool/ledger-subprovider/internal/util"
	"github/chapool/ledger-subprovider/internal/wallet/device"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

type Router struct {
	Routes     []*echo.Route
	Root       *echo.Group
	Management *echo.Group
	RPC        *echo.Group
}

// Server is a central struct keeping all the dependencies.
// It is initialized with wire, which handles making the new instances of the components
// in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// Components labeled as `wire:"-"` will be skipped and have to be initialized after the InitNewServer* call.
// For more information about wire refer to https://pkg.go.dev/github.com/google/wire
type Server struct {
	// skip wire:
	// -> initialized with router.Init(s) function
	Echo   *echo.Echo `wire:"-"`
	Router *Router    `wire:"-"`

	// -> initialized with the JSON-RPC route
	RPC *rpc.Server `wire:"-"`

	Config    config.Server
	Metrics   *metrics.Service
	Transport *device.TransportPromise
	Opener    device.Opener
	Provider  *subprovider.Provider
	Wallet    subprovider.HookedWallet
}

// newServerWithComponents is used by wire to initialize the server components.
// Components not listed here won't be handled by wire and should be initialized separately.
// Components which shouldn't be handled must be labeled `wire:"-"` in Server struct.
func newServerWithComponents(
	cfg config.Server,
	metrics *metrics.Service,
	transport *device.TransportPromise,
	opener device.Opener,
	provider *subprovider.Provider,
	wallet subprovider.HookedWallet,
) *Server {
	return &Server{
		Config:    cfg,
		Metrics:   metrics,
		Transport: transport,
		Opener:    opener,
		Provider:  provider,
		Wallet:    wallet,
	}
}

func NewServer(config config.Server) *Server {
	s := &Server{
		Config: config,
	}

	return s
}

func (s *Server) Ready() bool {
	if err := util.IsStructInitialized(s); err != nil {
		log.Debug().Err(err).Msg("Server is not fully initialized")
		return false
	}

	return true
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	if err := s.Echo.Start(s.Config.Echo.ListenAddress); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")

		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	if s.RPC != nil {
		log.Debug().Msg("Stopping JSON-RPC server")
		s.RPC.Stop()
	}

	if s.Transport != nil {
		log.Debug().Msg("Closing device transport")

		if err := s.Transport.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close device transport")
			errs = append(errs, err)
		}
	}

	return errs
}
