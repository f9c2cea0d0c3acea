package rpc

import (
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-subprovider/internal/api"
)

const (
	batchItemLimit       = 100
	batchResponseMaxSize = 5 * 1024 * 1024
)

// PostRPCRoute serves single and batch JSON-RPC 2.0 requests. Failures are
// reported in the error member with HTTP 200.
func PostRPCRoute(s *api.Server) *echo.Route {
	s.RPC = NewServer(s)

	return s.Router.RPC.POST("/", echo.WrapHandler(s.RPC))
}

// NewServer returns a JSON-RPC server with the eth, net and personal namespaces
// bound to the server's wallet.
func NewServer(s *api.Server) *gethrpc.Server {
	server := gethrpc.NewServer()
	server.SetBatchLimits(batchItemLimit, batchResponseMaxSize)

	services := []struct {
		namespace string
		receiver  any
	}{
		{"eth", &EthAPI{s: s}},
		{"net", &NetAPI{s: s}},
		{"personal", &PersonalAPI{s: s}},
	}

	for _, service := range services {
		if err := server.RegisterName(service.namespace, service.receiver); err != nil {
			log.Panic().Err(err).Str("namespace", service.namespace).Msg("Failed to register JSON-RPC service")
		}
	}

	return server
}
