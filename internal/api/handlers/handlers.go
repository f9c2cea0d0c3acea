package handlers

import (
	"github.com/labstack/echo/v4"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/api/handlers/common"
	"github/chapool/ledger-subprovider/internal/api/handlers/rpc"
)

func AttachAllRoutes(s *api.Server) {
	// attach our routes
	s.Router.Routes = []*echo.Route{
		common.GetHealthyRoute(s),
		common.GetMetricsRoute(s),
		common.GetReadyRoute(s),
		rpc.PostRPCRoute(s),
	}
}
