package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/util"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
)

func GetHealthyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/healthy", getHealthyHandler(s))
}

// Health check
// Asks the Ethereum app for its configuration, which fails when the device is
// unplugged, locked or runs another app. Signing requests never run through here.
func getHealthyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.Ready() {
			return c.String(statusNotReady, "Not ready.")
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), s.Config.Management.ProbeTimeout)
		defer cancel()

		log := util.LogFromContext(ctx)

		var str strings.Builder
		fmt.Fprintln(&str, "Ready.")

		transport, err := s.Transport.Await(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Health check failed to open device transport")
			fmt.Fprintf(&str, "Device: unavailable: %v.\n", err)
			return c.String(statusNotReady, str.String())
		}

		appConfig, err := ledger.NewEthApp(transport, s.Metrics).GetAppConfiguration(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Health check failed to query Ethereum app")
			fmt.Fprintf(&str, "Device: Ethereum app not responding: %v.\n", err)
			return c.String(statusNotReady, str.String())
		}

		fmt.Fprintf(&str, "Device: Ethereum app %s, arbitrary data %t.\n", appConfig.Version, appConfig.ArbitraryDataEnabled)
		fmt.Fprintf(&str, "Signer: network %d, path %s, %d account(s) from index %d.\n",
			s.Config.Signer.NetworkID, s.Config.Signer.Path, s.Config.Signer.AccountsLength, s.Config.Signer.AccountsOffset)

		return c.String(http.StatusOK, str.String())
	}
}
