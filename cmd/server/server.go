package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/api/router"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/util"
	"github/chapool/ledger-subprovider/internal/util/command"
)

const listenFlag = "listen"

func New() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the JSON-RPC signing server",
		Long: `Starts the JSON-RPC server answering eth_accounts, eth_requestAccounts,
personal_sign and eth_signTransaction with the configured device.

The device is opened on the first request, the server starts without it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), config.ServiceConfigFromViper(v))
		},
	}

	cmd.Flags().String(listenFlag, "", "address the server listens on (env "+config.EnvEchoListenAddress+")")
	if err := v.BindPFlag(config.EnvEchoListenAddress, cmd.Flags().Lookup(listenFlag)); err != nil {
		log.Panic().Err(err).Msg("Failed to bind flag")
	}

	command.BindSignerFlags(cmd.Flags(), v)

	return cmd
}

func runServer(ctx context.Context, cfg config.Server) error {
	util.ConfigureGlobalLogger(cfg.Logger.Level, cfg.Logger.PrettyPrintConsole)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid config")
		return err
	}

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize server")
		return err
	}

	router.Init(s)

	go func() {
		if err := s.Start(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				log.Info().Msg("Server closed")
			} else {
				log.Fatal().Err(err).Msg("Failed to start server")
			}
		}
	}()

	log.Info().
		Str("listen", cfg.Echo.ListenAddress).
		Str("device", cfg.Device.Kind).
		Uint64("networkId", cfg.Signer.NetworkID).
		Str("path", cfg.Signer.Path).
		Msg("Server started")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
		log.Fatal().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
	}

	return nil
}
