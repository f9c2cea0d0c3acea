package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/cmd/accounts"
	"github/chapool/ledger-subprovider/cmd/env"
	"github/chapool/ledger-subprovider/cmd/probe"
	"github/chapool/ledger-subprovider/cmd/server"
	"github/chapool/ledger-subprovider/cmd/sign"
	"github/chapool/ledger-subprovider/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "app",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

Exposes the accounts of a Ledger hardware wallet to Ethereum clients and signs
personal messages and transactions on the device.
Requires configuration through ENV, flags override it.`, config.ModuleName),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// attach the subcommands
	rootCmd.AddCommand(
		accounts.New(),
		env.New(),
		probe.New(),
		server.New(),
		sign.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
