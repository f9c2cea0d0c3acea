package env

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/util/command"
)

func New() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Prints the effective configuration as TOML",
		Long: `Prints the configuration resolved from the environment, the dotenv file
and the command line flags. Emulator secrets are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(config.ServiceConfigFromViper(v)); err != nil {
				return errors.Wrap(err, "failed to encode configuration")
			}

			return nil
		},
	}

	command.BindSignerFlags(cmd.Flags(), v)

	return cmd
}
