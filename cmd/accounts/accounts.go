package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/util/command"
)

const jsonFlag = "json"

func New() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Lists the addresses of the configured derivation paths",
		Long: `Asks the device for the address of every account, from --accounts-offset
up to --accounts-length accounts, and prints them with their derivation paths.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, err := cmd.Flags().GetBool(jsonFlag)
			if err != nil {
				return err
			}

			return command.WithServer(cmd.Context(), config.ServiceConfigFromViper(v), func(ctx context.Context, s *api.Server) error {
				accounts, err := s.Provider.GetAccounts(ctx)
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(accounts)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PATH\tADDRESS")
				for _, account := range accounts {
					fmt.Fprintf(w, "%s\t%s\n", account.Path, account.Address)
				}

				return w.Flush()
			})
		},
	}

	cmd.Flags().Bool(jsonFlag, false, "print the accounts as JSON")
	command.BindSignerFlags(cmd.Flags(), v)

	return cmd
}
