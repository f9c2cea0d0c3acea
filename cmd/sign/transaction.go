package sign

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/util/command"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

func newTransaction() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "tx <transaction json>",
		Short: "Signs a legacy transaction and prints the signed envelope",
		Long: `Signs the transaction given as JSON, in the eth_signTransaction parameter
format, with the account named by its from field. The signed envelope is
printed as 0x prefixed hex.`,
		Example: `  app sign tx '{"from":"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266","to":"0x3535353535353535353535353535353535353535","nonce":"0x0","gasPrice":"0x4a817c800","gas":"0x5208","value":"0x1"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params subprovider.TxParams
			if err := json.Unmarshal([]byte(args[0]), &params); err != nil {
				return errors.Wrap(err, "failed to parse transaction")
			}

			if params.From == "" {
				return errors.New("transaction lacks from")
			}

			return command.WithServer(cmd.Context(), config.ServiceConfigFromViper(v), func(ctx context.Context, s *api.Server) error {
				if _, err := s.Provider.GetAccounts(ctx); err != nil {
					return err
				}

				signed, err := s.Provider.SignTransaction(ctx, &params)
				if err != nil {
					return errors.Wrap(err, "failed to sign transaction")
				}

				fmt.Fprintln(cmd.OutOrStdout(), signed)

				return nil
			})
		},
	}

	command.BindSignerFlags(cmd.Flags(), v)

	return cmd
}
