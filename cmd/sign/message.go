package sign

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/util/command"
	"github/chapool/ledger-subprovider/internal/wallet/subprovider"
)

const textFlag = "text"

func newMessage() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "message <hex data>",
		Short: "Signs a personal message with the account given by --from",
		Example: `  app sign message --from 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266 0x68656c6c6f
  app sign message --from 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266 --text hello`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := cmd.Flags().GetString(fromFlag)
			if err != nil {
				return err
			}

			text, err := cmd.Flags().GetBool(textFlag)
			if err != nil {
				return err
			}

			data := args[0]
			if text {
				data = hexutil.Encode([]byte(data))
			}

			return command.WithServer(cmd.Context(), config.ServiceConfigFromViper(v), func(ctx context.Context, s *api.Server) error {
				// addresses are only known after enumeration
				if _, err := s.Provider.GetAccounts(ctx); err != nil {
					return err
				}

				signature, err := s.Provider.SignPersonalMessage(ctx, &subprovider.MessageParams{From: from, Data: data})
				if err != nil {
					return errors.Wrap(err, "failed to sign message")
				}

				fmt.Fprintln(cmd.OutOrStdout(), signature)

				return nil
			})
		},
	}

	cmd.Flags().String(fromFlag, "", "address of the signing account")
	cmd.Flags().Bool(textFlag, false, "treat the argument as UTF-8 text instead of hex")
	_ = cmd.MarkFlagRequired(fromFlag)
	command.BindSignerFlags(cmd.Flags(), v)

	return cmd
}
