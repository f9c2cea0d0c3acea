package probe

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/config"
	"github/chapool/ledger-subprovider/internal/util/command"
	"github/chapool/ledger-subprovider/internal/wallet/ledger"
)

func newDevice() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "device",
		Short: "Checks the device is connected and the Ethereum app is open",
		Long: `Lists the Ledger devices found on USB (ledger device kind only), then asks
the Ethereum app for its configuration. Exits with an error if the app does
not answer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				return err
			}

			cfg := config.ServiceConfigFromViper(v)
			out := cmd.OutOrStdout()

			if cfg.Device.Kind == config.DeviceKindLedger {
				infos, err := ledger.ListDevices()
				if err != nil {
					return errors.Wrap(err, "failed to enumerate USB devices")
				}

				fmt.Fprintf(out, "Found %d Ledger interface(s)\n", len(infos))
				if verbose {
					for _, info := range infos {
						fmt.Fprintf(out, "  %s %s (product 0x%04x, interface %d)\n", info.Manufacturer, info.Product, info.ProductID, info.Interface)
					}
				}
			}

			return command.WithServer(cmd.Context(), cfg, func(ctx context.Context, s *api.Server) error {
				ctx, cancel := context.WithTimeout(ctx, s.Config.Management.ProbeTimeout)
				defer cancel()

				transport, err := s.Transport.Await(ctx)
				if err != nil {
					return errors.Wrap(err, "failed to open device")
				}

				appConfig, err := ledger.NewEthApp(transport, s.Metrics).GetAppConfiguration(ctx)
				if err != nil {
					return errors.Wrap(err, "Ethereum app not responding")
				}

				fmt.Fprintf(out, "Ethereum app %s\n", appConfig.Version)
				if verbose {
					fmt.Fprintf(out, "  arbitrary data enabled: %t\n", appConfig.ArbitraryDataEnabled)
					fmt.Fprintf(out, "  ERC-20 provisioning required: %t\n", appConfig.ERC20ProvisioningRequired)
				}

				return nil
			})
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "print device details")
	command.BindSignerFlags(cmd.Flags(), v)

	return cmd
}
