package sign

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/internal/wallet/envelope"
)

// Decoded describes a signed envelope.
type Decoded struct {
	Hash     common.Hash     `json:"hash"`
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	ChainID  uint64          `json:"chainId"`
	Nonce    uint64          `json:"nonce"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Gas      uint64          `json:"gas"`
	Value    *hexutil.Big    `json:"value"`
	Data     hexutil.Bytes   `json:"data"`
}

func newDecode() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <signed envelope>",
		Short: "Decodes a signed envelope and recovers its sender",
		Long: `Decodes a signed legacy transaction, as printed by "sign tx", and
recovers the chain id from v and the sender from the signature. Does not
need a device.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil {
				return errors.Wrap(err, "invalid envelope hex")
			}

			decoded, err := Decode(raw)
			if err != nil {
				return err
			}

			asJSON, err := cmd.Flags().GetBool(jsonFlag)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(decoded)
			}

			to := "contract creation"
			if decoded.To != nil {
				to = decoded.To.Hex()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "hash\t%s\n", decoded.Hash.Hex())
			fmt.Fprintf(w, "from\t%s\n", decoded.From.Hex())
			fmt.Fprintf(w, "to\t%s\n", to)
			fmt.Fprintf(w, "chainId\t%d\n", decoded.ChainID)
			fmt.Fprintf(w, "nonce\t%d\n", decoded.Nonce)
			fmt.Fprintf(w, "gasPrice\t%s\n", decoded.GasPrice.ToInt())
			fmt.Fprintf(w, "gas\t%d\n", decoded.Gas)
			fmt.Fprintf(w, "value\t%s\n", decoded.Value.ToInt())
			fmt.Fprintf(w, "data\t%s\n", decoded.Data)

			return w.Flush()
		},
	}

	cmd.Flags().Bool(jsonFlag, false, "print the envelope as JSON")

	return cmd
}

// Decode parses a signed envelope, recovering the chain id and the sender.
func Decode(raw []byte) (*Decoded, error) {
	env, err := envelope.Decode(raw)
	if err != nil {
		return nil, err
	}

	if len(env.V) == 0 {
		return nil, errors.New("transaction is not signed")
	}

	// the full v, devices sign chain ids above 109 with a multi-byte v
	tx := env.Transaction()

	var (
		signer  types.Signer = types.HomesteadSigner{}
		chainID uint64
	)

	if tx.Protected() {
		chainID = tx.ChainId().Uint64()
		signer = types.NewEIP155Signer(tx.ChainId())
	}

	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to recover sender")
	}

	return &Decoded{
		Hash:     tx.Hash(),
		From:     from,
		To:       tx.To(),
		ChainID:  chainID,
		Nonce:    tx.Nonce(),
		GasPrice: (*hexutil.Big)(tx.GasPrice()),
		Gas:      tx.Gas(),
		Value:    (*hexutil.Big)(tx.Value()),
		Data:     tx.Data(),
	}, nil
}
