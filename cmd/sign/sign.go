package sign

import (
	"github.com/spf13/cobra"
	"github/chapool/ledger-subprovider/internal/util/command"
)

const (
	fromFlag = "from"
	jsonFlag = "json"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("sign",
		newMessage(),
		newTransaction(),
		newDecode(),
	)
}
