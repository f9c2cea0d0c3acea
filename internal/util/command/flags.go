package command

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github/chapool/ledger-subprovider/internal/config"
)

// configFlag maps a command line flag onto the environment key it overrides.
type configFlag struct {
	name   string
	envKey string
	usage  string
	add    func(flags *pflag.FlagSet, name string, usage string)
}

func stringFlag(flags *pflag.FlagSet, name string, usage string) { flags.String(name, "", usage) }
func uint64Flag(flags *pflag.FlagSet, name string, usage string) { flags.Uint64(name, 0, usage) }
func intFlag(flags *pflag.FlagSet, name string, usage string)    { flags.Int(name, 0, usage) }
func boolFlag(flags *pflag.FlagSet, name string, usage string)   { flags.Bool(name, false, usage) }

var signerFlags = []configFlag{
	{"network-id", config.EnvSignerNetworkID, "EIP-155 network id transactions are signed for", uint64Flag},
	{"path", config.EnvSignerPath, "derivation path template, the last index is replaced per account", stringFlag},
	{"ask-confirm", config.EnvSignerAskConfirm, "display every address on the device for confirmation", boolFlag},
	{"accounts-length", config.EnvSignerAccountsLength, "number of accounts to enumerate", intFlag},
	{"accounts-offset", config.EnvSignerAccountsOffset, "index of the first enumerated account", intFlag},
	{"device", config.EnvDeviceKind, "device kind, ledger or emulator", stringFlag},
}

// BindSignerFlags adds the signer and device flags to flags. Flags set on the
// command line take precedence over the environment values read by v.
func BindSignerFlags(flags *pflag.FlagSet, v *viper.Viper) {
	for _, f := range signerFlags {
		f.add(flags, f.name, f.usage+" (env "+f.envKey+")")

		if err := v.BindPFlag(f.envKey, flags.Lookup(f.name)); err != nil {
			log.Panic().Err(err).Str("flag", f.name).Msg("Failed to bind flag")
		}
	}
}
