package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"github/chapool/ledger-subprovider/internal/wallet/derivation"
)

// Device kinds.
const (
	DeviceKindLedger   = "ledger"
	DeviceKindEmulator = "emulator"
)

// Environment keys.
const (
	EnvSignerNetworkID          = "SIGNER_NETWORK_ID"
	EnvSignerPath               = "SIGNER_PATH"
	EnvSignerAskConfirm         = "SIGNER_ASK_CONFIRM"
	EnvSignerAccountsLength     = "SIGNER_ACCOUNTS_LENGTH"
	EnvSignerAccountsOffset     = "SIGNER_ACCOUNTS_OFFSET"
	EnvDeviceKind               = "DEVICE_KIND"
	EnvDeviceEmulatorMnemonic   = "DEVICE_EMULATOR_MNEMONIC"
	EnvDeviceEmulatorPassphrase = "DEVICE_EMULATOR_PASSPHRASE" //nolint:gosec // key name, not a credential
	EnvEchoListenAddress        = "SERVER_ECHO_LISTEN_ADDRESS"
	EnvEchoDebug                = "SERVER_ECHO_DEBUG"
	EnvEchoEnableRequestID      = "SERVER_ECHO_ENABLE_REQUEST_ID_MIDDLEWARE"
	EnvEchoEnableRecover        = "SERVER_ECHO_ENABLE_RECOVER_MIDDLEWARE"
	EnvEchoEnableLogger         = "SERVER_ECHO_ENABLE_LOGGER_MIDDLEWARE"
	EnvEchoEnableMetrics        = "SERVER_ECHO_ENABLE_METRICS_MIDDLEWARE"
	EnvManagementProbeTimeout   = "SERVER_MANAGEMENT_PROBE_TIMEOUT"
	EnvLoggerLevel              = "SERVER_LOGGER_LEVEL"
	EnvLoggerRequestLevel       = "SERVER_LOGGER_REQUEST_LEVEL"
	EnvLoggerPrettyPrintConsole = "SERVER_LOGGER_PRETTY_PRINT_CONSOLE"
	EnvShutdownTimeout          = "SERVER_SHUTDOWN_TIMEOUT"
	EnvRPCMaxBodySize           = "SERVER_RPC_MAX_BODY_SIZE"
	EnvRPCRequestTimeout        = "SERVER_RPC_REQUEST_TIMEOUT"
)

const (
	envDotEnvFile                    = "SERVER_DOTENV_FILE"
	defaultDotEnvFile                = ".env.local"
	defaultEchoListenAddress         = ":8545"
	defaultManagementProbeTimeout    = 2 * time.Second
	defaultShutdownTimeout           = 10 * time.Second
	defaultRPCRequestTimeout         = 2 * time.Minute
	defaultRPCMaxBodySize            = "1M"
	defaultDeviceKind                = DeviceKindLedger
	defaultLoggerLevel               = "info"
	defaultLoggerRequestLevel        = "debug"
	defaultSignerAccountsLength      = 1
	defaultSignerNetworkID           = 1
	defaultEnableEchoMiddlewareValue = true
)

type EchoServer struct {
	Debug                      bool
	ListenAddress              string
	EnableRecoverMiddleware    bool
	EnableRequestIDMiddleware  bool
	EnableLoggerMiddleware     bool
	EnablePrometheusMiddleware bool
	EnableCORSMiddleware       bool
	EnableBodyLimitMiddleware  bool
	BodyLimit                  string
	// Upper bound for a single RPC call, signing waits for the user.
	RequestTimeout time.Duration
}

type LoggerServer struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	PrettyPrintConsole bool
}

type ManagementServer struct {
	ProbeTimeout time.Duration
}

// Signer configures the subprovider.
type Signer struct {
	NetworkID      uint64
	Path           string
	AskConfirm     bool
	AccountsLength int
	AccountsOffset int
}

// Device selects and opens the key-custody device.
type Device struct {
	Kind string
	// Emulator settings, development and tests only.
	EmulatorMnemonic   string `json:"-" toml:"-"`
	EmulatorPassphrase string `json:"-" toml:"-"`
}

type Server struct {
	Echo            EchoServer
	Logger          LoggerServer
	Management      ManagementServer
	Signer          Signer
	Device          Device
	ShutdownTimeout time.Duration
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and their respective defaults defined below.
// We don't expect that ENV_VARs change while we are running our application or our tests
// (and it would be a bad thing to do anyways with parallel testing).
// Do NOT use os.Setenv / os.Unsetenv in tests utilizing DefaultServiceConfigFromEnv()!
func DefaultServiceConfigFromEnv() Server {
	return ServiceConfigFromViper(NewViper())
}

// NewViper returns a viper instance reading the environment, after loading the
// optional dotenv file. Variables already set in the environment win.
func NewViper() *viper.Viper {
	dotEnvTryLoad()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(EnvSignerNetworkID, defaultSignerNetworkID)
	v.SetDefault(EnvSignerPath, derivation.DefaultPath)
	v.SetDefault(EnvSignerAskConfirm, false)
	v.SetDefault(EnvSignerAccountsLength, defaultSignerAccountsLength)
	v.SetDefault(EnvSignerAccountsOffset, 0)
	v.SetDefault(EnvDeviceKind, defaultDeviceKind)
	v.SetDefault(EnvDeviceEmulatorMnemonic, "")
	v.SetDefault(EnvDeviceEmulatorPassphrase, "")
	v.SetDefault(EnvEchoListenAddress, defaultEchoListenAddress)
	v.SetDefault(EnvEchoDebug, false)
	v.SetDefault(EnvEchoEnableRequestID, defaultEnableEchoMiddlewareValue)
	v.SetDefault(EnvEchoEnableRecover, defaultEnableEchoMiddlewareValue)
	v.SetDefault(EnvEchoEnableLogger, defaultEnableEchoMiddlewareValue)
	v.SetDefault(EnvEchoEnableMetrics, defaultEnableEchoMiddlewareValue)
	v.SetDefault(EnvManagementProbeTimeout, defaultManagementProbeTimeout)
	v.SetDefault(EnvLoggerLevel, defaultLoggerLevel)
	v.SetDefault(EnvLoggerRequestLevel, defaultLoggerRequestLevel)
	v.SetDefault(EnvLoggerPrettyPrintConsole, false)
	v.SetDefault(EnvShutdownTimeout, defaultShutdownTimeout)
	v.SetDefault(EnvRPCMaxBodySize, defaultRPCMaxBodySize)
	v.SetDefault(EnvRPCRequestTimeout, defaultRPCRequestTimeout)

	return v
}

// ServiceConfigFromViper builds the server config from v, see NewViper.
func ServiceConfigFromViper(v *viper.Viper) Server {
	return Server{
		Echo: EchoServer{
			Debug:                     v.GetBool(EnvEchoDebug),
			ListenAddress:             v.GetString(EnvEchoListenAddress),
			EnableRecoverMiddleware:   v.GetBool(EnvEchoEnableRecover),
			EnableRequestIDMiddleware: v.GetBool(EnvEchoEnableRequestID),
			EnableLoggerMiddleware:    v.GetBool(EnvEchoEnableLogger),
			// the JSON-RPC endpoint is called by wallets from the browser
			EnableCORSMiddleware:       true,
			EnablePrometheusMiddleware: v.GetBool(EnvEchoEnableMetrics),
			EnableBodyLimitMiddleware:  true,
			BodyLimit:                  v.GetString(EnvRPCMaxBodySize),
			RequestTimeout:             v.GetDuration(EnvRPCRequestTimeout),
		},
		Logger: LoggerServer{
			Level:              parseLevel(v.GetString(EnvLoggerLevel), zerolog.InfoLevel),
			RequestLevel:       parseLevel(v.GetString(EnvLoggerRequestLevel), zerolog.DebugLevel),
			PrettyPrintConsole: v.GetBool(EnvLoggerPrettyPrintConsole),
		},
		Management: ManagementServer{
			ProbeTimeout: v.GetDuration(EnvManagementProbeTimeout),
		},
		Signer: Signer{
			NetworkID:      v.GetUint64(EnvSignerNetworkID),
			Path:           v.GetString(EnvSignerPath),
			AskConfirm:     v.GetBool(EnvSignerAskConfirm),
			AccountsLength: v.GetInt(EnvSignerAccountsLength),
			AccountsOffset: v.GetInt(EnvSignerAccountsOffset),
		},
		Device: Device{
			Kind:               v.GetString(EnvDeviceKind),
			EmulatorMnemonic:   v.GetString(EnvDeviceEmulatorMnemonic),
			EmulatorPassphrase: v.GetString(EnvDeviceEmulatorPassphrase),
		},
		ShutdownTimeout: v.GetDuration(EnvShutdownTimeout),
	}
}

// Validate reports every invalid setting at once.
func (c Server) Validate() error {
	err := vala.BeginValidation().Validate(
		vala.GreaterThan(c.Signer.AccountsLength, 0, EnvSignerAccountsLength),
		vala.GreaterThan(c.Signer.AccountsOffset, -1, EnvSignerAccountsOffset),
		vala.StringNotEmpty(c.Signer.Path, EnvSignerPath),
		vala.StringNotEmpty(c.Echo.ListenAddress, EnvEchoListenAddress),
		oneOf(c.Device.Kind, []string{DeviceKindLedger, DeviceKindEmulator}, EnvDeviceKind),
	).Check()
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	if c.Signer.NetworkID == 0 {
		return errors.Errorf("invalid configuration: %s must be greater than 0", EnvSignerNetworkID)
	}

	if err := derivation.ValidateTemplate(c.Signer.Path); err != nil {
		return errors.Wrapf(err, "invalid configuration: %s", EnvSignerPath)
	}

	if c.Device.Kind == DeviceKindEmulator && c.Device.EmulatorMnemonic == "" {
		return errors.Errorf("invalid configuration: %s is required for the %s device", EnvDeviceEmulatorMnemonic, DeviceKindEmulator)
	}

	return nil
}

func oneOf(value string, allowed []string, paramName string) vala.Checker {
	return func() (bool, string) {
		return slices.Contains(allowed, value), fmt.Sprintf("Parameter was not one of %v: %s", allowed, paramName)
	}
}

func parseLevel(level string, fallback zerolog.Level) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Error().Err(err).Str("level", level).Msgf("Failed to parse log level, defaulting to %s", fallback)
		return fallback
	}

	return parsed
}

// dotEnvTryLoad loads the dotenv file named by SERVER_DOTENV_FILE, or .env.local,
// without overriding variables already present in the environment.
func dotEnvTryLoad() {
	file := os.Getenv(envDotEnvFile)
	if file == "" {
		file = defaultDotEnvFile
	}

	if err := gotenv.Load(filepath.Clean(file)); err != nil && !os.IsNotExist(errors.Cause(err)) {
		log.Warn().Err(err).Str("file", file).Msg("Failed to load dotenv file")
	}
}
