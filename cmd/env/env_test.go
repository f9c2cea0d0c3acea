package env_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/cmd/env"
)

func TestEnvPrintsFlagOverrides(t *testing.T) {
	cmd := env.New()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--network-id=42", "--accounts-length=4"})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "NetworkID = 42")
	assert.Contains(t, out.String(), "AccountsLength = 4")
	assert.Contains(t, out.String(), "[Device]")
	assert.NotContains(t, out.String(), "EmulatorMnemonic")
}
