package common_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/test"
)

func TestGetHealthy(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		body := res.Body.String()
		assert.Contains(t, body, "Ready.")
		assert.Contains(t, body, "Device: Ethereum app 1.9.17")
		assert.Contains(t, body, "Signer: network 1, path m/44'/60'/0'/0/0")
	})
}

func TestGetHealthyDeviceGone(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		transport, err := s.Transport.Await(t.Context())
		require.NoError(t, err)
		require.NoError(t, transport.Close())

		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), "Ethereum app not responding")
	})
}

func TestGetHealthyNotReady(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		s.Transport = nil

		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		require.Equal(t, "Not ready.", res.Body.String())
	})
}
