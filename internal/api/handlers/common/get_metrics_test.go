package common_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/test"
)

func TestGetMetrics(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		rpc := test.PerformRPC(t, s, "eth_accounts")
		require.Nil(t, rpc.Error)

		res := test.PerformRequest(t, s, "GET", "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		body := res.Body.String()
		assert.Contains(t, body, `subprovider_operations_total{operation="get_accounts",result="success"} 1`)
		assert.Contains(t, body, "ledger_exchange_duration_seconds")
		assert.Contains(t, body, "rpc_requests_total")
	})
}
