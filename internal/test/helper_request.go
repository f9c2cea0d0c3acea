package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github/chapool/ledger-subprovider/internal/api"
	"github/chapool/ledger-subprovider/internal/api/rpcerrors"
)

type GenericPayload map[string]any

// RPCResponse is the decoded answer of a JSON-RPC call.
type RPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  json.RawMessage  `json:"result"`
	Error   *rpcerrors.Error `json:"error"`
}

func PerformRequestWithParams(t *testing.T, s *api.Server, method string, path string, body any, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		return PerformRequestWithRawBody(t, s, method, path, nil, headers)
	}

	j, err := json.Marshal(body)
	require.NoError(t, err, "failed to marshal body")

	return PerformRequestWithRawBody(t, s, method, path, bytes.NewReader(j), headers)
}

func PerformRequestWithRawBody(t *testing.T, s *api.Server, method string, path string, body *bytes.Reader, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}

	for k, v := range headers {
		req.Header[k] = v
	}

	if req.Header.Get(echo.HeaderContentType) == "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	res := httptest.NewRecorder()

	s.Echo.ServeHTTP(res, req)

	return res
}

func PerformRequest(t *testing.T, s *api.Server, method string, path string, body GenericPayload, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		return PerformRequestWithParams(t, s, method, path, nil, headers)
	}

	return PerformRequestWithParams(t, s, method, path, body, headers)
}

// PerformRPC calls method with params and decodes the single response.
func PerformRPC(t *testing.T, s *api.Server, method string, params ...any) *RPCResponse {
	t.Helper()

	if params == nil {
		params = []any{}
	}

	res := PerformRequest(t, s, http.MethodPost, "/", GenericPayload{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}, nil)
	require.Equal(t, http.StatusOK, res.Result().StatusCode, res.Body.String())

	var response RPCResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &response))
	require.JSONEq(t, "1", string(response.ID))

	return &response
}

// RequireRPCResult requires a successful response and decodes its result into v.
func RequireRPCResult(t *testing.T, res *RPCResponse, v any) {
	t.Helper()

	require.Nil(t, res.Error, "unexpected JSON-RPC error")
	require.NoError(t, json.Unmarshal(res.Result, v))
}
