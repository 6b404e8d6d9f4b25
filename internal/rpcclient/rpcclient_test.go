package rpcclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arcpay/voicewallet/internal/walleterr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(method string) (string, *wireError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method)
		resp := wireResponse{JSONRPC: "2.0", ID: req.ID}
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = json.RawMessage(result)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestCall_ReturnsResult(t *testing.T) {
	server := newTestServer(t, func(method string) (string, *wireError) {
		require.Equal(t, "eth_chainId", method)
		return `"0x8f"`, nil
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	chainID, err := client.ChainID(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(143), chainID.Int64())
}

func TestCall_SurfacesRPCErrorAsRetryable(t *testing.T) {
	server := newTestServer(t, func(method string) (string, *wireError) {
		return "", &wireError{Code: -32000, Message: "execution reverted"}
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	_, err := client.GasPrice(t.Context())
	require.Error(t, err)
	require.True(t, walleterr.IsRetryable(err))
}

func TestPendingNonceAt_ParsesHexUint(t *testing.T) {
	server := newTestServer(t, func(method string) (string, *wireError) {
		require.Equal(t, "eth_getTransactionCount", method)
		return `"0x7"`, nil
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	nonce, err := client.PendingNonceAt(t.Context(), common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
	require.NoError(t, err)
	require.Equal(t, uint64(7), nonce)
}

func TestTransactionReceipt_ReturnsNilWhenPending(t *testing.T) {
	server := newTestServer(t, func(method string) (string, *wireError) {
		return "null", nil
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	receipt, err := client.TransactionReceipt(t.Context(), common.HexToHash("0x1"))
	require.NoError(t, err)
	require.Nil(t, receipt)
}

func TestHealth_TracksSuccessAndFailure(t *testing.T) {
	fail := true
	server := newTestServer(t, func(method string) (string, *wireError) {
		if fail {
			fail = false
			return "", &wireError{Code: -32000, Message: "boom"}
		}
		return `"0x1"`, nil
	})
	defer server.Close()

	client := New(server.URL, 5*time.Second)
	_, _ = client.GasPrice(t.Context())
	_, _ = client.GasPrice(t.Context())

	health := client.Health()
	require.Equal(t, int64(2), health.TotalCalls)
	require.Equal(t, int64(1), health.FailedCalls)
	require.Equal(t, int64(1), health.SuccessfulCalls)
}
