// Package rpcclient implements the RPC Client component (spec.md §4.4):
// a single-HTTPS-endpoint JSON-RPC 2.0 client with no multi-endpoint
// failover. A retry loop across endpoints would mask which node
// actually misbehaved during a payment flow, which spec.md §6 forbids
// outright.
//
// Grounded on the teacher's src/chainadapter/rpc/{client.go,http.go}:
// same RPCRequest/RPCResponse/RPCError shapes and the same
// health-bookkeeping interface, simplified from round-robin
// multi-endpoint failover down to the one configured endpoint, kept for
// observability only (internal/rpcclient.Client.Health), never for
// silent failover.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/arcpay/voicewallet/internal/walleterr"
)

// Request is a single JSON-RPC 2.0 call.
type Request struct {
	Method string
	Params interface{}
}

type wireRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *wireError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Health is a point-in-time snapshot of the endpoint's observed
// behavior, for operators and dashboards — not a failover signal.
type Health struct {
	TotalCalls      int64
	SuccessfulCalls int64
	FailedCalls     int64
	AvgLatencyMs    int64
	LastSuccessUnix int64
	LastFailureUnix int64
}

// Client is a JSON-RPC 2.0 client bound to exactly one HTTPS endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	requestID  atomic.Int64

	health atomicHealth
}

// New constructs a Client for endpoint with the given request timeout.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Call executes a single JSON-RPC method call against the configured
// endpoint. No retry and no failover: a failure here is surfaced to the
// caller as walleterr.CodeRPCError (retryable), per spec.md §6.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.doCall(ctx, method, params)
	if err != nil {
		c.health.recordFailure()
		return nil, walleterr.WrapRetryable(walleterr.CodeRPCError, fmt.Sprintf("rpc call %s failed", method), err)
	}
	c.health.recordSuccess(time.Since(start).Milliseconds())
	return result, nil
}

func (c *Client) doCall(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := c.requestID.Add(1)
	body, err := json.Marshal(wireRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("parse json-rpc response: %w", err)
	}
	if wire.Error != nil {
		return nil, wire.Error
	}
	return wire.Result, nil
}

// Health returns a snapshot of observed call outcomes for this endpoint.
func (c *Client) Health() Health {
	return c.health.snapshot()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
