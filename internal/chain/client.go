// Package chain provides the JSON-RPC gateway to the object ledger used by the attestation layer.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/R3E-Network/attestation_layer/internal/httputil"
	"github.com/R3E-Network/attestation_layer/internal/metrics"
)

const maxRPCResponseBytes = 16 << 20 // 16 MiB

// Client provides ledger JSON-RPC functionality.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
	signer     *Signer
	gasBudget  uint64
	nextID     atomic.Uint64
}

// Config holds client configuration.
type Config struct {
	RPCURL string
	// Timeout bounds every RPC round trip; default 30s.
	Timeout time.Duration
	// RateLimit caps requests per second to the node; zero disables throttling.
	RateLimit float64
	// Signer is required for ExecuteTransaction only.
	Signer *Signer
	// GasBudget is used when a TxSpec leaves its own budget unset.
	GasBudget uint64
}

// DefaultGasBudget is the budget applied when neither config nor TxSpec set one.
const DefaultGasBudget uint64 = 50_000_000

// NewClient creates a new ledger client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	gasBudget := cfg.GasBudget
	if gasBudget == 0 {
		gasBudget = DefaultGasBudget
	}

	c := &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		signer:    cfg.Signer,
		gasBudget: gasBudget,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// =============================================================================
// Core RPC Methods
// =============================================================================

// Call makes an RPC call to the node and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() { metrics.RecordRPCCall(method, err, time.Since(start)) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if params == nil {
		params = []interface{}{}
	}
	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	respBody, err := httputil.ReadAllStrict(resp.Body, maxRPCResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 && len(bytes.TrimSpace(respBody)) == 0 {
		return nil, fmt.Errorf("rpc http status %d", resp.StatusCode)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// callInto performs Call and decodes the result into out.
func (c *Client) callInto(ctx context.Context, method string, params []interface{}, out interface{}) error {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Address returns the signer's address, or "" when the client is read-only.
func (c *Client) Address() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address()
}
