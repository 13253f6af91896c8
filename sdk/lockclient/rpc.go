package lockclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// rpcCore is the shared JSON-RPC plumbing behind the service and ledger
// clients.
type rpcCore struct {
	baseURL   string
	authToken string
	http      *http.Client
	limiter   *rate.Limiter
	nextID    atomic.Int64
}

// Option tunes client construction.
type Option func(*rpcCore)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *rpcCore) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithQueryRate caps read-only RPC calls to n per second. Zero disables the
// limiter.
func WithQueryRate(n float64) Option {
	return func(c *rpcCore) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(n), int(n)+1)
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *rpcCore) {
		if hc != nil {
			c.http = hc
		}
	}
}

func newRPCCore(baseURL, authToken string, opts ...Option) *rpcCore {
	core := &rpcCore{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(core)
	}
	return core
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      int64            `json:"id"`
	Result  json.RawMessage  `json:"result"`
	Error   *jsonRPCErrorObj `json:"error"`
}

type jsonRPCErrorObj struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RPCError is a structured rejection from the remote service. Message is the
// service's reason verbatim; Data carries any ledger-specific variant.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Method, e.Message, string(e.Data))
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// waitQuery rate-limits read-only calls. Mutating calls (transfers, lock
// creation) are never throttled: delaying them only widens the window in
// which balances drift.
func (c *rpcCore) waitQuery(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *rpcCore) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	payload := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}
	var decoded jsonRPCResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return &RPCError{Method: method, Code: decoded.Error.Code, Message: decoded.Error.Message, Data: decoded.Error.Data}
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return fmt.Errorf("%s: empty result", method)
	}
	return json.Unmarshal(decoded.Result, result)
}

func parseAmount(method, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", method, raw)
	}
	return v, nil
}
