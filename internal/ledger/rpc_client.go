package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"vault-sentinel/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client using HTTP JSON-RPC 2.0 against the state
// gateway.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new state gateway JSON-RPC client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Exhausting the retry budget returns an error wrapping ErrTransient.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	// Latency covers the whole call, waits between retries included.
	defer func(start time.Time) {
		observability.RecordRPCCall(method, time.Since(start).Seconds())
	}(time.Now())

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("%w: max retries exceeded: %v", ErrTransient, lastErr)
}

// contractRecordResult is the raw RPC representation of one account record.
type contractRecordResult struct {
	Ref       string          `json:"ref"` // "<tx_id>#<index>"
	Owner     string          `json:"owner"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	BlockTime int64           `json:"blockTime"`
}

func (r *contractRecordResult) toAccountRecord() (AccountRecord, error) {
	ref, err := ParseRef(r.Ref)
	if err != nil {
		return AccountRecord{}, err
	}
	return AccountRecord{
		Ref:       ref,
		Owner:     r.Owner,
		Payload:   r.Payload,
		BlockTime: r.BlockTime,
	}, nil
}

// GetContractRecords retrieves all account records at a contract address.
func (c *HTTPClient) GetContractRecords(ctx context.Context, contractAddress string) ([]AccountRecord, error) {
	params := []interface{}{
		contractAddress,
		map[string]interface{}{"withPayload": true},
	}

	var result []contractRecordResult
	if err := c.call(ctx, "state_getContractRecords", params, &result); err != nil {
		return nil, err
	}

	records := make([]AccountRecord, 0, len(result))
	for _, r := range result {
		rec, err := r.toAccountRecord()
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", r.Ref, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetRecord retrieves a single record by reference. Returns nil if the
// record is no longer on ledger.
func (c *HTTPClient) GetRecord(ctx context.Context, ref Ref) (*AccountRecord, error) {
	params := []interface{}{ref.String()}

	var result *contractRecordResult
	if err := c.call(ctx, "state_getRecord", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	rec, err := result.toAccountRecord()
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", result.Ref, err)
	}
	return &rec, nil
}

// Verify interface compliance at compile time.
var _ Client = (*HTTPClient)(nil)
