package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Client is a minimal JSON-RPC client for the node that backs the pending
// transactions.
type Client struct {
	url        string
	httpClient *http.Client
	idCounter  atomic.Uint64
}

type Config struct {
	URL     string
	Timeout time.Duration
}

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Network returns the node's network id as reported by net_version.
func (c *Client) Network(ctx context.Context) (string, error) {
	var result string
	if err := c.call(ctx, "net_version", []any{}, &result); err != nil {
		return "", err
	}
	result = strings.TrimSpace(result)
	if result == "" {
		return "", errors.New("node reported an empty network id")
	}
	return result, nil
}

// Balance returns the latest balance of address as a hex quantity.
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	var result string
	if err := c.call(ctx, "eth_getBalance", []any{strings.ToLower(address), "latest"}, &result); err != nil {
		return "", err
	}
	balance, err := hexutil.DecodeBig(result)
	if err != nil {
		return "", fmt.Errorf("balance of %s: %w", address, err)
	}
	return hexutil.EncodeBig(balance), nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &result); err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(result)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.idCounter.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: rpc status %d", method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("%s: %w", method, decoded.Error)
	}
	if len(decoded.Result) == 0 || string(decoded.Result) == "null" {
		return fmt.Errorf("%s: rpc result is empty", method)
	}
	return json.Unmarshal(decoded.Result, result)
}
