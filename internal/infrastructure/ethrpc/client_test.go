package ethrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handle func(method string, params []any) (any, *Error)) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClient_NetworkAndBalance(t *testing.T) {
	var balanceParams []any
	client := newTestServer(t, func(method string, params []any) (any, *Error) {
		switch method {
		case "net_version":
			return "5", nil
		case "eth_getBalance":
			balanceParams = params
			return "0xde0b6b3a7640000", nil
		case "eth_blockNumber":
			return "0x10", nil
		}
		return nil, &Error{Code: -32601, Message: "method not found"}
	})
	ctx := context.Background()

	network, err := client.Network(ctx)
	if err != nil || network != "5" {
		t.Fatalf("expected network 5, got %q (%v)", network, err)
	}

	balance, err := client.Balance(ctx, "0x00000000000000000000000000000000000000AB")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != "0xde0b6b3a7640000" {
		t.Errorf("unexpected balance, got %s", balance)
	}
	if len(balanceParams) != 2 || balanceParams[0] != "0x00000000000000000000000000000000000000ab" || balanceParams[1] != "latest" {
		t.Errorf("unexpected params %v", balanceParams)
	}

	block, err := client.LatestBlockNumber(ctx)
	if err != nil || block != 16 {
		t.Errorf("expected block 16, got %d (%v)", block, err)
	}
}

func TestClient_RPCError(t *testing.T) {
	client := newTestServer(t, func(string, []any) (any, *Error) {
		return nil, &Error{Code: -32000, Message: "header not found"}
	})
	_, err := client.Network(context.Background())
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32000 {
		t.Fatalf("expected rpc error, got %v", err)
	}
}

func TestClient_InvalidAddress(t *testing.T) {
	client := newTestServer(t, func(string, []any) (any, *Error) {
		t.Error("node must not be called for an invalid address")
		return nil, nil
	})
	if _, err := client.Balance(context.Background(), "not-an-address"); err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_MalformedBalance(t *testing.T) {
	client := newTestServer(t, func(string, []any) (any, *Error) {
		return "0xzz", nil
	})
	if _, err := client.Balance(context.Background(), "0x00000000000000000000000000000000000000ab"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error")
	}
}
