package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rpcClient is a minimal JSON-RPC 2.0 client for a single Ethereum-style
// node endpoint. No Ethereum client library exists anywhere in the
// retrieved example corpus, so reads and writes are expressed directly in
// terms of the wire protocol (see DESIGN.md).
type rpcClient struct {
	url        string
	httpClient *http.Client
}

func newRPCClient(url string) *rpcClient {
	return &rpcClient{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *rpcClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc node returned HTTP %d for %s", resp.StatusCode, method)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rpc response for %s: %w", method, err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return out.Result, nil
}

// ethCall performs a read-only eth_call against `to` with the given calldata
// hex string and returns the decoded hex return value.
func (c *rpcClient) ethCall(ctx context.Context, to, dataHex string) (string, error) {
	raw, err := c.call(ctx, "eth_call", map[string]string{
		"to":   to,
		"data": dataHex,
	}, "latest")
	if err != nil {
		return "", err
	}
	var result string
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decode eth_call result: %w", err)
	}
	return result, nil
}

// accounts returns the accounts the node holds and can sign with.
func (c *rpcClient) accounts(ctx context.Context) ([]string, error) {
	raw, err := c.call(ctx, "eth_accounts")
	if err != nil {
		return nil, err
	}
	var accts []string
	if err := json.Unmarshal(raw, &accts); err != nil {
		return nil, fmt.Errorf("decode eth_accounts result: %w", err)
	}
	return accts, nil
}

// sendTransaction submits a transaction and returns its hash. The node is
// expected to hold and unlock the `from` account; no local signing is
// performed (see DESIGN.md for why).
func (c *rpcClient) sendTransaction(ctx context.Context, from, to, dataHex string) (string, error) {
	raw, err := c.call(ctx, "eth_sendTransaction", map[string]string{
		"from": from,
		"to":   to,
		"data": dataHex,
	})
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", fmt.Errorf("decode transaction hash: %w", err)
	}
	return hash, nil
}

// transactionReceipt polls for a receipt; a nil result with no error means
// the transaction is still pending.
func (c *rpcClient) transactionReceipt(ctx context.Context, hash string) (*receipt, error) {
	raw, err := c.call(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var r receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}

type receipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
	BlockNumber     string `json:"blockNumber"`
}
