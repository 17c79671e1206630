// Package chain talks to the blockchain node: reads agent state, resolves
// metadata URIs, and submits the two on-chain write operations the decision
// engine can trigger (spec §4.9, §6).
package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"sync"
	"time"

	"github.com/trustoracle/oracle/pkg/model"
)

// Addresses holds the three contract addresses the oracle reads and writes.
type Addresses struct {
	IdentityRegistry   string
	HealthMonitor      string
	ReputationRegistry string
}

// Client is the chain-facing collaborator for C2 fallback discovery, C4
// metadata resolution, C7 reputation fallback, and C9 the chain writer.
type Client struct {
	rpc    *rpcClient
	from   string
	addrs  Addresses
	logger *slog.Logger

	mu           sync.Mutex
	resolvedFrom string
}

// addressPattern matches a 20-byte hex address.
var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// NewClient builds a chain client. The node signs: `signer` may be the
// address of an account the RPC node holds and unlocks, and anything that
// is not a plain address (e.g. the raw PRIVATE_KEY credential the operator
// imported into the node out-of-band) makes the client resolve the node's
// first unlocked account via eth_accounts instead (see DESIGN.md on
// signing scope).
func NewClient(rpcURL, signer string, addrs Addresses) *Client {
	return &Client{
		rpc:    newRPCClient(rpcURL),
		from:   signer,
		addrs:  addrs,
		logger: slog.Default().With("component", "chain"),
	}
}

// sender returns the from-address for writes, resolving it through
// eth_accounts once when the configured signer is not itself an address.
func (c *Client) sender(ctx context.Context) (string, error) {
	if addressPattern.MatchString(c.from) {
		return c.from, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolvedFrom != "" {
		return c.resolvedFrom, nil
	}

	accts, err := c.rpc.accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve signer account: %w", err)
	}
	if len(accts) == 0 {
		return "", fmt.Errorf("rpc node holds no accounts to sign with")
	}
	c.resolvedFrom = accts[0]
	c.logger.Info("resolved signer account from node", "address", accts[0])
	return accts[0], nil
}

// GetHealthData reads HealthMonitor.getHealthData(agentId).
func (c *Client) GetHealthData(ctx context.Context, agentID string) (model.ChainHealthData, error) {
	id, ok := new(big.Int).SetString(agentID, 10)
	if !ok {
		return model.ChainHealthData{}, fmt.Errorf("invalid agent id %q", agentID)
	}
	data := packUint256Call("getHealthData(uint256)", id)

	result, err := c.rpc.ethCall(ctx, c.addrs.HealthMonitor, "0x"+hex.EncodeToString(data))
	if err != nil {
		return model.ChainHealthData{}, fmt.Errorf("getHealthData(%s): %w", agentID, err)
	}

	words, err := decodeWords(result)
	if err != nil {
		return model.ChainHealthData{}, err
	}
	if len(words) < 9 {
		return model.ChainHealthData{}, fmt.Errorf("getHealthData(%s): short return (%d words)", agentID, len(words))
	}

	out := model.ChainHealthData{
		HealthScore:         uint8(words[0].bigInt().Uint64()),
		LastCheckTimestamp:  words[1].bigInt().Int64(),
		TotalChecks:         words[2].bigInt().Uint64(),
		SuccessfulChecks:    words[3].bigInt().Uint64(),
		FailedChecks:        words[4].bigInt().Uint64(),
		TotalResponseTime:   words[5].bigInt().Uint64(),
		ConsecutiveFailures: words[6].bigInt().Uint64(),
		IsMonitored:         words[7].bool(),
		StakedAmount:        words[8].bigInt().Uint64(),
	}

	// endpoint is a trailing dynamic string; present as a 10th head word
	// (its byte offset) plus a length+data tail. Older nodes/mocks that
	// only return the 9 fixed fields are tolerated with an empty endpoint.
	if len(words) > 9 {
		if endpoint, err := decodeDynamicString(words, 9); err == nil {
			out.Endpoint = endpoint
		}
	}

	return out, nil
}

// TokenURI reads IdentityRegistry.tokenURI(agentId).
func (c *Client) TokenURI(ctx context.Context, agentID string) (string, error) {
	id, ok := new(big.Int).SetString(agentID, 10)
	if !ok {
		return "", fmt.Errorf("invalid agent id %q", agentID)
	}
	data := packUint256Call("tokenURI(uint256)", id)

	result, err := c.rpc.ethCall(ctx, c.addrs.IdentityRegistry, "0x"+hex.EncodeToString(data))
	if err != nil {
		return "", fmt.Errorf("tokenURI(%s): %w", agentID, err)
	}
	words, err := decodeWords(result)
	if err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "", nil
	}
	return decodeDynamicString(words, 0)
}

// OwnerOf reads IdentityRegistry.ownerOf(agentId).
func (c *Client) OwnerOf(ctx context.Context, agentID string) (string, error) {
	id, ok := new(big.Int).SetString(agentID, 10)
	if !ok {
		return "", fmt.Errorf("invalid agent id %q", agentID)
	}
	data := packUint256Call("ownerOf(uint256)", id)

	result, err := c.rpc.ethCall(ctx, c.addrs.IdentityRegistry, "0x"+hex.EncodeToString(data))
	if err != nil {
		return "", fmt.Errorf("ownerOf(%s): %w", agentID, err)
	}
	words, err := decodeWords(result)
	if err != nil || len(words) == 0 {
		return "", fmt.Errorf("ownerOf(%s): empty return", agentID)
	}
	return words[0].address(), nil
}

// ReputationSummary reads ReputationRegistry.getSummary(agentId).
func (c *Client) ReputationSummary(ctx context.Context, agentID string) (mean float64, count int64, err error) {
	id, ok := new(big.Int).SetString(agentID, 10)
	if !ok {
		return 0, 0, fmt.Errorf("invalid agent id %q", agentID)
	}
	data := packUint256Call("getSummary(uint256)", id)

	result, err := c.rpc.ethCall(ctx, c.addrs.ReputationRegistry, "0x"+hex.EncodeToString(data))
	if err != nil {
		return 0, 0, fmt.Errorf("getSummary(%s): %w", agentID, err)
	}
	words, err := decodeWords(result)
	if err != nil || len(words) < 4 {
		return 0, 0, fmt.Errorf("getSummary(%s): short return", agentID)
	}

	count = words[0].bigInt().Int64()
	meanRaw := words[2].bigInt()
	decimals := words[3].bigInt().Int64()

	scale := new(big.Float).SetFloat64(1)
	if decimals > 0 {
		scale = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
	}
	meanFloat := new(big.Float).Quo(new(big.Float).SetInt(meanRaw), scale)
	mean, _ = meanFloat.Float64()
	return mean, count, nil
}

// UpdateHealth submits HealthMonitor.updateHealth(agentId, responseTimeMs, success)
// and waits for a receipt. The send is tried up to 3 times with linear
// back-off (2s, 4s); receipt polling itself is unbounded (spec §5).
func (c *Client) UpdateHealth(ctx context.Context, agentID string, responseTimeMs int64, success bool) (string, error) {
	id, ok := new(big.Int).SetString(agentID, 10)
	if !ok {
		return "", fmt.Errorf("invalid agent id %q", agentID)
	}
	data := packUpdateHealth(id, responseTimeMs, success)
	return c.submit(ctx, data)
}

// ReportSuspicious submits HealthMonitor.reportSuspicious(agentId, reason).
func (c *Client) ReportSuspicious(ctx context.Context, agentID, reason string) (string, error) {
	id, ok := new(big.Int).SetString(agentID, 10)
	if !ok {
		return "", fmt.Errorf("invalid agent id %q", agentID)
	}
	data := packReportSuspicious(id, reason)
	return c.submit(ctx, data)
}

var writeRetryDelays = []time.Duration{2 * time.Second, 4 * time.Second}

// submit sends a transaction to HealthMonitor, retrying the send itself up
// to 3 attempts with linear back-off, then polls for a receipt with no
// deadline of its own (the caller's context governs the overall bound).
func (c *Client) submit(ctx context.Context, data []byte) (string, error) {
	dataHex := "0x" + hex.EncodeToString(data)

	from, err := c.sender(ctx)
	if err != nil {
		return "", err
	}

	var hash string
	attempts := 1 + len(writeRetryDelays)
	for attempt := 0; attempt < attempts; attempt++ {
		hash, err = c.rpc.sendTransaction(ctx, from, c.addrs.HealthMonitor, dataHex)
		if err == nil {
			break
		}
		if attempt >= len(writeRetryDelays) {
			break
		}
		c.logger.Warn("chain write failed, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(writeRetryDelays[attempt]):
		}
	}
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	for {
		rec, err := c.rpc.transactionReceipt(ctx, hash)
		if err != nil {
			return "", fmt.Errorf("poll receipt for %s: %w", hash, err)
		}
		if rec != nil {
			return rec.TransactionHash, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
