// Package metadata resolves an agent's content-addressed descriptor (its
// "card") through a gateway cascade (spec §4.4, §6).
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/trustoracle/oracle/pkg/model"
)

// GatewayTimeout bounds each individual gateway attempt (spec §4.4/§5).
const GatewayTimeout = 10 * time.Second

// TokenURIReader is the chain read the resolver needs; satisfied by
// *chain.Client without importing it directly.
type TokenURIReader interface {
	TokenURI(ctx context.Context, agentID string) (string, error)
}

// Resolver fetches an agent's Card through a fixed cascade of IPFS gateways.
type Resolver struct {
	chain      TokenURIReader
	primary    string
	fallbacks  []string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Resolver. primary is the configured preferred gateway base
// URL (e.g. "https://ipfs.io"); fallbacks are tried in order after it.
func New(chain TokenURIReader, primary string, fallbacks []string) *Resolver {
	return &Resolver{
		chain:      chain,
		primary:    primary,
		fallbacks:  fallbacks,
		httpClient: &http.Client{Timeout: GatewayTimeout},
		logger:     slog.Default().With("component", "metadata"),
	}
}

// ResolveCard reads the agent's tokenURI from the chain, strips any
// "ipfs://" prefix, and tries each gateway in order until one returns 2xx.
// Returns nil, nil when the agent has no URI or every gateway fails;
// gateway failures are never returned as errors. Only a failed tokenURI
// read is returned as an error.
func (r *Resolver) ResolveCard(ctx context.Context, agentID string) (*model.Card, error) {
	uri, err := r.chain.TokenURI(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("read tokenURI: %w", err)
	}
	if uri == "" {
		return nil, nil
	}

	hash := strings.TrimPrefix(uri, "ipfs://")

	// A fallback equal to the configured primary is skipped, so an
	// unconfigured deployment (primary defaulting to a public gateway)
	// doesn't probe the same host twice before moving down the cascade.
	gateways := make([]string, 0, 1+len(r.fallbacks))
	if r.primary != "" {
		gateways = append(gateways, r.primary)
	}
	primary := strings.TrimSuffix(r.primary, "/")
	for _, gw := range r.fallbacks {
		if strings.TrimSuffix(gw, "/") == primary {
			continue
		}
		gateways = append(gateways, gw)
	}

	for _, gw := range gateways {
		url := strings.TrimSuffix(gw, "/") + "/ipfs/" + hash
		card, ok := r.tryGateway(ctx, url)
		if ok {
			return card, nil
		}
	}

	r.logger.Warn("metadata resolution exhausted all gateways", "agentId", agentID)
	return nil, nil
}

func (r *Resolver) tryGateway(ctx context.Context, url string) (*model.Card, bool) {
	gwCtx, cancel := context.WithTimeout(ctx, GatewayTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(gwCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, false
	}

	var card model.Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		r.logger.Warn("gateway returned unparseable card", "url", url, "error", err)
		return nil, false
	}
	return &card, true
}
