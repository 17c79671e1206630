// Package indexer queries the subgraph-style GraphQL indexer that mirrors
// on-chain agent and reputation events (spec §6). No GraphQL client library
// exists in the retrieved corpus, so queries are POSTed as plain JSON over
// net/http, grounded on the teacher's runbook.GitHubClient HTTP pattern.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is the GraphQL-over-HTTP collaborator for C2 primary discovery and
// C7 primary reputation lookup.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient builds an indexer client against the given GraphQL endpoint.
func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

func (c *Client) query(ctx context.Context, gql string, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: gql})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("indexer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("indexer returned HTTP %d", resp.StatusCode)
	}

	var gr graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return fmt.Errorf("decode indexer response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return fmt.Errorf("indexer returned errors: %s", gr.Errors[0].Message)
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("decode indexer data: %w", err)
	}
	return nil
}

// MonitoredAgent is one row of the monitoredAgents query.
type MonitoredAgent struct {
	AgentID             string `json:"agentId"`
	Endpoint            string `json:"endpoint"`
	StakedAmount        string `json:"stakedAmount"`
	LastCheckTimestamp  string `json:"lastCheckTimestamp"`
}

// MonitoredAgents runs `monitoredAgents(first:100, where:{isActive:true})`,
// the primary discovery path for C2.
func (c *Client) MonitoredAgents(ctx context.Context) ([]MonitoredAgent, error) {
	const gql = `{ monitoredAgents(first: 100, where: { isActive: true }) { agentId endpoint stakedAmount lastCheckTimestamp } }`

	var out struct {
		MonitoredAgents []MonitoredAgent `json:"monitoredAgents"`
	}
	if err := c.query(ctx, gql, &out); err != nil {
		return nil, fmt.Errorf("monitoredAgents: %w", err)
	}
	return out.MonitoredAgents, nil
}

// ReputationSummary runs `reputationSummary(id)`, the primary path for C7.
func (c *Client) ReputationSummary(ctx context.Context, agentID string) (mean float64, count int64, err error) {
	gql := fmt.Sprintf(`{ reputationSummary(id: %q) { count sum mean } }`, agentID)

	var out struct {
		ReputationSummary *struct {
			Count int64   `json:"count"`
			Sum   float64 `json:"sum"`
			Mean  float64 `json:"mean"`
		} `json:"reputationSummary"`
	}
	if err := c.query(ctx, gql, &out); err != nil {
		return 0, 0, fmt.Errorf("reputationSummary(%s): %w", agentID, err)
	}
	if out.ReputationSummary == nil {
		return 0, 0, nil
	}
	return out.ReputationSummary.Mean, out.ReputationSummary.Count, nil
}

// HealthUpdate is one row of the healthUpdateds query.
type HealthUpdate struct {
	ID              string `json:"id"`
	AgentID         string `json:"agentId"`
	BlockTimestamp  string `json:"blockTimestamp"`
	OldScore        int    `json:"oldScore"`
	NewScore        int    `json:"newScore"`
	Success         bool   `json:"success"`
	ResponseTime    int64  `json:"responseTime"`
}

// HealthUpdates runs `healthUpdateds(first:50, where:{agentId:$}, ...)`,
// used by the read API's per-agent history view (not the core pipeline).
func (c *Client) HealthUpdates(ctx context.Context, agentID string) ([]HealthUpdate, error) {
	gql := fmt.Sprintf(`{ healthUpdateds(first: 50, where: { agentId: %q }, orderBy: blockTimestamp, orderDirection: desc) { id agentId blockTimestamp oldScore newScore success responseTime } }`, agentID)

	var out struct {
		HealthUpdateds []HealthUpdate `json:"healthUpdateds"`
	}
	if err := c.query(ctx, gql, &out); err != nil {
		return nil, fmt.Errorf("healthUpdateds(%s): %w", agentID, err)
	}
	return out.HealthUpdateds, nil
}
