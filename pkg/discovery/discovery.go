// Package discovery produces the current set of monitored agents: the
// indexer query first, a bounded on-chain scan as fallback (spec §4.2,
// component C2).
package discovery

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/trustoracle/oracle/pkg/indexer"
	"github.com/trustoracle/oracle/pkg/model"
)

// FallbackRange is the hard-coded upper bound on the chain-scan fallback
// (spec §9(a)): agent ids >= this value are never visible via fallback.
// Deliberately not configurable.
const FallbackRange = 20

// IndexerSource is the indexer's monitoredAgents query.
type IndexerSource interface {
	MonitoredAgents(ctx context.Context) ([]indexer.MonitoredAgent, error)
}

// ChainSource is the on-chain fallback read.
type ChainSource interface {
	GetHealthData(ctx context.Context, agentID string) (model.ChainHealthData, error)
}

// Target is one agent to monitor this cycle.
type Target struct {
	AgentID  string
	Endpoint string
}

// Discovery implements C2.
type Discovery struct {
	indexer IndexerSource
	chain   ChainSource
	logger  *slog.Logger
}

// New builds a Discovery.
func New(indexer IndexerSource, chain ChainSource) *Discovery {
	return &Discovery{indexer: indexer, chain: chain, logger: slog.Default().With("component", "discovery")}
}

// ListMonitored returns the current set of agents to process this cycle.
// Called exactly once per cycle; never caches across calls.
func (d *Discovery) ListMonitored(ctx context.Context) ([]Target, error) {
	agents, err := d.indexer.MonitoredAgents(ctx)
	if err == nil {
		targets := make([]Target, 0, len(agents))
		for _, a := range agents {
			targets = append(targets, Target{AgentID: a.AgentID, Endpoint: a.Endpoint})
		}
		return targets, nil
	}

	d.logger.Warn("indexer discovery failed, falling back to chain scan", "error", err, "range", FallbackRange)
	return d.chainFallback(ctx)
}

func (d *Discovery) chainFallback(ctx context.Context) ([]Target, error) {
	var targets []Target
	for id := 0; id < FallbackRange; id++ {
		agentID := strconv.Itoa(id)
		data, err := d.chain.GetHealthData(ctx, agentID)
		if err != nil {
			d.logger.Warn("chain fallback read failed", "agentId", agentID, "error", err)
			continue
		}
		if data.IsMonitored {
			targets = append(targets, Target{AgentID: agentID, Endpoint: data.Endpoint})
		}
	}
	return targets, nil
}
