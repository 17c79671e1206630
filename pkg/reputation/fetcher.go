// Package reputation obtains the aggregated peer-feedback score for an
// agent, preferring the indexer and falling back to a direct chain read
// (spec §4.7, component C7).
package reputation

import (
	"context"
	"log/slog"

	"github.com/trustoracle/oracle/pkg/model"
)

// IndexerSource is the indexer's reputationSummary query.
type IndexerSource interface {
	ReputationSummary(ctx context.Context, agentID string) (mean float64, count int64, err error)
}

// ChainSource is ReputationRegistry.getSummary.
type ChainSource interface {
	ReputationSummary(ctx context.Context, agentID string) (mean float64, count int64, err error)
}

// Fetcher implements C7: indexer first, chain fallback on any error.
type Fetcher struct {
	indexer IndexerSource
	chain   ChainSource
	logger  *slog.Logger
}

// New builds a Fetcher.
func New(indexer IndexerSource, chain ChainSource) *Fetcher {
	return &Fetcher{indexer: indexer, chain: chain, logger: slog.Default().With("component", "reputation")}
}

// Reputation returns {mean, count}, defaulting to the zero value when the
// agent has no reputation entity anywhere.
func (f *Fetcher) Reputation(ctx context.Context, agentID string) model.ReputationSummary {
	mean, count, err := f.indexer.ReputationSummary(ctx, agentID)
	if err == nil {
		return model.ReputationSummary{Mean: mean, Count: count}
	}
	f.logger.Warn("indexer reputation lookup failed, falling back to chain", "agentId", agentID, "error", err)

	mean, count, err = f.chain.ReputationSummary(ctx, agentID)
	if err != nil {
		f.logger.Warn("chain reputation lookup failed", "agentId", agentID, "error", err)
		return model.ReputationSummary{}
	}
	return model.ReputationSummary{Mean: mean, Count: count}
}
