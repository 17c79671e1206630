package discovery

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustoracle/oracle/pkg/indexer"
	"github.com/trustoracle/oracle/pkg/model"
)

type fakeIndexer struct {
	agents []indexer.MonitoredAgent
	err    error
}

func (f fakeIndexer) MonitoredAgents(ctx context.Context) ([]indexer.MonitoredAgent, error) {
	return f.agents, f.err
}

type fakeChain struct {
	monitored map[string]bool
}

func (f fakeChain) GetHealthData(ctx context.Context, agentID string) (model.ChainHealthData, error) {
	return model.ChainHealthData{IsMonitored: f.monitored[agentID], Endpoint: "https://" + agentID + ".example"}, nil
}

func TestListMonitoredUsesIndexerWhenAvailable(t *testing.T) {
	d := New(fakeIndexer{agents: []indexer.MonitoredAgent{{AgentID: "1", Endpoint: "https://a.example"}}}, fakeChain{})
	targets, err := d.ListMonitored(t.Context())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "1", targets[0].AgentID)
}

func TestListMonitoredFallsBackToChainScanOnIndexerError(t *testing.T) {
	monitored := map[string]bool{"3": true, "7": true}
	d := New(fakeIndexer{err: errors.New("indexer down")}, fakeChain{monitored: monitored})

	targets, err := d.ListMonitored(t.Context())
	require.NoError(t, err)
	require.Len(t, targets, 2)

	ids := map[string]bool{}
	for _, tg := range targets {
		ids[tg.AgentID] = true
	}
	assert.True(t, ids["3"])
	assert.True(t, ids["7"])
}

func TestChainFallbackNeverScansBeyondRange(t *testing.T) {
	monitored := map[string]bool{strconv.Itoa(FallbackRange): true} // id 20: out of range
	d := New(fakeIndexer{err: errors.New("down")}, fakeChain{monitored: monitored})

	targets, err := d.ListMonitored(t.Context())
	require.NoError(t, err)
	assert.Empty(t, targets)
}
