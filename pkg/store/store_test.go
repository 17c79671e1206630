package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trustoracle/oracle/pkg/database"
	"github.com/trustoracle/oracle/pkg/model"
	"github.com/trustoracle/oracle/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("oracle_test"),
		postgres.WithUsername("oracle"),
		postgres.WithPassword("oracle"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pgContainer) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg, err := database.LoadConfigFromEnv(connStr)
	require.NoError(t, err)

	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return store.New(client.DB())
}

func TestUpsertAndGetAgentRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	agent := model.Agent{
		AgentID:     "1",
		Name:        "agent-one",
		Endpoint:    "https://agent-one.example/health",
		HealthScore: 90,
		Monitored:   true,
		LastChecked: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.UpsertAgent(ctx, agent))

	got, err := s.GetAgent(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "agent-one", got.Name)
	require.Equal(t, 90, got.HealthScore)
	require.True(t, got.Monitored)
}

func TestListAgentsFiltersToMonitored(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.UpsertAgent(ctx, model.Agent{AgentID: "10", Name: "watched", Monitored: true}))
	require.NoError(t, s.UpsertAgent(ctx, model.Agent{AgentID: "11", Name: "unwatched", Monitored: false}))

	all, err := s.ListAgents(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	monitored, err := s.ListAgents(ctx, true)
	require.NoError(t, err)
	require.Len(t, monitored, 1)
	require.Equal(t, "watched", monitored[0].Name)
}

func TestGetAgentMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetAgent(t.Context(), "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPushResponseHistoryTrimsToMax(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.UpsertAgent(ctx, model.Agent{AgentID: "2"}))

	for i := 0; i < model.MaxProbeHistory+5; i++ {
		require.NoError(t, s.PushResponseHistory(ctx, "2", model.ProbeSample{
			Timestamp:      time.Now(),
			ResponseTimeMs: int64(i),
			Success:        true,
		}))
	}

	got, err := s.GetAgent(ctx, "2")
	require.NoError(t, err)
	require.Len(t, got.ProbeHistory, model.MaxProbeHistory)
	// Oldest entries should have been evicted; the last entry pushed
	// (responseTimeMs = MaxProbeHistory+4) must survive.
	require.Equal(t, int64(model.MaxProbeHistory+4), got.ProbeHistory[len(got.ProbeHistory)-1].ResponseTimeMs)
}

func TestLogAndGetHealthHistoryOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.UpsertAgent(ctx, model.Agent{AgentID: "3"}))

	require.NoError(t, s.LogHealthEvent(ctx, model.HealthEvent{AgentID: "3", Decision: model.DecisionHealthy, HealthScore: 80, Success: true}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.LogHealthEvent(ctx, model.HealthEvent{AgentID: "3", Decision: model.DecisionSuspicious, HealthScore: 60, Success: false}))

	events, err := s.GetHealthHistory(ctx, "3", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, model.DecisionSuspicious, events[0].Decision)
}

func TestIncrementSuspiciousResetsAtThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	for i := 0; i < 5; i++ {
		slashed, err := s.IncrementSuspicious(ctx, "4", 6)
		require.NoError(t, err)
		require.False(t, slashed)
	}

	slashed, err := s.IncrementSuspicious(ctx, "4", 6)
	require.NoError(t, err)
	require.True(t, slashed)

	// After the slash, the counter must be back at 0 with the slash
	// timestamp recorded, while totalSeen keeps counting.
	counter, err := s.GetSuspicious(ctx, "4")
	require.NoError(t, err)
	require.Equal(t, 0, counter.Consecutive)
	require.EqualValues(t, 6, counter.TotalSeen)
	require.NotNil(t, counter.LastSlashedAt)

	slashed, err = s.IncrementSuspicious(ctx, "4", 6)
	require.NoError(t, err)
	require.False(t, slashed)
}

func TestResetSuspiciousZeroesCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	_, err := s.IncrementSuspicious(ctx, "5", 6)
	require.NoError(t, err)
	require.NoError(t, s.ResetSuspicious(ctx, "5"))

	slashed, err := s.IncrementSuspicious(ctx, "5", 1)
	require.NoError(t, err)
	require.True(t, slashed) // fresh increment from 0 reaches threshold 1
}

func TestDeleteAgentDataRemovesAllRows(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.UpsertAgent(ctx, model.Agent{AgentID: "6"}))
	require.NoError(t, s.LogHealthEvent(ctx, model.HealthEvent{AgentID: "6", Decision: model.DecisionHealthy, Success: true}))
	_, err := s.IncrementSuspicious(ctx, "6", 6)
	require.NoError(t, err)

	touched, err := s.DeleteAgentData(ctx, "6", nil)
	require.NoError(t, err)
	require.Contains(t, touched, "agents")
	require.Contains(t, touched, "health_events")
	require.Contains(t, touched, "suspicious_counters")

	got, err := s.GetAgent(ctx, "6")
	require.NoError(t, err)
	require.Nil(t, got)

	events, err := s.GetHealthHistory(ctx, "6", 10)
	require.NoError(t, err)
	require.Empty(t, events)

	counter, err := s.GetSuspicious(ctx, "6")
	require.NoError(t, err)
	require.Zero(t, counter.Consecutive)
	require.Zero(t, counter.TotalSeen)
}

func TestConfigRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	_, ok, err := s.GetConfig(ctx, "faucet_token")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetConfig(ctx, "faucet_token", "abc123"))
	value, ok, err := s.GetConfig(ctx, "faucet_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", value)
}

func TestFaucetClaimIsOneShot(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	claimed, err := s.HasClaimedFaucet(ctx, "0xABC")
	require.NoError(t, err)
	require.False(t, claimed)

	require.NoError(t, s.RecordFaucetClaim(ctx, "0xABC"))
	require.NoError(t, s.RecordFaucetClaim(ctx, "0xabc")) // idempotent, case-insensitive

	claimed, err = s.HasClaimedFaucet(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, claimed)
}
