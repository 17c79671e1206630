package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trustoracle/oracle/pkg/api"
	"github.com/trustoracle/oracle/pkg/database"
	"github.com/trustoracle/oracle/pkg/indexer"
	"github.com/trustoracle/oracle/pkg/model"
	"github.com/trustoracle/oracle/pkg/store"
)

func newTestServer(t *testing.T, idx *indexer.Client) *api.Server {
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

	dbCfg, err := database.LoadConfigFromEnv(connStr)
	require.NoError(t, err)

	dbClient, err := database.NewClient(ctx, dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbClient.Close() })

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(redisContainer) })

	redisConnStr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)
	redisOpts, err := redis.ParseURL(redisConnStr)
	require.NoError(t, err)
	rdb := redis.NewClient(redisOpts)
	t.Cleanup(func() { _ = rdb.Close() })

	s := store.New(dbClient.DB())
	cache := store.NewCache(rdb)

	return api.NewServer(s, cache, dbClient, idx)
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Status)
	require.Equal(t, "healthy", body.Postgres.Status)
	require.Equal(t, "healthy", body.Cache.Status)
}

func TestNotifyRegisteredThenListAndGet(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	payload := `{"endpoint":"https://agent-42.example/health","owner":"0xabc"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/agents/42/registered", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/agents/42", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var agent model.Agent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &agent))
	require.Equal(t, "https://agent-42.example/health", agent.Endpoint)
	require.True(t, agent.Monitored)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/agents", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var listed struct {
		Agents []model.Agent `json:"agents"`
		Count  int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Equal(t, 1, listed.Count)
}

// TestAgentHistoryOnchainEnrichment covers ?onchain=true: the store's own
// event log is returned alongside the indexer's healthUpdateds view.
func TestAgentHistoryOnchainEnrichment(t *testing.T) {
	indexerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"healthUpdateds":[{"id":"u1","agentId":"42","blockTimestamp":"1700000000","oldScore":90,"newScore":85,"success":false,"responseTime":800}]}}`))
	}))
	defer indexerServer.Close()

	srv := newTestServer(t, indexer.NewClient(indexerServer.URL))
	router := srv.Router()

	payload := `{"endpoint":"https://agent-42.example/health"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/agents/42/registered", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/agents/42/history?onchain=true", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		AgentID string                 `json:"agentId"`
		Events  []model.HealthEvent    `json:"events"`
		OnChain []indexer.HealthUpdate `json:"onChain"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "42", body.AgentID)
	require.Len(t, body.OnChain, 1)
	require.Equal(t, 85, body.OnChain[0].NewScore)
}

func TestGetAgentMissingReturns404(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/agents/999", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifyUnregisteredDeletesAgent(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	payload := `{"endpoint":"https://agent-7.example/health"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/agents/7/registered", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/internal/agents/7", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/agents/7", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
