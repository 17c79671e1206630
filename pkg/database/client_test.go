package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trustoracle/oracle/pkg/database"
)

// newTestClient spins up a disposable Postgres container, applies
// migrations, and returns a connected Client. The container is torn down
// when the test finishes.
func newTestClient(t *testing.T) *database.Client {
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
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg, err := database.LoadConfigFromEnv(connStr)
	require.NoError(t, err)

	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestNewClientAppliesMigrations(t *testing.T) {
	client := newTestClient(t)

	var tableCount int
	err := client.DB().QueryRowContext(context.Background(),
		`SELECT count(*) FROM information_schema.tables WHERE table_name = 'agents'`).
		Scan(&tableCount)
	require.NoError(t, err)
	require.Equal(t, 1, tableCount)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestCheckStoresReportsPoolStats(t *testing.T) {
	client := newTestClient(t)

	health := database.CheckStores(context.Background(), client.DB(), fakePinger{})
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, "healthy", health.Postgres.Status)
	require.Equal(t, "healthy", health.Cache.Status)
	require.Positive(t, health.Postgres.MaxOpenConns)
}

func TestCheckStoresDegradedWhenCacheUnreachable(t *testing.T) {
	client := newTestClient(t)

	health := database.CheckStores(context.Background(), client.DB(), fakePinger{err: errors.New("redis down")})
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "healthy", health.Postgres.Status)
	require.Equal(t, "unhealthy", health.Cache.Status)
}
