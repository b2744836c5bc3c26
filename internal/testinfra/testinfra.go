// Package testinfra starts throwaway Postgres and Redis containers for
// integration tests. Tests using it are skipped with -short and when no
// container runtime is reachable.
package testinfra

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/subcycle/migrations"
	"github.com/dmitrymomot/subcycle/pkg/pg"
	"github.com/dmitrymomot/subcycle/pkg/redis"
)

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// Postgres starts a migrated Postgres and returns a pool bound to it.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	skipUnlessIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("subcycle"),
		tcpostgres.WithUsername("subcycle"),
		tcpostgres.WithPassword("subcycle"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{ConnectionString: dsn, MaxOpenConns: 5, MinConns: 1, RetryAttempts: 3, RetryInterval: time.Second}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, cfg, nil))
	return pool
}

// Redis starts a Redis server and returns a client bound to it.
func Redis(t *testing.T) goredis.UniversalClient {
	t.Helper()
	skipUnlessIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.PortEndpoint(ctx, "6379/tcp", "redis")
	require.NoError(t, err)

	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: endpoint, RetryAttempts: 3, RetryInterval: time.Second, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
