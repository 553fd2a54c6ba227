// Package pgtest provides an isolated Postgres schema per test.
//
// The database comes from TEST_DATABASE_URL. When it is unset and
// TEST_INTEGRATION is set, a postgres container is started once per test
// binary and reclaimed by the testcontainers reaper. Otherwise tests skip.
package pgtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	repopg "github.com/tendant/simple-storage/pkg/simplestorage/repo/postgres"
)

// DB is a migrated schema reserved for a single test.
type DB struct {
	Pool   *pgxpool.Pool
	URL    string
	Schema string
}

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// New returns a freshly migrated schema, dropped when the test ends.
func New(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}

	ctx := context.Background()
	databaseURL := databaseURL(t)

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, repopg.Migrate(ctx, databaseURL, schema, logger), "failed to migrate test schema")

	cfg, err := pgxpool.ParseConfig(databaseURL)
	require.NoError(t, err, "failed to parse test database url")
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err, "failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "failed to ping test database")

	t.Cleanup(func() {
		_, err := pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
		if err != nil {
			t.Logf("failed to drop test schema %s: %v", schema, err)
		}
		pool.Close()
	})

	return &DB{Pool: pool, URL: databaseURL, Schema: schema}
}

func databaseURL(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("TEST_DATABASE_URL and TEST_INTEGRATION not set")
	}

	containerOnce.Do(func() {
		containerURL, containerErr = startContainer(context.Background())
	})
	require.NoError(t, containerErr, "failed to start postgres container")
	return containerURL
}

func startContainer(ctx context.Context) (string, error) {
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("simple_storage_test"),
		postgres.WithUsername("simple_storage"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", fmt.Errorf("run container: %w", err)
	}
	return container.ConnectionString(ctx, "sslmode=disable")
}
