package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// startPostgres brings up a disposable PostgreSQL container and returns a
// config pointing at it.
func startPostgres(t *testing.T) domain.ConnectionConfig {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("app"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("app"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return domain.ConnectionConfig{
		ID:       "pg-it",
		Type:     domain.TypePostgres,
		Host:     host,
		Port:     port.Int(),
		Database: "app",
		Username: "app",
		Password: "app",
	}
}

func TestPostgresDriverIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	cfg := startPostgres(t)
	ctx := context.Background()

	d := newPostgresDriver()
	require.NoError(t, d.Connect(ctx, cfg))
	defer d.Disconnect(ctx) //nolint:errcheck

	require.True(t, d.Ping(ctx))

	_, err := d.Execute(ctx, "CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT, status TEXT)")
	require.NoError(t, err)

	res, err := d.Execute(ctx,
		"INSERT INTO users (name, status) VALUES ($1, $2), ($3, $4)",
		"ada", "active", "grace", "pending")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	limit := 10
	res, err = d.FetchRows(ctx, "users", domain.QueryOptions{
		Filters: []domain.QueryFilter{
			{Column: "status", Operator: "IN", Value: []string{"active", "pending"}},
		},
		OrderBy:        "name",
		OrderDirection: "ASC",
		Limit:          &limit,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "ada", res.Rows[0][1])

	tables, err := d.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "users", tables[0].Name)

	dbs, err := d.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Contains(t, dbs, "app")

	probe := newPostgresDriver()
	result := probe.TestConnection(ctx, cfg)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.NotEmpty(t, result.ServerVersion)
	assert.False(t, probe.Ping(ctx), "probe must disconnect afterwards")
}
