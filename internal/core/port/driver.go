package port

import (
	"context"
	"time"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// Driver is the uniform contract every backend implements. One driver
// instance owns at most one live backend session; a fresh instance is
// created per logical connect.
type Driver interface {
	// Type returns the backend variant this driver serves.
	Type() domain.DatabaseType

	// Connect establishes the backend session. It returns a ConnectionError
	// on network or auth failure. Calling Connect after Disconnect
	// re-establishes a usable session.
	Connect(ctx context.Context, cfg domain.ConnectionConfig) error

	// Disconnect releases all backend resources. It is safe to call on a
	// driver that never connected or already disconnected.
	Disconnect(ctx context.Context) error

	// TestConnection connects, runs a trivial probe, and always disconnects
	// afterwards regardless of outcome. It never returns an error; every
	// failure mode is encoded in the result.
	TestConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult

	// Execute runs a raw query or command against the backend.
	Execute(ctx context.Context, query string, args ...any) (*domain.QueryResult, error)

	// FetchRows reads rows from a table (or collection, or keyspace) using
	// the uniform filter/order/limit options.
	FetchRows(ctx context.Context, table string, opts domain.QueryOptions) (*domain.QueryResult, error)

	// ListDatabases and ListTables are the schema introspection surface the
	// browsing layer builds on.
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context) ([]domain.TableInfo, error)

	// Ping reports liveness. Backends without a cheap probe return false
	// rather than an error.
	Ping(ctx context.Context) bool

	// CancelQuery cancels the in-flight query, if any. Returns false when
	// the backend does not support cancellation or nothing was running.
	CancelQuery(ctx context.Context) bool
}

// QueryHook observes one executed query. Hooks must be cheap and must never
// influence the query's result.
type QueryHook func(query string, elapsed time.Duration, err error)

// Instrumentable is implemented by drivers whose query entry points can be
// observed. The lifecycle manager installs the hook once, right after a
// successful connect. MongoDB and Redis deliberately do not implement it:
// their client libraries expose no single chokepoint for raw command text.
type Instrumentable interface {
	InstrumentQueries(hook QueryHook)
}
