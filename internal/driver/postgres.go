package driver

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// postgresDriver serves PostgreSQL through a pgx pool sized to a single
// physical connection: the core keeps one session per logical connection.
type postgresDriver struct {
	queryObserver
	cancels cancelState

	pool *pgxpool.Pool
}

func newPostgresDriver() *postgresDriver {
	return &postgresDriver{}
}

func (d *postgresDriver) Type() domain.DatabaseType { return domain.TypePostgres }

func (d *postgresDriver) connString(cfg domain.ConnectionConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.EffectiveHost(), cfg.EffectivePort()),
		Path:   "/" + cfg.Database,
	}
	q := u.Query()
	if cfg.TLS != nil && cfg.TLS.Enabled {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	q.Set("connect_timeout", "10")
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *postgresDriver) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	pc, err := pgxpool.ParseConfig(d.connString(cfg))
	if err != nil {
		return &domain.ConnectionError{Backend: domain.TypePostgres, Err: err}
	}
	pc.MaxConns = 1
	pc.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return &domain.ConnectionError{Backend: domain.TypePostgres, Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return &domain.ConnectionError{Backend: domain.TypePostgres, Err: err}
	}

	d.pool = pool
	return nil
}

func (d *postgresDriver) Disconnect(context.Context) error {
	if d.pool == nil {
		return nil
	}
	d.pool.Close()
	d.pool = nil
	return nil
}

func (d *postgresDriver) ensureConnected() error {
	if d.pool == nil {
		return domain.ErrNotConnected
	}
	return nil
}

func (d *postgresDriver) TestConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult {
	return runTestConnection(ctx, d, cfg, func(ctx context.Context) (probeResult, error) {
		var info string
		if err := d.pool.QueryRow(ctx, "SELECT version()").Scan(&info); err != nil {
			return probeResult{}, err
		}
		var version string
		if err := d.pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
			return probeResult{}, err
		}
		return probeResult{serverVersion: version, serverInfo: info}, nil
	})
}

func (d *postgresDriver) Execute(ctx context.Context, query string, args ...any) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx = d.cancels.arm(ctx)
	defer d.cancels.disarm()

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		d.observe(query, start, err)
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	result := &domain.QueryResult{Columns: make([]string, len(fieldDescs))}
	for i, fd := range fieldDescs {
		result.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			d.observe(query, start, err)
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		d.observe(query, start, err)
		return nil, err
	}

	result.RowsAffected = rows.CommandTag().RowsAffected()
	result.Elapsed = time.Since(start).Milliseconds()
	result.Timestamp = time.Now()
	d.observe(query, start, nil)
	return result, nil
}

func (d *postgresDriver) FetchRows(ctx context.Context, table string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	query, args := buildSelect(dialectPg, table, opts)
	return d.Execute(ctx, query, args...)
}

func (d *postgresDriver) ListDatabases(ctx context.Context) ([]string, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	rows, err := d.pool.Query(ctx, "SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname")
	if err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *postgresDriver) ListTables(ctx context.Context) ([]domain.TableInfo, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	rows, err := d.pool.Query(ctx,
		`SELECT table_schema, table_name, table_type
		 FROM information_schema.tables
		 WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		 ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []domain.TableInfo
	for rows.Next() {
		var t domain.TableInfo
		if err := rows.Scan(&t.Schema, &t.Name, &t.Type); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (d *postgresDriver) Ping(ctx context.Context) bool {
	if d.pool == nil {
		return false
	}
	return d.pool.Ping(ctx) == nil
}

func (d *postgresDriver) CancelQuery(context.Context) bool {
	return d.cancels.fire()
}
