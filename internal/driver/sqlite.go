package driver

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free sqlite, registers as "sqlite"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// sqliteDriver serves embedded SQLite files. The config's Database field is
// the file path; host, port, and credentials are ignored.
type sqliteDriver struct {
	queryObserver
	cancels cancelState

	db *sql.DB
}

func newSQLiteDriver() *sqliteDriver {
	return &sqliteDriver{}
}

func (d *sqliteDriver) Type() domain.DatabaseType { return domain.TypeSQLite }

func (d *sqliteDriver) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	if cfg.Database == "" {
		return &domain.ConnectionError{Backend: domain.TypeSQLite, Err: fmt.Errorf("database file path is required")}
	}

	db, err := sql.Open("sqlite", cfg.Database)
	if err != nil {
		return &domain.ConnectionError{Backend: domain.TypeSQLite, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return &domain.ConnectionError{Backend: domain.TypeSQLite, Err: err}
	}
	// WAL mode keeps readers from blocking the writer.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return &domain.ConnectionError{Backend: domain.TypeSQLite, Err: fmt.Errorf("enable WAL: %w", err)}
	}

	d.db = db
	return nil
}

func (d *sqliteDriver) Disconnect(context.Context) error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *sqliteDriver) ensureConnected() error {
	if d.db == nil {
		return domain.ErrNotConnected
	}
	return nil
}

func (d *sqliteDriver) TestConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult {
	return runTestConnection(ctx, d, cfg, func(ctx context.Context) (probeResult, error) {
		var version string
		if err := d.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
			return probeResult{}, err
		}
		return probeResult{serverVersion: version, serverInfo: "SQLite " + version}, nil
	})
}

func (d *sqliteDriver) Execute(ctx context.Context, query string, args ...any) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	return executeSQL(ctx, d.db, &d.queryObserver, &d.cancels, query, args...)
}

func (d *sqliteDriver) FetchRows(ctx context.Context, table string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	query, args := buildSelect(dialectANSI, table, opts)
	return executeSQL(ctx, d.db, &d.queryObserver, &d.cancels, query, args...)
}

func (d *sqliteDriver) ListDatabases(ctx context.Context) ([]string, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var seq int
		var name, file sql.NullString
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, err
		}
		names = append(names, name.String)
	}
	return names, rows.Err()
}

func (d *sqliteDriver) ListTables(ctx context.Context) ([]domain.TableInfo, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []domain.TableInfo
	for rows.Next() {
		var t domain.TableInfo
		if err := rows.Scan(&t.Name, &t.Type); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (d *sqliteDriver) Ping(ctx context.Context) bool {
	if d.db == nil {
		return false
	}
	return d.db.PingContext(ctx) == nil
}

func (d *sqliteDriver) CancelQuery(context.Context) bool {
	return d.cancels.fire()
}
