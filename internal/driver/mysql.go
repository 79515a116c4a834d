package driver

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// mysqlTLSName keys TLS registration by connection id. The go-sql-driver
// registry is process-wide, so a shared name would let two connections with
// different TLS settings clobber each other.
func mysqlTLSName(connectionID string) string {
	return "zequel-" + connectionID
}

// mysqlDriver serves both MySQL and MariaDB; the two speak the same wire
// protocol and differ only in the type tag they report.
type mysqlDriver struct {
	queryObserver
	cancels cancelState

	flavor  domain.DatabaseType
	db      *sql.DB
	tlsName string
}

func newMySQLDriver(flavor domain.DatabaseType) *mysqlDriver {
	return &mysqlDriver{flavor: flavor}
}

func (d *mysqlDriver) Type() domain.DatabaseType { return d.flavor }

func (d *mysqlDriver) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.EffectiveHost(), cfg.EffectivePort())
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = 10 * time.Second

	if cfg.TLS != nil && cfg.TLS.Enabled {
		name := mysqlTLSName(cfg.ID)
		if err := mysql.RegisterTLSConfig(name, &tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		}); err != nil {
			return &domain.ConnectionError{Backend: d.flavor, Err: err}
		}
		mc.TLSConfig = name
		d.tlsName = name
	}

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return &domain.ConnectionError{Backend: d.flavor, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return &domain.ConnectionError{Backend: d.flavor, Err: err}
	}

	d.db = db
	return nil
}

func (d *mysqlDriver) Disconnect(context.Context) error {
	if d.tlsName != "" {
		mysql.DeregisterTLSConfig(d.tlsName)
		d.tlsName = ""
	}
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *mysqlDriver) ensureConnected() error {
	if d.db == nil {
		return domain.ErrNotConnected
	}
	return nil
}

func (d *mysqlDriver) TestConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult {
	return runTestConnection(ctx, d, cfg, func(ctx context.Context) (probeResult, error) {
		var version, comment string
		if err := d.db.QueryRowContext(ctx, "SELECT VERSION(), @@version_comment").Scan(&version, &comment); err != nil {
			return probeResult{}, err
		}
		return probeResult{serverVersion: version, serverInfo: comment}, nil
	})
}

func (d *mysqlDriver) Execute(ctx context.Context, query string, args ...any) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	return executeSQL(ctx, d.db, &d.queryObserver, &d.cancels, query, args...)
}

func (d *mysqlDriver) FetchRows(ctx context.Context, table string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	query, args := buildSelect(dialectMySQL, table, opts)
	return executeSQL(ctx, d.db, &d.queryObserver, &d.cancels, query, args...)
}

func (d *mysqlDriver) ListDatabases(ctx context.Context) ([]string, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, "SHOW DATABASES")
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

func (d *mysqlDriver) ListTables(ctx context.Context) ([]domain.TableInfo, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		"SELECT table_schema, table_name, table_type FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name")
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

func (d *mysqlDriver) Ping(ctx context.Context) bool {
	if d.db == nil {
		return false
	}
	return d.db.PingContext(ctx) == nil
}

func (d *mysqlDriver) CancelQuery(context.Context) bool {
	return d.cancels.fire()
}
