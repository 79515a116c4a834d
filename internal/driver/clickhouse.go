package driver

import (
	"context"
	"crypto/tls"
	"fmt"
	"reflect"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// clickhouseDriver speaks the ClickHouse native protocol.
type clickhouseDriver struct {
	queryObserver
	cancels cancelState

	conn chdriver.Conn
}

func newClickHouseDriver() *clickhouseDriver {
	return &clickhouseDriver{}
}

func (d *clickhouseDriver) Type() domain.DatabaseType { return domain.TypeClickHouse }

func (d *clickhouseDriver) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.EffectiveHost(), cfg.EffectivePort())},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		opts.TLS = &tls.Config{InsecureSkipVerify: cfg.TLS.InsecureSkipVerify}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return &domain.ConnectionError{Backend: domain.TypeClickHouse, Err: err}
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return &domain.ConnectionError{Backend: domain.TypeClickHouse, Err: err}
	}

	d.conn = conn
	return nil
}

func (d *clickhouseDriver) Disconnect(context.Context) error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *clickhouseDriver) ensureConnected() error {
	if d.conn == nil {
		return domain.ErrNotConnected
	}
	return nil
}

func (d *clickhouseDriver) TestConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult {
	return runTestConnection(ctx, d, cfg, func(ctx context.Context) (probeResult, error) {
		var version, timezone string
		if err := d.conn.QueryRow(ctx, "SELECT version(), timezone()").Scan(&version, &timezone); err != nil {
			return probeResult{}, err
		}
		return probeResult{
			serverVersion: version,
			serverInfo:    fmt.Sprintf("ClickHouse %s (%s)", version, timezone),
		}, nil
	})
}

func (d *clickhouseDriver) Execute(ctx context.Context, query string, args ...any) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx = d.cancels.arm(ctx)
	defer d.cancels.disarm()

	if !isReadQuery(query) {
		err := d.conn.Exec(ctx, query, args...)
		d.observe(query, start, err)
		if err != nil {
			return nil, err
		}
		return &domain.QueryResult{
			Elapsed:   time.Since(start).Milliseconds(),
			Timestamp: time.Now(),
		}, nil
	}

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		d.observe(query, start, err)
		return nil, err
	}
	defer rows.Close()

	types := rows.ColumnTypes()
	result := &domain.QueryResult{Columns: rows.Columns()}

	for rows.Next() {
		values := make([]any, len(types))
		for i, ct := range types {
			values[i] = newScanTarget(ct)
		}
		if err := rows.Scan(values...); err != nil {
			d.observe(query, start, err)
			return nil, err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = deref(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		d.observe(query, start, err)
		return nil, err
	}

	result.Elapsed = time.Since(start).Milliseconds()
	result.Timestamp = time.Now()
	d.observe(query, start, nil)
	return result, nil
}

func (d *clickhouseDriver) FetchRows(ctx context.Context, table string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	query, args := buildSelect(dialectMySQL, table, opts)
	return d.Execute(ctx, query, args...)
}

func (d *clickhouseDriver) ListDatabases(ctx context.Context) ([]string, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	rows, err := d.conn.Query(ctx, "SHOW DATABASES")
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

func (d *clickhouseDriver) ListTables(ctx context.Context) ([]domain.TableInfo, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	rows, err := d.conn.Query(ctx,
		"SELECT database, name, engine FROM system.tables WHERE database NOT IN ('system', 'information_schema', 'INFORMATION_SCHEMA') ORDER BY database, name")
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

// newScanTarget allocates a pointer of the column's scan type; the native
// protocol client requires typed destinations.
func newScanTarget(ct chdriver.ColumnType) any {
	return reflect.New(ct.ScanType()).Interface()
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}

func (d *clickhouseDriver) Ping(ctx context.Context) bool {
	if d.conn == nil {
		return false
	}
	return d.conn.Ping(ctx) == nil
}

func (d *clickhouseDriver) CancelQuery(context.Context) bool {
	return d.cancels.fire()
}
