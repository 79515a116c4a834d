package driver

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// redisDriver serves Redis. Like MongoDB it is not instrumentable: commands
// go through go-redis's typed API, not a raw text chokepoint.
type redisDriver struct {
	client *redis.Client
}

func newRedisDriver() *redisDriver {
	return &redisDriver{}
}

func (d *redisDriver) Type() domain.DatabaseType { return domain.TypeRedis }

func (d *redisDriver) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	opts := &redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.EffectiveHost(), cfg.EffectivePort()),
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: 10 * time.Second,
	}
	if cfg.Database != "" {
		var db int
		if _, err := fmt.Sscanf(cfg.Database, "%d", &db); err == nil {
			opts.DB = db
		}
	}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.TLS.InsecureSkipVerify}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return &domain.ConnectionError{Backend: domain.TypeRedis, Err: err}
	}

	d.client = client
	return nil
}

func (d *redisDriver) Disconnect(context.Context) error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

func (d *redisDriver) ensureConnected() error {
	if d.client == nil {
		return domain.ErrNotConnected
	}
	return nil
}

func (d *redisDriver) TestConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult {
	return runTestConnection(ctx, d, cfg, func(ctx context.Context) (probeResult, error) {
		info, err := d.client.Info(ctx, "server").Result()
		if err != nil {
			return probeResult{}, err
		}
		return probeResult{
			serverVersion: redisInfoField(info, "redis_version"),
			serverInfo:    redisInfoField(info, "redis_mode"),
		}, nil
	})
}

// Execute treats the query as a whitespace-separated Redis command line,
// e.g. "HGETALL user:1".
func (d *redisDriver) Execute(ctx context.Context, query string, _ ...any) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}

	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}

	start := time.Now()
	val, err := d.client.Do(ctx, args...).Result()
	if err != nil {
		return nil, err
	}

	return &domain.QueryResult{
		Columns:   []string{"result"},
		Rows:      flattenRedisValue(val),
		Elapsed:   time.Since(start).Milliseconds(),
		Timestamp: time.Now(),
	}, nil
}

// FetchRows scans keys matching "<table>*"; the desktop client treats key
// prefixes as browsable groups.
func (d *redisDriver) FetchRows(ctx context.Context, table string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}

	limit := int64(100)
	if opts.Limit != nil {
		limit = int64(*opts.Limit)
	}

	start := time.Now()
	pattern := table
	if pattern != "" && !strings.ContainsAny(pattern, "*?[") {
		pattern += "*"
	}

	result := &domain.QueryResult{Columns: []string{"key", "type"}}
	iter := d.client.Scan(ctx, 0, pattern, limit).Iterator()
	for iter.Next(ctx) {
		if int64(len(result.Rows)) >= limit {
			break
		}
		key := iter.Val()
		keyType, err := d.client.Type(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, []any{key, keyType})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(start).Milliseconds()
	result.Timestamp = time.Now()
	return result, nil
}

// ListDatabases reports the numeric keyspaces that currently hold keys.
func (d *redisDriver) ListDatabases(ctx context.Context) ([]string, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	info, err := d.client.Info(ctx, "keyspace").Result()
	if err != nil {
		return nil, fmt.Errorf("listing keyspaces: %w", err)
	}

	var names []string
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "db") {
			if idx := strings.IndexByte(line, ':'); idx > 0 {
				names = append(names, line[:idx])
			}
		}
	}
	return names, nil
}

func (d *redisDriver) ListTables(ctx context.Context) ([]domain.TableInfo, error) {
	names, err := d.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]domain.TableInfo, 0, len(names))
	for _, name := range names {
		tables = append(tables, domain.TableInfo{Name: name, Type: "keyspace"})
	}
	return tables, nil
}

func (d *redisDriver) Ping(ctx context.Context) bool {
	if d.client == nil {
		return false
	}
	return d.client.Ping(ctx).Err() == nil
}

// CancelQuery is unsupported for Redis.
func (d *redisDriver) CancelQuery(context.Context) bool {
	return false
}

func redisInfoField(info, field string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, field+":"); ok {
			return v
		}
	}
	return ""
}

func flattenRedisValue(val any) [][]any {
	switch v := val.(type) {
	case nil:
		return nil
	case []any:
		rows := make([][]any, len(v))
		for i, e := range v {
			rows[i] = []any{e}
		}
		return rows
	case map[any]any:
		rows := make([][]any, 0, len(v))
		for k, e := range v {
			rows = append(rows, []any{fmt.Sprintf("%v=%v", k, e)})
		}
		return rows
	default:
		return [][]any{{v}}
	}
}
