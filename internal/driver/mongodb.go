package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// mongoDriver serves MongoDB. It is not instrumentable: the client library
// has no single chokepoint that sees raw command text, so query logging for
// this backend is an accepted gap.
type mongoDriver struct {
	client   *mongo.Client
	database string
}

func newMongoDriver() *mongoDriver {
	return &mongoDriver{}
}

func (d *mongoDriver) Type() domain.DatabaseType { return domain.TypeMongoDB }

func (d *mongoDriver) uri(cfg domain.ConnectionConfig) string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", cfg.EffectiveHost(), cfg.EffectivePort()),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		q := u.Query()
		q.Set("tls", "true")
		if cfg.TLS.InsecureSkipVerify {
			q.Set("tlsInsecure", "true")
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (d *mongoDriver) Connect(ctx context.Context, cfg domain.ConnectionConfig) error {
	opts := options.Client().
		ApplyURI(d.uri(cfg)).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return &domain.ConnectionError{Backend: domain.TypeMongoDB, Err: err}
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return &domain.ConnectionError{Backend: domain.TypeMongoDB, Err: err}
	}

	d.client = client
	d.database = cfg.Database
	if d.database == "" {
		d.database = "admin"
	}
	return nil
}

func (d *mongoDriver) Disconnect(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	err := d.client.Disconnect(ctx)
	d.client = nil
	return err
}

func (d *mongoDriver) ensureConnected() error {
	if d.client == nil {
		return domain.ErrNotConnected
	}
	return nil
}

func (d *mongoDriver) TestConnection(ctx context.Context, cfg domain.ConnectionConfig) domain.TestConnectionResult {
	return runTestConnection(ctx, d, cfg, func(ctx context.Context) (probeResult, error) {
		var info struct {
			Version string `bson:"version"`
		}
		res := d.client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}})
		if err := res.Decode(&info); err != nil {
			return probeResult{}, err
		}
		return probeResult{serverVersion: info.Version, serverInfo: "MongoDB " + info.Version}, nil
	})
}

// Execute treats the query as a MongoDB runCommand document in relaxed
// extended JSON, e.g. {"find": "users", "limit": 5}.
func (d *mongoDriver) Execute(ctx context.Context, query string, _ ...any) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}

	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(query), false, &cmd); err != nil {
		return nil, fmt.Errorf("parsing command document: %w", err)
	}

	start := time.Now()
	var doc bson.M
	if err := d.client.Database(d.database).RunCommand(ctx, cmd).Decode(&doc); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding command result: %w", err)
	}

	return &domain.QueryResult{
		Columns:   []string{"result"},
		Rows:      [][]any{{string(raw)}},
		Elapsed:   time.Since(start).Milliseconds(),
		Timestamp: time.Now(),
	}, nil
}

// FetchRows runs a find against the named collection. Only limit and offset
// map onto the document model; SQL-style filters do not apply here.
func (d *mongoDriver) FetchRows(ctx context.Context, collection string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	findOpts := options.Find()
	if opts.Limit != nil {
		findOpts.SetLimit(int64(*opts.Limit))
	}
	if opts.Offset != nil {
		findOpts.SetSkip(int64(*opts.Offset))
	}
	if opts.OrderBy != "" {
		dir := 1
		if opts.OrderDirection == "DESC" || opts.OrderDirection == "desc" {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: opts.OrderBy, Value: dir}})
	}

	cur, err := d.client.Database(d.database).Collection(collection).Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := &domain.QueryResult{Columns: []string{"document"}}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding document: %w", err)
		}
		result.Rows = append(result.Rows, []any{string(raw)})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(start).Milliseconds()
	result.Timestamp = time.Now()
	return result, nil
}

func (d *mongoDriver) ListDatabases(ctx context.Context) ([]string, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	names, err := d.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}
	return names, nil
}

func (d *mongoDriver) ListTables(ctx context.Context) ([]domain.TableInfo, error) {
	if err := d.ensureConnected(); err != nil {
		return nil, err
	}
	names, err := d.client.Database(d.database).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	tables := make([]domain.TableInfo, 0, len(names))
	for _, name := range names {
		tables = append(tables, domain.TableInfo{Schema: d.database, Name: name, Type: "collection"})
	}
	return tables, nil
}

func (d *mongoDriver) Ping(ctx context.Context) bool {
	if d.client == nil {
		return false
	}
	return d.client.Ping(ctx, readpref.Primary()) == nil
}

// CancelQuery is unsupported for MongoDB.
func (d *mongoDriver) CancelQuery(context.Context) bool {
	return false
}
