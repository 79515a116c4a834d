// Package driver implements the uniform backend contract (port.Driver) for
// the seven supported database types, plus the shared DML fragment builder
// the relational variants use for row browsing.
package driver

import (
	"github.com/zequel-labs/zequel/internal/core/domain"
	"github.com/zequel-labs/zequel/internal/core/port"
)

// New constructs a fresh, unconnected driver for the given backend type.
// Unknown types fail with an UnsupportedTypeError.
func New(t domain.DatabaseType) (port.Driver, error) {
	switch t {
	case domain.TypeSQLite:
		return newSQLiteDriver(), nil
	case domain.TypeMySQL:
		return newMySQLDriver(domain.TypeMySQL), nil
	case domain.TypeMariaDB:
		return newMySQLDriver(domain.TypeMariaDB), nil
	case domain.TypePostgres:
		return newPostgresDriver(), nil
	case domain.TypeClickHouse:
		return newClickHouseDriver(), nil
	case domain.TypeMongoDB:
		return newMongoDriver(), nil
	case domain.TypeRedis:
		return newRedisDriver(), nil
	default:
		return nil, &domain.UnsupportedTypeError{Type: string(t)}
	}
}
