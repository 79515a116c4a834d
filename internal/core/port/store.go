package port

import (
	"context"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// ConfigStore retrieves durable connection configs. The lifecycle manager
// caches the config from the most recent connect in memory and falls back to
// this store when reconnecting a connection it has not seen this process.
type ConfigStore interface {
	GetConnectionConfig(ctx context.Context, id string) (*domain.ConnectionConfig, error)
}

// HistoryRepository persists query log events.
type HistoryRepository interface {
	// InsertBatch writes multiple query log entries in a single operation.
	InsertBatch(ctx context.Context, entries []domain.QueryLogEvent) error
}
