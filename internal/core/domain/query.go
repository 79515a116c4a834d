package domain

import "time"

// QueryFilter is one WHERE condition. Filters are combined with AND in the
// order given.
type QueryFilter struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// QueryOptions shapes a row-browsing query. Limit and Offset distinguish
// "not set" (nil) from an explicit zero.
type QueryOptions struct {
	Filters        []QueryFilter `json:"filters,omitempty"`
	OrderBy        string        `json:"orderBy,omitempty"`
	OrderDirection string        `json:"orderDirection,omitempty"`
	Limit          *int          `json:"limit,omitempty"`
	Offset         *int          `json:"offset,omitempty"`
}

// QueryResult is the uniform result shape for Execute and FetchRows.
type QueryResult struct {
	Columns      []string  `json:"columns"`
	Rows         [][]any   `json:"rows"`
	RowsAffected int64     `json:"rowsAffected"`
	Elapsed      int64     `json:"elapsed"` // milliseconds
	Timestamp    time.Time `json:"timestamp"`
}

// TableInfo describes one table (or collection, or keyspace) for browsing.
type TableInfo struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
}

// TestConnectionResult is the always-structured outcome of a connection test.
// SSHSuccess and SSHError are populated only when a tunnel was attempted.
type TestConnectionResult struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	Latency       int64  `json:"latency"` // milliseconds, start to completion
	ServerVersion string `json:"serverVersion,omitempty"`
	ServerInfo    string `json:"serverInfo,omitempty"`
	SSHSuccess    *bool  `json:"sshSuccess,omitempty"`
	SSHError      string `json:"sshError,omitempty"`
}
