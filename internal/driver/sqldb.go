package driver

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// isReadQuery decides whether a statement produces a row set. Anything else
// goes through Exec so rows-affected is reported.
func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "PRAGMA", "EXPLAIN", "DESCRIBE", "DESC "} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

// scanSQLRows drains a database/sql row set into the uniform result shape.
func scanSQLRows(rows *sql.Rows) (*domain.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &domain.QueryResult{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			// Drivers hand back []byte for text columns; strings read better.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	return result, rows.Err()
}

// executeSQL runs one statement against a database/sql handle, routing
// between Query and Exec, reporting to the observer, and keeping the
// cancel state armed for the duration of the call.
func executeSQL(
	ctx context.Context,
	db *sql.DB,
	obs *queryObserver,
	cs *cancelState,
	query string,
	args ...any,
) (*domain.QueryResult, error) {
	start := time.Now()
	ctx = cs.arm(ctx)
	defer cs.disarm()

	var result *domain.QueryResult
	var err error

	if isReadQuery(query) {
		var rows *sql.Rows
		rows, err = db.QueryContext(ctx, query, args...)
		if err == nil {
			defer rows.Close()
			result, err = scanSQLRows(rows)
		}
	} else {
		var res sql.Result
		res, err = db.ExecContext(ctx, query, args...)
		if err == nil {
			affected, _ := res.RowsAffected()
			result = &domain.QueryResult{RowsAffected: affected}
		}
	}

	obs.observe(query, start, err)
	if err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(start).Milliseconds()
	result.Timestamp = time.Now()
	return result, nil
}
