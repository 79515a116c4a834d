package driver

import (
	"fmt"
	"strings"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

// Dialect captures the per-backend differences the fragment builder cares
// about: identifier quoting and placeholder style.
type Dialect struct {
	// QuoteRune wraps identifiers: `"` for Postgres/SQLite, "`" for
	// MySQL/MariaDB/ClickHouse.
	QuoteRune rune
	// Numbered emits $1, $2, ... placeholders instead of ?.
	Numbered bool
}

var (
	dialectANSI  = Dialect{QuoteRune: '"'}
	dialectMySQL = Dialect{QuoteRune: '`'}
	dialectPg    = Dialect{QuoteRune: '"', Numbered: true}
)

// QuoteIdent quotes an identifier, doubling any embedded quote rune.
func (d Dialect) QuoteIdent(name string) string {
	q := string(d.QuoteRune)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func (d Dialect) placeholder(n int) string {
	if d.Numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// BuildWhere renders a WHERE fragment from filters, ANDed in input order,
// together with its bound values. It returns an empty string when no filter
// contributes a condition.
//
// Normalization rules:
//   - IS NULL / IS NOT NULL bind no value.
//   - IN / NOT IN expand to one placeholder per element of a slice value and
//     are skipped entirely when the value is not a slice or the slice is
//     empty.
//   - LIKE / NOT LIKE wrap the bound value in % wildcards.
//   - Every other comparison operator binds the raw value.
func BuildWhere(d Dialect, filters []domain.QueryFilter, paramOffset int) (string, []any) {
	var conds []string
	var args []any

	n := paramOffset
	for _, f := range filters {
		col := d.QuoteIdent(f.Column)
		op := strings.ToUpper(strings.TrimSpace(f.Operator))

		switch op {
		case "IS NULL", "IS NOT NULL":
			conds = append(conds, fmt.Sprintf("%s %s", col, op))

		case "IN", "NOT IN":
			values, ok := f.Value.([]any)
			if !ok {
				values = toAnySlice(f.Value)
			}
			// A non-slice value gives nil; an empty slice would render the
			// unparseable "IN ()". Both drop the condition.
			if len(values) == 0 {
				continue
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				n++
				placeholders[i] = d.placeholder(n)
				args = append(args, v)
			}
			conds = append(conds, fmt.Sprintf("%s %s (%s)", col, op, strings.Join(placeholders, ", ")))

		case "LIKE", "NOT LIKE":
			n++
			conds = append(conds, fmt.Sprintf("%s %s %s", col, op, d.placeholder(n)))
			args = append(args, fmt.Sprintf("%%%v%%", f.Value))

		default:
			n++
			conds = append(conds, fmt.Sprintf("%s %s %s", col, op, d.placeholder(n)))
			args = append(args, f.Value)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// BuildOrderBy renders an ORDER BY fragment, or an empty string when no
// column is given. Direction defaults to ASC.
func BuildOrderBy(d Dialect, column, direction string) string {
	if column == "" {
		return ""
	}
	dir := strings.ToUpper(strings.TrimSpace(direction))
	if dir != "DESC" {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s", d.QuoteIdent(column), dir)
}

// BuildLimitOffset renders LIMIT and OFFSET fragments. Each clause appears
// only when its value is provided; an explicit zero is a value, not an
// absence.
func BuildLimitOffset(limit, offset *int) string {
	var parts []string
	if limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *limit))
	}
	if offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *offset))
	}
	return strings.Join(parts, " ")
}

// buildSelect assembles a full row-browsing SELECT for one table.
func buildSelect(d Dialect, table string, opts domain.QueryOptions) (string, []any) {
	parts := []string{"SELECT * FROM " + d.QuoteIdent(table)}

	where, args := BuildWhere(d, opts.Filters, 0)
	if where != "" {
		parts = append(parts, where)
	}
	if orderBy := BuildOrderBy(d, opts.OrderBy, opts.OrderDirection); orderBy != "" {
		parts = append(parts, orderBy)
	}
	if lim := BuildLimitOffset(opts.Limit, opts.Offset); lim != "" {
		parts = append(parts, lim)
	}

	return strings.Join(parts, " "), args
}

// toAnySlice converts common typed slices to []any, returning nil for
// non-slice values.
func toAnySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []int64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}
