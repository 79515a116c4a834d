package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zequel-labs/zequel/internal/core/domain"
)

func TestBuildWhereComparisons(t *testing.T) {
	where, args := BuildWhere(dialectANSI, []domain.QueryFilter{
		{Column: "age", Operator: ">=", Value: 21},
		{Column: "name", Operator: "=", Value: "ada"},
	}, 0)

	assert.Equal(t, `WHERE "age" >= ? AND "name" = ?`, where)
	assert.Equal(t, []any{21, "ada"}, args)
}

func TestBuildWhereNullOperatorsBindNothing(t *testing.T) {
	where, args := BuildWhere(dialectANSI, []domain.QueryFilter{
		{Column: "deleted_at", Operator: "IS NULL"},
		{Column: "approved_at", Operator: "IS NOT NULL"},
	}, 0)

	assert.Equal(t, `WHERE "deleted_at" IS NULL AND "approved_at" IS NOT NULL`, where)
	assert.Empty(t, args)
}

func TestBuildWhereInExpandsPerElement(t *testing.T) {
	where, args := BuildWhere(dialectANSI, []domain.QueryFilter{
		{Column: "status", Operator: "IN", Value: []any{"active", "pending"}},
	}, 0)

	assert.Equal(t, `WHERE "status" IN (?, ?)`, where)
	assert.Equal(t, []any{"active", "pending"}, args)
}

func TestBuildWhereInWithTypedSlice(t *testing.T) {
	where, args := BuildWhere(dialectANSI, []domain.QueryFilter{
		{Column: "id", Operator: "NOT IN", Value: []int{1, 2, 3}},
	}, 0)

	assert.Equal(t, `WHERE "id" NOT IN (?, ?, ?)`, where)
	assert.Equal(t, []any{1, 2, 3}, args)
}

func TestBuildWhereInSkipsNonArrayValue(t *testing.T) {
	// A scalar value for IN contributes nothing: no clause, no bound values.
	where, args := BuildWhere(dialectANSI, []domain.QueryFilter{
		{Column: "status", Operator: "IN", Value: "active"},
	}, 0)

	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestBuildWhereInSkipsEmptySlice(t *testing.T) {
	// "IN ()" is a syntax error on every backend, so an empty slice drops
	// the condition the same way a scalar does.
	where, args := BuildWhere(dialectANSI, []domain.QueryFilter{
		{Column: "status", Operator: "IN", Value: []string{}},
		{Column: "id", Operator: "NOT IN", Value: []any{}},
		{Column: "name", Operator: "=", Value: "kept"},
	}, 0)

	assert.Equal(t, `WHERE "name" = ?`, where)
	assert.Equal(t, []any{"kept"}, args)
}

func TestBuildWhereLikeWrapsWildcards(t *testing.T) {
	where, args := BuildWhere(dialectANSI, []domain.QueryFilter{
		{Column: "email", Operator: "LIKE", Value: "gmail"},
		{Column: "name", Operator: "NOT LIKE", Value: "bot"},
	}, 0)

	assert.Equal(t, `WHERE "email" LIKE ? AND "name" NOT LIKE ?`, where)
	assert.Equal(t, []any{"%gmail%", "%bot%"}, args)
}

func TestBuildWherePreservesInputOrder(t *testing.T) {
	where, args := BuildWhere(dialectANSI, []domain.QueryFilter{
		{Column: "b", Operator: "=", Value: 2},
		{Column: "a", Operator: "=", Value: 1},
	}, 0)

	assert.Equal(t, `WHERE "b" = ? AND "a" = ?`, where)
	assert.Equal(t, []any{2, 1}, args)
}

func TestBuildWhereNumberedPlaceholders(t *testing.T) {
	where, args := BuildWhere(dialectPg, []domain.QueryFilter{
		{Column: "status", Operator: "IN", Value: []any{"a", "b"}},
		{Column: "age", Operator: ">", Value: 30},
	}, 0)

	assert.Equal(t, `WHERE "status" IN ($1, $2) AND "age" > $3`, where)
	assert.Equal(t, []any{"a", "b", 30}, args)
}

func TestBuildWhereMySQLQuoting(t *testing.T) {
	where, _ := BuildWhere(dialectMySQL, []domain.QueryFilter{
		{Column: "status", Operator: "=", Value: "x"},
	}, 0)

	assert.Equal(t, "WHERE `status` = ?", where)
}

func TestBuildOrderBy(t *testing.T) {
	assert.Empty(t, BuildOrderBy(dialectANSI, "", "DESC"))
	assert.Equal(t, `ORDER BY "name" ASC`, BuildOrderBy(dialectANSI, "name", ""))
	assert.Equal(t, `ORDER BY "name" ASC`, BuildOrderBy(dialectANSI, "name", "bogus"))
	assert.Equal(t, `ORDER BY "name" DESC`, BuildOrderBy(dialectANSI, "name", "desc"))
}

func TestBuildLimitOffsetZeroIsExplicit(t *testing.T) {
	zero := 0
	ten := 10

	assert.Empty(t, BuildLimitOffset(nil, nil))
	assert.Equal(t, "LIMIT 0", BuildLimitOffset(&zero, nil))
	assert.Equal(t, "OFFSET 0", BuildLimitOffset(nil, &zero))
	assert.Equal(t, "LIMIT 10 OFFSET 0", BuildLimitOffset(&ten, &zero))
}

func TestBuildSelect(t *testing.T) {
	limit := 25
	offset := 50

	query, args := buildSelect(dialectANSI, "users", domain.QueryOptions{
		Filters: []domain.QueryFilter{
			{Column: "active", Operator: "=", Value: true},
		},
		OrderBy:        "created_at",
		OrderDirection: "DESC",
		Limit:          &limit,
		Offset:         &offset,
	})

	require.Equal(t, `SELECT * FROM "users" WHERE "active" = ? ORDER BY "created_at" DESC LIMIT 25 OFFSET 50`, query)
	assert.Equal(t, []any{true}, args)
}

func TestQuoteIdentEscapesEmbeddedQuotes(t *testing.T) {
	assert.Equal(t, `"we""ird"`, dialectANSI.QuoteIdent(`we"ird`))
	assert.Equal(t, "`we``ird`", dialectMySQL.QuoteIdent("we`ird"))
}
