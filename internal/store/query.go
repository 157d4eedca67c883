package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Queries are written with ? placeholders; these rebind them for the
// connected driver.

func sqlxSelect(ctx context.Context, q Querier, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func sqlxGet(ctx context.Context, q Querier, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func sqlxNamedExec(ctx context.Context, q Querier, query string, arg any) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, q, query, arg)
}
