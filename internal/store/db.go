package store

import (
	"context"
	"database/sql"
)

// DBTX is the minimal query surface shared by *sql.DB and *sql.Tx.
// Task store methods run against a DBTX so the same code serves both
// standalone calls and calls inside a transaction opened by WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
