package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrVersionConflict signals a stale write rejected by the optimistic
// version check on kpis.
var ErrVersionConflict = errors.New("kpi version conflict")

// DBTX abstracts over a pgx pool or transaction so repository statements can
// run inside the same transaction as related writes.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
