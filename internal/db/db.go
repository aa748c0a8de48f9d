// Package db is the query seam every store in this module goes through. It
// mirrors the DBTX/New(...) pattern the teacher generates with sqlc, but is
// hand-written: sqlc itself isn't available as a code-generation tool here,
// so Queries' methods are plain pgx calls written directly against DBTX.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same Queries
// methods run against a pooled connection or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries wraps a DBTX with the hand-written statements used across the
// governance pipeline.
type Queries struct {
	db DBTX
}

// New builds a Queries bound to dbtx. Callers pass a *pgxpool.Pool for
// request-scoped reads/writes, or a pgx.Tx when a stage must commit multiple
// statements atomically (e.g. invocation write + usage record write).
func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}
