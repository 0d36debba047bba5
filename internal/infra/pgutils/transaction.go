package pgutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// WithTx runs fn inside a database transaction: commit when fn returns nil,
// roll back otherwise. This is the engine's atomicity unit; every mutation a
// trade performs (balance, log, holding) happens inside one WithTx call, so a
// failure at any step leaves nothing half-applied.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil) // default isolation level
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	err = fn(tx)
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			return fmt.Errorf("rollback after fn error: %v (fn err: %w)", rbErr, err)
		}
		return fmt.Errorf("fn: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// IsDeadlock reports whether err is a Postgres deadlock abort (SQLSTATE
// 40P01). The aborted transaction is fully rolled back, so replaying the
// WithTx call is safe.
func IsDeadlock(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "40P01"
}
