// Package holdings defines the holding store: the owner of each
// (user, fund) position. Positions are mutated only through the trading
// processor's reconciliation path; reporting callers read them.
//
// A position fully redeemed to zero shares keeps its row (with zero shares
// and zero cost) rather than being deleted.
package holdings

import (
	"context"
	"database/sql"

	"github.com/apolyakov/fundledger/internal/ledger"
)

type Holdings interface {
	// Get returns the position, or ledger.ErrHoldingNotFound.
	Get(ctx context.Context, userID int64, fundCode string) (ledger.Holding, error)

	// ListByUser returns the user's positions ordered by market value,
	// largest first.
	ListByUser(ctx context.Context, userID int64) ([]ledger.Holding, error)

	// LockOrCreate ensures the row exists and locks it for the duration of
	// the caller's transaction. Concurrent trades on the same (user, fund)
	// serialize on this lock; other pairs are unaffected.
	LockOrCreate(tx *sql.Tx, userID int64, fundCode string) (ledger.Holding, error)

	// Update persists a reconciled position inside the caller's transaction.
	Update(tx *sql.Tx, holding ledger.Holding) error
}
