// Package transactions defines the append-only transaction log. Rows are
// inserted once on commit and never updated or deleted; it is the
// authoritative record from which holdings are derived.
package transactions

import (
	"context"
	"database/sql"

	"github.com/apolyakov/fundledger/internal/ledger"
)

type Transactions interface {
	// Insert appends a committed record inside the caller's transaction and
	// returns the sequence-assigned id.
	Insert(tx *sql.Tx, txn ledger.Transaction) (int64, error)

	// ListByUser returns the user's transactions ordered by id ascending —
	// the insertion sequence, not the client-influenced wall-clock time.
	ListByUser(ctx context.Context, userID int64) ([]ledger.Transaction, error)

	// GetByID returns the transaction only when it belongs to userID.
	// Missing and foreign rows both yield ledger.ErrTransactionNotFound.
	GetByID(ctx context.Context, id, userID int64) (ledger.Transaction, error)

	// LatestPurchase returns the most recent committed purchase for the
	// pair, used to default a redeem's settlement account.
	LatestPurchase(ctx context.Context, userID int64, fundCode string) (ledger.Transaction, error)
}
