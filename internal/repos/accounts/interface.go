// Package accounts defines the balance ledger: the owner of each user's
// cash balance. Mutations are only ever issued from the trading processor,
// inside its transaction boundary.
package accounts

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

type Accounts interface {
	// GetBalance reads the balance outside any transaction (read endpoints).
	// Returns ledger.ErrAccountNotFound when the user has no account.
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)

	// Exists verifies the account row inside the caller's transaction.
	Exists(tx *sql.Tx, userID int64) error

	// BalanceTx reads the balance inside the caller's transaction, so a
	// trade can report the post-mutation balance it actually committed.
	BalanceTx(tx *sql.Tx, userID int64) (decimal.Decimal, error)

	// DebitIfSufficient decrements the balance by amount only if the balance
	// covers it, as a single conditional update. Returns
	// ledger.ErrInsufficientFunds when the guard fails.
	DebitIfSufficient(tx *sql.Tx, userID int64, amount decimal.Decimal) error

	// Credit increments the balance unconditionally (redemption proceeds).
	Credit(tx *sql.Tx, userID int64, amount decimal.Decimal) error
}
