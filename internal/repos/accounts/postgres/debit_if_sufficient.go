package accounts

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/apolyakov/fundledger/internal/ledger"
)

// DebitIfSufficient is the single atomic check-and-set guarding against
// overdraft. The WHERE clause carries the sufficiency condition, so two
// concurrent purchases can never both pass a check against a stale read.
func (r *accountsRepo) DebitIfSufficient(tx *sql.Tx, userID int64, amount decimal.Decimal) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET balance = balance - $2
		WHERE user_id = $1
		  AND balance >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return ledger.ErrInsufficientFunds
	}

	return nil
}
