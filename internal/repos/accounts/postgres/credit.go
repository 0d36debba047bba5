package accounts

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

func (r *accountsRepo) Credit(tx *sql.Tx, userID int64, amount decimal.Decimal) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET balance = balance + $2
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}

	return nil
}
