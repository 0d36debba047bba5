package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/apolyakov/fundledger/internal/ledger"
	domain "github.com/apolyakov/fundledger/internal/repos/transactions"
)

var _ domain.Transactions = (*transactionsRepo)(nil)

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

const columns = `id, user_id, fund_code, trade_type, amount, shares, unit_price, status, settlement_account, transaction_time`

func (r *transactionsRepo) Insert(tx *sql.Tx, txn ledger.Transaction) (int64, error) {
	var id int64

	err := tx.QueryRow(`
		INSERT INTO user_transactions
			(user_id, fund_code, trade_type, amount, shares, unit_price, status, settlement_account, transaction_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		txn.UserID, txn.FundCode, string(txn.Type),
		txn.Amount, txn.Shares, txn.UnitPrice,
		string(txn.Status), txn.SettlementAccount, txn.TransactionTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	return id, nil
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID int64) ([]ledger.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM user_transactions
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}

func (r *transactionsRepo) GetByID(ctx context.Context, id, userID int64) (ledger.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+columns+`
		FROM user_transactions
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Absent and foreign rows are indistinguishable on purpose.
			return ledger.Transaction{}, ledger.ErrTransactionNotFound
		}

		return ledger.Transaction{}, err
	}

	return txn, nil
}

func (r *transactionsRepo) LatestPurchase(ctx context.Context, userID int64, fundCode string) (ledger.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+columns+`
		FROM user_transactions
		WHERE user_id = $1 AND fund_code = $2 AND trade_type = $3
		ORDER BY id DESC
		LIMIT 1
	`, userID, fundCode, string(ledger.TradePurchase))

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Transaction{}, ledger.ErrTransactionNotFound
		}

		return ledger.Transaction{}, err
	}

	return txn, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (ledger.Transaction, error) {
	var (
		txn    ledger.Transaction
		ttype  string
		status string
	)

	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.FundCode, &ttype,
		&txn.Amount, &txn.Shares, &txn.UnitPrice,
		&status, &txn.SettlementAccount, &txn.TransactionTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Transaction{}, err
		}

		return ledger.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	txn.Type = ledger.TradeType(ttype)
	txn.Status = ledger.TxStatus(status)

	return txn, nil
}
