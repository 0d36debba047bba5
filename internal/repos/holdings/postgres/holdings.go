package holdings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/apolyakov/fundledger/internal/ledger"
	domain "github.com/apolyakov/fundledger/internal/repos/holdings"
)

var _ domain.Holdings = (*holdingsRepo)(nil)

type holdingsRepo struct{ db *sql.DB }

func New(db *sql.DB) *holdingsRepo {
	return &holdingsRepo{db: db}
}

func (r *holdingsRepo) Get(ctx context.Context, userID int64, fundCode string) (ledger.Holding, error) {
	var h ledger.Holding

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, fund_code, total_shares, average_cost, market_value, last_update
		FROM user_holdings
		WHERE user_id = $1 AND fund_code = $2
	`, userID, fundCode).Scan(
		&h.UserID, &h.FundCode, &h.TotalShares, &h.AverageCost, &h.MarketValue, &h.LastUpdate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Holding{}, ledger.ErrHoldingNotFound
		}

		return ledger.Holding{}, fmt.Errorf("get holding: %w", err)
	}

	return h, nil
}

func (r *holdingsRepo) ListByUser(ctx context.Context, userID int64) ([]ledger.Holding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, fund_code, total_shares, average_cost, market_value, last_update
		FROM user_holdings
		WHERE user_id = $1
		ORDER BY market_value DESC, fund_code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []ledger.Holding
	for rows.Next() {
		var h ledger.Holding
		err = rows.Scan(&h.UserID, &h.FundCode, &h.TotalShares, &h.AverageCost, &h.MarketValue, &h.LastUpdate)
		if err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holdings: %w", err)
	}

	return out, nil
}

// LockOrCreate inserts a zero row if the pair has never traded, then takes a
// row lock. The insert-then-lock order makes the first purchase of a fund
// serialize the same way as every later trade.
func (r *holdingsRepo) LockOrCreate(tx *sql.Tx, userID int64, fundCode string) (ledger.Holding, error) {
	_, err := tx.Exec(`
		INSERT INTO user_holdings (user_id, fund_code, total_shares, average_cost, market_value, last_update)
		VALUES ($1, $2, 0, 0, 0, now())
		ON CONFLICT (user_id, fund_code) DO NOTHING
	`, userID, fundCode)
	if err != nil {
		return ledger.Holding{}, fmt.Errorf("ensure holding row: %w", err)
	}

	var h ledger.Holding
	err = tx.QueryRow(`
		SELECT user_id, fund_code, total_shares, average_cost, market_value, last_update
		FROM user_holdings
		WHERE user_id = $1 AND fund_code = $2
		FOR UPDATE
	`, userID, fundCode).Scan(
		&h.UserID, &h.FundCode, &h.TotalShares, &h.AverageCost, &h.MarketValue, &h.LastUpdate,
	)
	if err != nil {
		return ledger.Holding{}, fmt.Errorf("lock holding: %w", err)
	}

	return h, nil
}

func (r *holdingsRepo) Update(tx *sql.Tx, holding ledger.Holding) error {
	res, err := tx.Exec(`
		UPDATE user_holdings
		SET total_shares = $3,
		    average_cost = $4,
		    market_value = $5,
		    last_update  = $6
		WHERE user_id = $1 AND fund_code = $2
	`, holding.UserID, holding.FundCode,
		holding.TotalShares, holding.AverageCost, holding.MarketValue, holding.LastUpdate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" { // check_violation
			// The non-negative shares CHECK is the last line of defense;
			// the processor validates sufficiency before applying deltas.
			return fmt.Errorf("update holding: %w", ledger.ErrShareUnderflow)
		}

		return fmt.Errorf("update holding: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update holding: row vanished for user %d fund %s", holding.UserID, holding.FundCode)
	}

	return nil
}
