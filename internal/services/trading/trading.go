// Package trading orchestrates fund purchases and redemptions: it prices a
// request against the latest net value, mutates the cash balance, appends the
// immutable transaction record and reconciles the holding — all inside one
// database transaction.
package trading

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/apolyakov/fundledger/internal/infra/pgutils"
	"github.com/apolyakov/fundledger/internal/ledger"
	"github.com/apolyakov/fundledger/internal/repos/accounts"
	pgaccounts "github.com/apolyakov/fundledger/internal/repos/accounts/postgres"
	"github.com/apolyakov/fundledger/internal/repos/holdings"
	pgholdings "github.com/apolyakov/fundledger/internal/repos/holdings/postgres"
	"github.com/apolyakov/fundledger/internal/repos/quotes"
	"github.com/apolyakov/fundledger/internal/repos/transactions"
	pgtransactions "github.com/apolyakov/fundledger/internal/repos/transactions/postgres"
)

// PurchaseRequest asks to buy amount worth of a fund at the current net value.
type PurchaseRequest struct {
	UserID            int64
	FundCode          string
	Amount            decimal.Decimal // cash to invest, 2 dp
	SettlementAccount string          // bank reference, opaque to the engine
}

// RedeemRequest asks to sell a share quantity at the current net value.
// SettlementAccount may be empty; it then defaults to the account used by
// the latest purchase of the same fund.
type RedeemRequest struct {
	UserID            int64
	FundCode          string
	Shares            decimal.Decimal // quantity to redeem, 4 dp
	SettlementAccount string
}

// TradeResult reports a committed trade back to the caller.
type TradeResult struct {
	Transaction ledger.Transaction
	NewBalance  decimal.Decimal
}

// Processor is the transaction processor over the durable stores.
type Processor struct {
	db       *sql.DB
	accounts accounts.Accounts
	holdings holdings.Holdings
	txns     transactions.Transactions
	quotes   quotes.Source

	// Seams for unit tests; production wiring never overrides them.
	runTx func(ctx context.Context, fn func(*sql.Tx) error) error
	now   func() time.Time
}

// txAttempts bounds deadlock replays of one trade transaction.
const txAttempts = 3

// New wires a Processor over Postgres stores and the given quote source
// (plain Postgres, or the Redis-cached decorator).
func New(db *sql.DB, quoteSrc quotes.Source) *Processor {
	return &Processor{
		db:       db,
		accounts: pgaccounts.New(db),
		holdings: pgholdings.New(db),
		txns:     pgtransactions.New(db),
		quotes:   quoteSrc,
		runTx: func(ctx context.Context, fn func(*sql.Tx) error) error {
			return retryOnDeadlock(func() error {
				return pgutils.WithTx(ctx, db, fn)
			})
		},
		now: time.Now,
	}
}

// retryOnDeadlock replays run while it fails with a deadlock abort. Purchase
// locks the account row before the holding row and redeem the other way
// around, so concurrent opposite trades on one (user, fund) can deadlock;
// Postgres kills one with a full rollback and the replay starts clean.
func retryOnDeadlock(run func() error) error {
	var err error

	for attempt := 0; attempt < txAttempts; attempt++ {
		err = run()
		if err == nil || !pgutils.IsDeadlock(err) {
			return err
		}
	}

	return err
}
