package trading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apolyakov/fundledger/internal/ledger"
	"github.com/apolyakov/fundledger/internal/metrics"
)

// Purchase runs the full buy flow:
//
//  1. Price the fund; no quote means no trade.
//  2. Compute shares = amount / net value (4 dp half-up).
//  3. In one DB transaction: conditional balance debit, append the committed
//     record, reconcile the holding under a row lock, read back the balance.
//
// The debit is the first mutation and it is guarded, so a rejected purchase
// leaves no side effects; any later failure rolls the debit back.
func (p *Processor) Purchase(ctx context.Context, req PurchaseRequest) (*TradeResult, error) {
	start := time.Now()

	res, err := p.purchase(ctx, req)
	observe(ledger.TradePurchase, start, err)

	if err != nil {
		return nil, err
	}

	slog.Info("purchase committed",
		"user_id", req.UserID,
		"fund_code", req.FundCode,
		"transaction_id", res.Transaction.ID,
		"amount", res.Transaction.Amount.String(),
		"shares", res.Transaction.Shares.String(),
	)

	return res, nil
}

func (p *Processor) purchase(ctx context.Context, req PurchaseRequest) (*TradeResult, error) {
	if err := validatePurchase(req); err != nil {
		return nil, err
	}

	quote, err := p.quotes.Latest(ctx, req.FundCode)
	if err != nil {
		return nil, fmt.Errorf("price purchase: %w", err)
	}
	if !quote.UnitNetValue.IsPositive() {
		return nil, fmt.Errorf("price purchase: %w", ledger.ErrQuoteUnavailable)
	}

	amount := req.Amount.Round(ledger.CashScale)
	shares := ledger.SharesFor(amount, quote.UnitNetValue)
	now := p.now()

	txn := ledger.Transaction{
		UserID:            req.UserID,
		FundCode:          req.FundCode,
		Type:              ledger.TradePurchase,
		Amount:            amount,
		Shares:            shares,
		UnitPrice:         quote.UnitNetValue,
		Status:            ledger.StatusCommitted,
		SettlementAccount: req.SettlementAccount,
		TransactionTime:   now,
	}

	var result TradeResult

	err = p.runTx(ctx, func(tx *sql.Tx) error {
		err := p.accounts.Exists(tx, req.UserID)
		if err != nil {
			return fmt.Errorf("check account: %w", err)
		}

		err = p.accounts.DebitIfSufficient(tx, req.UserID, amount)
		if err != nil {
			return fmt.Errorf("debit: %w", err)
		}

		txn.ID, err = p.txns.Insert(tx, txn)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		holding, err := p.holdings.LockOrCreate(tx, req.UserID, req.FundCode)
		if err != nil {
			return fmt.Errorf("lock holding: %w", err)
		}

		err = holding.Apply(ledger.TradePurchase, shares, amount, quote.UnitNetValue, now)
		if err != nil {
			return fmt.Errorf("reconcile holding: %w", err)
		}

		err = p.holdings.Update(tx, holding)
		if err != nil {
			return fmt.Errorf("persist holding: %w", err)
		}

		result.NewBalance, err = p.accounts.BalanceTx(tx, req.UserID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		result.Transaction = txn

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}

	return &result, nil
}

// Redeem runs the full sell flow:
//
//  1. Validate the redeem quantity against the current holding — share
//     sufficiency is the binding precondition, checked before pricing.
//  2. Price the fund; compute proceeds = shares * net value (2 dp half-up).
//  3. In one DB transaction: re-validate under the holding row lock, append
//     the committed record, reconcile the holding, credit the proceeds, read
//     back the balance.
//
// The balance credit comes last and sits inside the transaction, so a
// failure anywhere undoes it together with the log and holding writes.
func (p *Processor) Redeem(ctx context.Context, req RedeemRequest) (*TradeResult, error) {
	start := time.Now()

	res, err := p.redeem(ctx, req)
	observe(ledger.TradeRedeem, start, err)

	if err != nil {
		return nil, err
	}

	slog.Info("redeem committed",
		"user_id", req.UserID,
		"fund_code", req.FundCode,
		"transaction_id", res.Transaction.ID,
		"amount", res.Transaction.Amount.String(),
		"shares", res.Transaction.Shares.String(),
	)

	return res, nil
}

func (p *Processor) redeem(ctx context.Context, req RedeemRequest) (*TradeResult, error) {
	if err := validateRedeem(req); err != nil {
		return nil, err
	}

	// Unlocked pre-check so an obviously oversized redeem is rejected before
	// any pricing work. The authoritative check runs under the row lock.
	held, err := p.holdings.Get(ctx, req.UserID, req.FundCode)
	if err != nil {
		if errors.Is(err, ledger.ErrHoldingNotFound) {
			return nil, fmt.Errorf("validate redeem: %w", ledger.ErrInsufficientShares)
		}

		return nil, fmt.Errorf("validate redeem: %w", err)
	}
	if req.Shares.GreaterThan(held.TotalShares) {
		return nil, fmt.Errorf("validate redeem: %w", ledger.ErrInsufficientShares)
	}

	quote, err := p.quotes.Latest(ctx, req.FundCode)
	if err != nil {
		return nil, fmt.Errorf("price redeem: %w", err)
	}
	if !quote.UnitNetValue.IsPositive() {
		return nil, fmt.Errorf("price redeem: %w", ledger.ErrQuoteUnavailable)
	}

	settlement, err := p.settlementAccountFor(ctx, req)
	if err != nil {
		return nil, err
	}

	shares := req.Shares.Round(ledger.ShareScale)
	amount := ledger.ProceedsFor(shares, quote.UnitNetValue)
	now := p.now()

	txn := ledger.Transaction{
		UserID:            req.UserID,
		FundCode:          req.FundCode,
		Type:              ledger.TradeRedeem,
		Amount:            amount,
		Shares:            shares,
		UnitPrice:         quote.UnitNetValue,
		Status:            ledger.StatusCommitted,
		SettlementAccount: settlement,
		TransactionTime:   now,
	}

	var result TradeResult

	err = p.runTx(ctx, func(tx *sql.Tx) error {
		holding, err := p.holdings.LockOrCreate(tx, req.UserID, req.FundCode)
		if err != nil {
			return fmt.Errorf("lock holding: %w", err)
		}

		// A concurrent redeem may have shrunk the position since the
		// pre-check; re-validate against the locked row.
		if shares.GreaterThan(holding.TotalShares) {
			return fmt.Errorf("locked re-check: %w", ledger.ErrInsufficientShares)
		}

		txn.ID, err = p.txns.Insert(tx, txn)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		err = holding.Apply(ledger.TradeRedeem, shares, amount, quote.UnitNetValue, now)
		if err != nil {
			return fmt.Errorf("reconcile holding: %w", err)
		}

		err = p.holdings.Update(tx, holding)
		if err != nil {
			return fmt.Errorf("persist holding: %w", err)
		}

		err = p.accounts.Credit(tx, req.UserID, amount)
		if err != nil {
			return fmt.Errorf("credit proceeds: %w", err)
		}

		result.NewBalance, err = p.accounts.BalanceTx(tx, req.UserID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		result.Transaction = txn

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}

	return &result, nil
}

// settlementAccountFor resolves where redemption proceeds settle: the account
// named in the request, or the one used by the latest purchase of this fund.
func (p *Processor) settlementAccountFor(ctx context.Context, req RedeemRequest) (string, error) {
	if req.SettlementAccount != "" {
		return req.SettlementAccount, nil
	}

	latest, err := p.txns.LatestPurchase(ctx, req.UserID, req.FundCode)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return "", fmt.Errorf("%w: no settlement account and no prior purchase for fund %s",
				ledger.ErrInvalidInput, req.FundCode)
		}

		return "", fmt.Errorf("default settlement account: %w", err)
	}

	return latest.SettlementAccount, nil
}

func validatePurchase(req PurchaseRequest) error {
	switch {
	case req.UserID <= 0:
		return fmt.Errorf("%w: userId must be positive", ledger.ErrInvalidInput)
	case req.FundCode == "":
		return fmt.Errorf("%w: fundCode required", ledger.ErrInvalidInput)
	case !req.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be > 0", ledger.ErrInvalidInput)
	case req.SettlementAccount == "":
		return fmt.Errorf("%w: settlementAccount required", ledger.ErrInvalidInput)
	}

	return nil
}

func validateRedeem(req RedeemRequest) error {
	switch {
	case req.UserID <= 0:
		return fmt.Errorf("%w: userId must be positive", ledger.ErrInvalidInput)
	case req.FundCode == "":
		return fmt.Errorf("%w: fundCode required", ledger.ErrInvalidInput)
	case !req.Shares.IsPositive():
		return fmt.Errorf("%w: shares must be > 0", ledger.ErrInvalidInput)
	}

	return nil
}

// observe records the trade outcome: committed, rejected (business rule) or
// error (storage/internal).
func observe(trade ledger.TradeType, start time.Time, err error) {
	status := string(ledger.StatusCommitted)

	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrQuoteUnavailable),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrInvalidInput):
		status = string(ledger.StatusRejected)
	default:
		status = "error"
	}

	metrics.Trades.WithLabelValues(string(trade), status).Inc()
	metrics.TradeDuration.WithLabelValues(string(trade)).Observe(time.Since(start).Seconds())
}
