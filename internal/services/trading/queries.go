package trading

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/apolyakov/fundledger/internal/ledger"
)

// Read-side queries used by reporting callers. None of these take locks.

func (p *Processor) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	balance, err := p.accounts.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (p *Processor) ListTransactions(ctx context.Context, userID int64) ([]ledger.Transaction, error) {
	txns, err := p.txns.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return txns, nil
}

func (p *Processor) GetTransaction(ctx context.Context, id, userID int64) (ledger.Transaction, error) {
	txn, err := p.txns.GetByID(ctx, id, userID)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	return txn, nil
}

func (p *Processor) GetHolding(ctx context.Context, userID int64, fundCode string) (ledger.Holding, error) {
	holding, err := p.holdings.Get(ctx, userID, fundCode)
	if err != nil {
		return ledger.Holding{}, fmt.Errorf("get holding: %w", err)
	}

	return holding, nil
}

func (p *Processor) ListHoldings(ctx context.Context, userID int64) ([]ledger.Holding, error) {
	list, err := p.holdings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}

	return list, nil
}

func (p *Processor) GetQuote(ctx context.Context, fundCode string) (ledger.Quote, error) {
	quote, err := p.quotes.Latest(ctx, fundCode)
	if err != nil {
		return ledger.Quote{}, fmt.Errorf("get quote: %w", err)
	}

	return quote, nil
}
