package trading

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/apolyakov/fundledger/internal/ledger"
)

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockAccounts) Exists(tx *sql.Tx, userID int64) error {
	return m.Called(tx, userID).Error(0)
}

func (m *mockAccounts) BalanceTx(tx *sql.Tx, userID int64) (decimal.Decimal, error) {
	args := m.Called(tx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockAccounts) DebitIfSufficient(tx *sql.Tx, userID int64, amount decimal.Decimal) error {
	return m.Called(tx, userID, amount).Error(0)
}

func (m *mockAccounts) Credit(tx *sql.Tx, userID int64, amount decimal.Decimal) error {
	return m.Called(tx, userID, amount).Error(0)
}

type mockHoldings struct{ mock.Mock }

func (m *mockHoldings) Get(ctx context.Context, userID int64, fundCode string) (ledger.Holding, error) {
	args := m.Called(ctx, userID, fundCode)
	return args.Get(0).(ledger.Holding), args.Error(1)
}

func (m *mockHoldings) ListByUser(ctx context.Context, userID int64) ([]ledger.Holding, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]ledger.Holding), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHoldings) LockOrCreate(tx *sql.Tx, userID int64, fundCode string) (ledger.Holding, error) {
	args := m.Called(tx, userID, fundCode)
	return args.Get(0).(ledger.Holding), args.Error(1)
}

func (m *mockHoldings) Update(tx *sql.Tx, holding ledger.Holding) error {
	return m.Called(tx, holding).Error(0)
}

type mockTransactions struct{ mock.Mock }

func (m *mockTransactions) Insert(tx *sql.Tx, txn ledger.Transaction) (int64, error) {
	args := m.Called(tx, txn)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTransactions) ListByUser(ctx context.Context, userID int64) ([]ledger.Transaction, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]ledger.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactions) GetByID(ctx context.Context, id, userID int64) (ledger.Transaction, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(ledger.Transaction), args.Error(1)
}

func (m *mockTransactions) LatestPurchase(ctx context.Context, userID int64, fundCode string) (ledger.Transaction, error) {
	args := m.Called(ctx, userID, fundCode)
	return args.Get(0).(ledger.Transaction), args.Error(1)
}

type mockQuotes struct{ mock.Mock }

func (m *mockQuotes) Latest(ctx context.Context, fundCode string) (ledger.Quote, error) {
	args := m.Called(ctx, fundCode)
	return args.Get(0).(ledger.Quote), args.Error(1)
}
