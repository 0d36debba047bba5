package trading

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apolyakov/fundledger/internal/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var fixedNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

type procMocks struct {
	accounts *mockAccounts
	holdings *mockHoldings
	txns     *mockTransactions
	quotes   *mockQuotes
}

// newTestProcessor builds a Processor whose transaction boundary is a plain
// passthrough, so the orchestration can be exercised without a database.
func newTestProcessor(t *testing.T) (*Processor, *procMocks) {
	t.Helper()

	m := &procMocks{
		accounts: &mockAccounts{},
		holdings: &mockHoldings{},
		txns:     &mockTransactions{},
		quotes:   &mockQuotes{},
	}

	p := &Processor{
		accounts: m.accounts,
		holdings: m.holdings,
		txns:     m.txns,
		quotes:   m.quotes,
		runTx: func(_ context.Context, fn func(*sql.Tx) error) error {
			return fn(nil)
		},
		now: func() time.Time { return fixedNow },
	}

	t.Cleanup(func() {
		m.accounts.AssertExpectations(t)
		m.holdings.AssertExpectations(t)
		m.txns.AssertExpectations(t)
		m.quotes.AssertExpectations(t)
	})

	return p, m
}

func quoteFor(fundCode, unit string) ledger.Quote {
	return ledger.Quote{
		FundCode:     fundCode,
		UnitNetValue: dec(unit),
		EndDate:      fixedNow.Add(-24 * time.Hour),
	}
}

func freshHolding(userID int64, fundCode string) ledger.Holding {
	return ledger.Holding{
		UserID:      userID,
		FundCode:    fundCode,
		TotalShares: decimal.Zero,
		AverageCost: decimal.Zero,
		MarketValue: decimal.Zero,
		LastUpdate:  fixedNow.Add(-time.Hour),
	}
}

func TestPurchase_HappyPath(t *testing.T) {
	p, m := newTestProcessor(t)

	req := PurchaseRequest{
		UserID:            1,
		FundCode:          "000001",
		Amount:            dec("1000.00"),
		SettlementAccount: "622908xx",
	}

	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "2.0000"), nil)
	m.accounts.On("Exists", mock.Anything, int64(1)).Return(nil)
	m.accounts.On("DebitIfSufficient", mock.Anything, int64(1), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(dec("1000.00"))
	})).Return(nil)

	m.txns.On("Insert", mock.Anything, mock.MatchedBy(func(txn ledger.Transaction) bool {
		return txn.UserID == 1 &&
			txn.FundCode == "000001" &&
			txn.Type == ledger.TradePurchase &&
			txn.Status == ledger.StatusCommitted &&
			txn.Amount.Equal(dec("1000.00")) &&
			txn.Shares.Equal(dec("500.0000")) &&
			txn.UnitPrice.Equal(dec("2.0000")) &&
			txn.SettlementAccount == "622908xx" &&
			txn.TransactionTime.Equal(fixedNow)
	})).Return(int64(42), nil)

	m.holdings.On("LockOrCreate", mock.Anything, int64(1), "000001").Return(freshHolding(1, "000001"), nil)
	m.holdings.On("Update", mock.Anything, mock.MatchedBy(func(h ledger.Holding) bool {
		return h.TotalShares.Equal(dec("500.0000")) &&
			h.AverageCost.Equal(dec("2.0000")) &&
			h.MarketValue.Equal(dec("1000.00")) &&
			h.LastUpdate.Equal(fixedNow)
	})).Return(nil)

	m.accounts.On("BalanceTx", mock.Anything, int64(1)).Return(dec("9000.00"), nil)

	res, err := p.Purchase(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(42), res.Transaction.ID)
	assert.True(t, res.Transaction.Shares.Equal(dec("500.0000")))
	assert.True(t, res.NewBalance.Equal(dec("9000.00")))
}

func TestPurchase_SharesRoundedHalfUp(t *testing.T) {
	p, m := newTestProcessor(t)

	// 100.00 / 1.0620 = 94.16195... -> 94.1620
	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "1.0620"), nil)
	m.accounts.On("Exists", mock.Anything, int64(1)).Return(nil)
	m.accounts.On("DebitIfSufficient", mock.Anything, int64(1), mock.Anything).Return(nil)
	m.txns.On("Insert", mock.Anything, mock.MatchedBy(func(txn ledger.Transaction) bool {
		return txn.Shares.Equal(dec("94.1620"))
	})).Return(int64(7), nil)
	m.holdings.On("LockOrCreate", mock.Anything, int64(1), "000001").Return(freshHolding(1, "000001"), nil)
	m.holdings.On("Update", mock.Anything, mock.Anything).Return(nil)
	m.accounts.On("BalanceTx", mock.Anything, int64(1)).Return(dec("0.00"), nil)

	res, err := p.Purchase(context.Background(), PurchaseRequest{
		UserID: 1, FundCode: "000001", Amount: dec("100.00"), SettlementAccount: "a",
	})
	require.NoError(t, err)
	assert.True(t, res.Transaction.Shares.Equal(dec("94.1620")))
}

func TestPurchase_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  PurchaseRequest
	}{
		{"zero_user", PurchaseRequest{UserID: 0, FundCode: "000001", Amount: dec("1"), SettlementAccount: "a"}},
		{"empty_fund", PurchaseRequest{UserID: 1, FundCode: "", Amount: dec("1"), SettlementAccount: "a"}},
		{"zero_amount", PurchaseRequest{UserID: 1, FundCode: "000001", Amount: decimal.Zero, SettlementAccount: "a"}},
		{"negative_amount", PurchaseRequest{UserID: 1, FundCode: "000001", Amount: dec("-5"), SettlementAccount: "a"}},
		{"no_settlement_account", PurchaseRequest{UserID: 1, FundCode: "000001", Amount: dec("1"), SettlementAccount: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProcessor(t)

			// No quote lookup and no transaction on invalid input.
			_, err := p.Purchase(context.Background(), tt.req)
			require.ErrorIs(t, err, ledger.ErrInvalidInput)
		})
	}
}

func TestPurchase_QuoteUnavailable(t *testing.T) {
	p, m := newTestProcessor(t)

	m.quotes.On("Latest", mock.Anything, "519066").Return(ledger.Quote{}, ledger.ErrQuoteUnavailable)

	_, err := p.Purchase(context.Background(), PurchaseRequest{
		UserID: 1, FundCode: "519066", Amount: dec("100.00"), SettlementAccount: "a",
	})
	require.ErrorIs(t, err, ledger.ErrQuoteUnavailable)
}

func TestPurchase_ZeroPriceQuoteRejected(t *testing.T) {
	p, m := newTestProcessor(t)

	// A feed defect (zero net value slipping past the source) must reject
	// the trade, not divide the amount by zero.
	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "0.0000"), nil)

	_, err := p.Purchase(context.Background(), PurchaseRequest{
		UserID: 1, FundCode: "000001", Amount: dec("100.00"), SettlementAccount: "a",
	})
	require.ErrorIs(t, err, ledger.ErrQuoteUnavailable)
}

func TestRedeem_ZeroPriceQuoteRejected(t *testing.T) {
	p, m := newTestProcessor(t)

	m.holdings.On("Get", mock.Anything, int64(1), "000001").Return(ledger.Holding{
		UserID: 1, FundCode: "000001", TotalShares: dec("100.0000"),
	}, nil)
	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "0.0000"), nil)

	_, err := p.Redeem(context.Background(), RedeemRequest{
		UserID: 1, FundCode: "000001", Shares: dec("50.0000"), SettlementAccount: "a",
	})
	require.ErrorIs(t, err, ledger.ErrQuoteUnavailable)
}

func TestPurchase_InsufficientFunds(t *testing.T) {
	p, m := newTestProcessor(t)

	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "2.0000"), nil)
	m.accounts.On("Exists", mock.Anything, int64(1)).Return(nil)
	m.accounts.On("DebitIfSufficient", mock.Anything, int64(1), mock.Anything).
		Return(ledger.ErrInsufficientFunds)

	// Nothing past the debit runs: no insert, no holding mutation.
	_, err := p.Purchase(context.Background(), PurchaseRequest{
		UserID: 1, FundCode: "000001", Amount: dec("100.00"), SettlementAccount: "a",
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestPurchase_AccountMissing(t *testing.T) {
	p, m := newTestProcessor(t)

	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "2.0000"), nil)
	m.accounts.On("Exists", mock.Anything, int64(404)).Return(ledger.ErrAccountNotFound)

	_, err := p.Purchase(context.Background(), PurchaseRequest{
		UserID: 404, FundCode: "000001", Amount: dec("100.00"), SettlementAccount: "a",
	})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestRedeem_HappyPath(t *testing.T) {
	p, m := newTestProcessor(t)

	held := ledger.Holding{
		UserID:      1,
		FundCode:    "000001",
		TotalShares: dec("500.0000"),
		AverageCost: dec("2.0000"),
		MarketValue: dec("1000.00"),
		LastUpdate:  fixedNow.Add(-time.Hour),
	}

	m.holdings.On("Get", mock.Anything, int64(1), "000001").Return(held, nil)
	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "2.1000"), nil)
	m.holdings.On("LockOrCreate", mock.Anything, int64(1), "000001").Return(held, nil)

	// Proceeds: 200.0000 * 2.1000 = 420.00
	m.txns.On("Insert", mock.Anything, mock.MatchedBy(func(txn ledger.Transaction) bool {
		return txn.Type == ledger.TradeRedeem &&
			txn.Shares.Equal(dec("200.0000")) &&
			txn.Amount.Equal(dec("420.00")) &&
			txn.UnitPrice.Equal(dec("2.1000")) &&
			txn.SettlementAccount == "payout-acct"
	})).Return(int64(77), nil)

	// Redeem keeps the average cost.
	m.holdings.On("Update", mock.Anything, mock.MatchedBy(func(h ledger.Holding) bool {
		return h.TotalShares.Equal(dec("300.0000")) &&
			h.AverageCost.Equal(dec("2.0000")) &&
			h.MarketValue.Equal(dec("630.00"))
	})).Return(nil)

	m.accounts.On("Credit", mock.Anything, int64(1), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(dec("420.00"))
	})).Return(nil)
	m.accounts.On("BalanceTx", mock.Anything, int64(1)).Return(dec("1420.00"), nil)

	res, err := p.Redeem(context.Background(), RedeemRequest{
		UserID: 1, FundCode: "000001", Shares: dec("200.0000"), SettlementAccount: "payout-acct",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(77), res.Transaction.ID)
	assert.True(t, res.Transaction.Amount.Equal(dec("420.00")))
	assert.True(t, res.NewBalance.Equal(dec("1420.00")))
}

func TestRedeem_DefaultsSettlementFromLatestPurchase(t *testing.T) {
	p, m := newTestProcessor(t)

	held := ledger.Holding{
		UserID: 1, FundCode: "000001",
		TotalShares: dec("100.0000"), AverageCost: dec("1.0000"),
	}

	m.holdings.On("Get", mock.Anything, int64(1), "000001").Return(held, nil)
	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "1.0000"), nil)
	m.txns.On("LatestPurchase", mock.Anything, int64(1), "000001").Return(ledger.Transaction{
		SettlementAccount: "from-purchase",
	}, nil)
	m.holdings.On("LockOrCreate", mock.Anything, int64(1), "000001").Return(held, nil)
	m.txns.On("Insert", mock.Anything, mock.MatchedBy(func(txn ledger.Transaction) bool {
		return txn.SettlementAccount == "from-purchase"
	})).Return(int64(5), nil)
	m.holdings.On("Update", mock.Anything, mock.Anything).Return(nil)
	m.accounts.On("Credit", mock.Anything, int64(1), mock.Anything).Return(nil)
	m.accounts.On("BalanceTx", mock.Anything, int64(1)).Return(dec("100.00"), nil)

	res, err := p.Redeem(context.Background(), RedeemRequest{
		UserID: 1, FundCode: "000001", Shares: dec("50.0000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "from-purchase", res.Transaction.SettlementAccount)
}

func TestRedeem_NoSettlementAndNoPriorPurchase(t *testing.T) {
	p, m := newTestProcessor(t)

	held := ledger.Holding{
		UserID: 1, FundCode: "000001", TotalShares: dec("100.0000"),
	}

	m.holdings.On("Get", mock.Anything, int64(1), "000001").Return(held, nil)
	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "1.0000"), nil)
	m.txns.On("LatestPurchase", mock.Anything, int64(1), "000001").
		Return(ledger.Transaction{}, ledger.ErrTransactionNotFound)

	_, err := p.Redeem(context.Background(), RedeemRequest{
		UserID: 1, FundCode: "000001", Shares: dec("50.0000"),
	})
	require.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestRedeem_InsufficientShares_PreCheck(t *testing.T) {
	p, m := newTestProcessor(t)

	held := ledger.Holding{
		UserID: 1, FundCode: "000001", TotalShares: dec("10.0000"),
	}

	// Rejected before any pricing: no quote lookup expected.
	m.holdings.On("Get", mock.Anything, int64(1), "000001").Return(held, nil)

	_, err := p.Redeem(context.Background(), RedeemRequest{
		UserID: 1, FundCode: "000001", Shares: dec("10.0001"), SettlementAccount: "a",
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientShares)
}

func TestRedeem_HoldingMissingMeansInsufficient(t *testing.T) {
	p, m := newTestProcessor(t)

	m.holdings.On("Get", mock.Anything, int64(1), "000001").
		Return(ledger.Holding{}, ledger.ErrHoldingNotFound)

	_, err := p.Redeem(context.Background(), RedeemRequest{
		UserID: 1, FundCode: "000001", Shares: dec("1.0000"), SettlementAccount: "a",
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientShares)
}

func TestRedeem_InsufficientShares_LockedRecheck(t *testing.T) {
	p, m := newTestProcessor(t)

	// Pre-check passes against a stale read; the locked row has fewer shares.
	m.holdings.On("Get", mock.Anything, int64(1), "000001").Return(ledger.Holding{
		UserID: 1, FundCode: "000001", TotalShares: dec("100.0000"),
	}, nil)
	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "1.0000"), nil)
	m.holdings.On("LockOrCreate", mock.Anything, int64(1), "000001").Return(ledger.Holding{
		UserID: 1, FundCode: "000001", TotalShares: dec("40.0000"),
	}, nil)

	_, err := p.Redeem(context.Background(), RedeemRequest{
		UserID: 1, FundCode: "000001", Shares: dec("50.0000"), SettlementAccount: "a",
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientShares)
}

func TestRedeem_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  RedeemRequest
	}{
		{"zero_user", RedeemRequest{UserID: 0, FundCode: "000001", Shares: dec("1")}},
		{"empty_fund", RedeemRequest{UserID: 1, FundCode: "", Shares: dec("1")}},
		{"zero_shares", RedeemRequest{UserID: 1, FundCode: "000001", Shares: decimal.Zero}},
		{"negative_shares", RedeemRequest{UserID: 1, FundCode: "000001", Shares: dec("-1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProcessor(t)

			_, err := p.Redeem(context.Background(), tt.req)
			require.ErrorIs(t, err, ledger.ErrInvalidInput)
		})
	}
}

func TestRedeem_ToZeroResetsCost(t *testing.T) {
	p, m := newTestProcessor(t)

	held := ledger.Holding{
		UserID: 1, FundCode: "000001",
		TotalShares: dec("100.0000"), AverageCost: dec("2.5000"),
	}

	m.holdings.On("Get", mock.Anything, int64(1), "000001").Return(held, nil)
	m.quotes.On("Latest", mock.Anything, "000001").Return(quoteFor("000001", "3.0000"), nil)
	m.holdings.On("LockOrCreate", mock.Anything, int64(1), "000001").Return(held, nil)
	m.txns.On("Insert", mock.Anything, mock.Anything).Return(int64(9), nil)

	m.holdings.On("Update", mock.Anything, mock.MatchedBy(func(h ledger.Holding) bool {
		return h.TotalShares.IsZero() && h.AverageCost.IsZero() && h.MarketValue.IsZero()
	})).Return(nil)

	m.accounts.On("Credit", mock.Anything, int64(1), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(dec("300.00"))
	})).Return(nil)
	m.accounts.On("BalanceTx", mock.Anything, int64(1)).Return(dec("300.00"), nil)

	_, err := p.Redeem(context.Background(), RedeemRequest{
		UserID: 1, FundCode: "000001", Shares: dec("100.0000"), SettlementAccount: "a",
	})
	require.NoError(t, err)
}
