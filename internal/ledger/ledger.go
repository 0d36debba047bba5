// Package ledger holds the domain types and money math shared by the
// transaction processor and the persistence layer.
//
// Conventions (matching the upstream fund platform):
//   - cash amounts carry 2 decimal places,
//   - share quantities and per-share prices carry 4 decimal places,
//   - all rounding is half-up.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TradeType discriminates the two kinds of ledger entries.
type TradeType string

const (
	TradePurchase TradeType = "purchase"
	TradeRedeem   TradeType = "redeem"
)

// TxStatus is the lifecycle state of a transaction attempt. Only committed
// transactions are ever persisted; rejected attempts surface as errors and
// leave no trace in the log.
type TxStatus string

const (
	StatusCommitted TxStatus = "committed"
	StatusRejected  TxStatus = "rejected"
)

const (
	// ShareScale is the fractional precision of share quantities,
	// average cost and unit prices.
	ShareScale = 4
	// CashScale is the fractional precision of cash amounts.
	CashScale = 2
)

var (
	// ErrQuoteUnavailable means no current net value exists for the fund.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrInsufficientFunds means the purchase amount exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientShares means the redeem quantity exceeds the holding.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrAccountNotFound means the user has no cash account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrHoldingNotFound means the user holds no position in the fund.
	ErrHoldingNotFound = errors.New("holding not found")
	// ErrTransactionNotFound covers both a missing transaction and one
	// owned by another user, so callers cannot enumerate foreign ids.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidInput means the request failed basic validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrShareUnderflow is a contract violation: a share delta was applied
	// that would drive the position negative. The processor must validate
	// sufficiency before applying deltas, so this is never a business error.
	ErrShareUnderflow = errors.New("share underflow")
)

// Transaction is one committed ledger entry. Immutable once inserted;
// the ID is assigned by the store's sequence on commit.
type Transaction struct {
	ID                int64
	UserID            int64
	FundCode          string
	Type              TradeType
	Amount            decimal.Decimal // cash moved, 2 dp
	Shares            decimal.Decimal // quantity moved, 4 dp
	UnitPrice         decimal.Decimal // net value used to price the trade
	Status            TxStatus
	SettlementAccount string // opaque bank reference
	TransactionTime   time.Time
}

// Quote is the latest known net value of a fund, supplied by the price feed.
type Quote struct {
	FundCode      string          `json:"fundCode"`
	UnitNetValue  decimal.Decimal `json:"unitNetValue"`
	AccumNetValue decimal.Decimal `json:"accumNetValue"`
	EndDate       time.Time       `json:"endDate"`
}

// SharesFor prices a purchase: amount / price at share precision.
func SharesFor(amount, price decimal.Decimal) decimal.Decimal {
	return amount.DivRound(price, ShareScale)
}

// ProceedsFor prices a redemption: shares * price at cash precision.
func ProceedsFor(shares, price decimal.Decimal) decimal.Decimal {
	return shares.Mul(price).Round(CashScale)
}
