package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a user's position in one fund. It is a materialized projection
// of the transaction log: replaying all committed transactions for the
// (user, fund) pair through Apply reproduces it exactly.
type Holding struct {
	UserID      int64
	FundCode    string
	TotalShares decimal.Decimal // 4 dp, never negative
	AverageCost decimal.Decimal // weighted average purchase price, 4 dp
	MarketValue decimal.Decimal // TotalShares * latest net value, 2 dp
	LastUpdate  time.Time
}

// NewHolding returns an empty position for the pair.
func NewHolding(userID int64, fundCode string) Holding {
	return Holding{
		UserID:      userID,
		FundCode:    fundCode,
		TotalShares: decimal.Zero,
		AverageCost: decimal.Zero,
		MarketValue: decimal.Zero,
	}
}

// Apply reconciles one trade into the position.
//
// Purchase: shares are added and the average cost is re-blended as
// (oldCost*oldShares + amount) / newShares at 4 dp. When the position lands
// on exactly zero shares the cost resets to zero.
//
// Redeem: shares are subtracted and the average cost carries over unchanged.
// A redeem that would drive shares negative returns ErrShareUnderflow; the
// caller is expected to have validated sufficiency beforehand, so this is a
// programming-contract violation rather than a recoverable condition.
//
// In both cases the market value is re-marked at the given price (2 dp).
func (h *Holding) Apply(trade TradeType, shares, amount, price decimal.Decimal, now time.Time) error {
	switch trade {
	case TradePurchase:
		newShares := h.TotalShares.Add(shares)
		if newShares.IsPositive() {
			totalCost := h.AverageCost.Mul(h.TotalShares).Add(amount)
			h.AverageCost = totalCost.DivRound(newShares, ShareScale)
		} else {
			h.AverageCost = decimal.Zero
		}
		h.TotalShares = newShares

	case TradeRedeem:
		newShares := h.TotalShares.Sub(shares)
		if newShares.IsNegative() {
			return fmt.Errorf("%w: redeem %s from %s", ErrShareUnderflow,
				shares.String(), h.TotalShares.String())
		}
		if newShares.IsZero() {
			// Retained as a zero row; a later re-buy starts a fresh basis.
			h.AverageCost = decimal.Zero
		}
		h.TotalShares = newShares

	default:
		return fmt.Errorf("%w: unknown trade type %q", ErrInvalidInput, trade)
	}

	h.MarketValue = h.TotalShares.Mul(price).Round(CashScale)
	h.LastUpdate = now

	return nil
}
