// Package quotes defines the price quote source consumed by the trading
// processor. The feed itself (refresh cadence, staleness) is outside the
// engine; the engine only requires the latest known net value, and refuses
// to price a trade when none exists.
package quotes

import (
	"context"

	"github.com/apolyakov/fundledger/internal/ledger"
)

type Source interface {
	// Latest returns the newest net value for the fund, or
	// ledger.ErrQuoteUnavailable when the fund has none.
	Latest(ctx context.Context, fundCode string) (ledger.Quote, error)
}
