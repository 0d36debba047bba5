package quotes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/apolyakov/fundledger/internal/ledger"
	"github.com/apolyakov/fundledger/internal/metrics"
	domain "github.com/apolyakov/fundledger/internal/repos/quotes"
)

var _ domain.Source = (*quotesRepo)(nil)

type quotesRepo struct{ db *sql.DB }

func New(db *sql.DB) *quotesRepo {
	return &quotesRepo{db: db}
}

// Latest picks the newest published net value for the fund. end_date is the
// valuation date supplied by the feed; seq breaks ties when a date is
// republished.
func (r *quotesRepo) Latest(ctx context.Context, fundCode string) (ledger.Quote, error) {
	var (
		q     ledger.Quote
		unit  decimal.NullDecimal
		accum decimal.NullDecimal
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT fund_code, unit_net_value, accum_net_value, end_date
		FROM fund_net_values
		WHERE fund_code = $1
		ORDER BY end_date DESC, seq DESC
		LIMIT 1
	`, fundCode).Scan(&q.FundCode, &unit, &accum, &q.EndDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.QuoteLookups.WithLabelValues("postgres", "miss").Inc()
			return ledger.Quote{}, ledger.ErrQuoteUnavailable
		}

		metrics.QuoteLookups.WithLabelValues("postgres", "error").Inc()
		return ledger.Quote{}, fmt.Errorf("latest quote: %w", err)
	}

	// A row with a NULL or non-positive net value cannot price a trade
	// either; a zero price would divide shares by zero downstream.
	if !unit.Valid || !unit.Decimal.IsPositive() {
		metrics.QuoteLookups.WithLabelValues("postgres", "miss").Inc()
		return ledger.Quote{}, ledger.ErrQuoteUnavailable
	}

	q.UnitNetValue = unit.Decimal
	if accum.Valid {
		q.AccumNetValue = accum.Decimal
	}

	metrics.QuoteLookups.WithLabelValues("postgres", "hit").Inc()

	return q, nil
}
