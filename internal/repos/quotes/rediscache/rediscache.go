// Package rediscache wraps a quote source with a read-through Redis cache.
// Caching is a feed-side concern: the engine's semantics are unchanged, and
// any Redis failure falls through to the underlying source so the read path
// never depends on the cache being up.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apolyakov/fundledger/internal/ledger"
	"github.com/apolyakov/fundledger/internal/metrics"
	"github.com/apolyakov/fundledger/internal/repos/quotes"
)

var _ quotes.Source = (*Source)(nil)

type Source struct {
	client *redis.Client
	next   quotes.Source
	ttl    time.Duration
}

func New(client *redis.Client, next quotes.Source, ttl time.Duration) *Source {
	return &Source{client: client, next: next, ttl: ttl}
}

func (s *Source) Latest(ctx context.Context, fundCode string) (ledger.Quote, error) {
	key := quoteKey(fundCode)

	data, err := s.client.Get(ctx, key).Result()
	if err == nil {
		var q ledger.Quote
		if uerr := json.Unmarshal([]byte(data), &q); uerr == nil {
			metrics.QuoteLookups.WithLabelValues("redis", "hit").Inc()
			return q, nil
		}
		// Corrupt entry: fall through and refresh below.
	} else if err != redis.Nil {
		metrics.QuoteLookups.WithLabelValues("redis", "error").Inc()
		slog.Warn("quote cache read failed", "fund_code", fundCode, "error", err)
	} else {
		metrics.QuoteLookups.WithLabelValues("redis", "miss").Inc()
	}

	q, err := s.next.Latest(ctx, fundCode)
	if err != nil {
		return ledger.Quote{}, err
	}

	payload, err := json.Marshal(q)
	if err == nil {
		serr := s.client.Set(ctx, key, payload, s.ttl).Err()
		if serr != nil {
			slog.Warn("quote cache write failed", "fund_code", fundCode, "error", serr)
		}
	}

	return q, nil
}

func quoteKey(fundCode string) string {
	return fmt.Sprintf("quote:%s", fundCode)
}
