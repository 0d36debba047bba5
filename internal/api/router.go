package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apolyakov/fundledger/internal/services/trading"
)

// NewRouter constructs the router with all API endpoints registered.
// The caller identity comes from the path; authentication is handled by an
// upstream layer that is out of scope here.
func NewRouter(svc *trading.Processor) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/user/{userId}/purchase", h.PurchaseHandler)
	r.Post("/user/{userId}/redeem", h.RedeemHandler)

	r.Get("/user/{userId}/balance", h.GetBalanceHandler)
	r.Get("/user/{userId}/transactions", h.ListTransactionsHandler)
	r.Get("/user/{userId}/transactions/{txId}", h.GetTransactionHandler)
	r.Get("/user/{userId}/holdings", h.ListHoldingsHandler)
	r.Get("/user/{userId}/holdings/{fundCode}", h.GetHoldingHandler)

	r.Get("/funds/{fundCode}/quote", h.GetQuoteHandler)

	return r
}
