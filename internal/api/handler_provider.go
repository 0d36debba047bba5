package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/apolyakov/fundledger/internal/ledger"
	"github.com/apolyakov/fundledger/internal/services/trading"
)

// HandlerProvider wraps the trading processor and exposes HTTP handlers.
type HandlerProvider struct {
	svc *trading.Processor
}

// NewHandler returns a new Handler provider.
func NewHandler(svc *trading.Processor) *HandlerProvider {
	return &HandlerProvider{svc: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)

		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeTradeError maps the engine's error taxonomy onto HTTP statuses.
// Validation rejections carry a specific reason; storage failures stay
// opaque — nothing was left half-applied, so retrying is safe.
func writeTradeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, ledger.ErrQuoteUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "no current quote for fund")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, ledger.ErrInsufficientShares):
		writeError(w, http.StatusConflict, "insufficient shares")
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, ledger.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, ledger.ErrHoldingNotFound):
		writeError(w, http.StatusNotFound, "holding not found")
	default:
		slog.Error("trade request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseUserIDFromPath reads `{userId}` from routes like:
//
//	POST /user/{userId}/purchase
//	GET  /user/{userId}/transactions/{txId}
func parseUserIDFromPath(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "userId")
	if idStr == "" {
		return 0, fmt.Errorf("missing userId")
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid userId: %w", err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid userId: must be positive")
	}

	return id, nil
}

// parseAmount accepts a positive decimal string with at most 2 fractional
// digits (cash precision).
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount")
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be > 0")
	}
	if !d.Round(ledger.CashScale).Equal(d) {
		return decimal.Zero, fmt.Errorf("amount supports up to 2 decimals")
	}

	return d, nil
}

// parseShares accepts a positive decimal string with at most 4 fractional
// digits (share precision).
func parseShares(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid shares")
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("shares must be > 0")
	}
	if !d.Round(ledger.ShareScale).Equal(d) {
		return decimal.Zero, fmt.Errorf("shares support up to 4 decimals")
	}

	return d, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}

		return fmt.Errorf("invalid JSON")
	}

	return nil
}

// --- Wire views ---

type transactionView struct {
	TransactionID     int64     `json:"transactionId"`
	FundCode          string    `json:"fundCode"`
	Type              string    `json:"type"`
	Amount            string    `json:"amount"`
	Shares            string    `json:"shares"`
	UnitPrice         string    `json:"unitPrice"`
	Status            string    `json:"status"`
	SettlementAccount string    `json:"settlementAccount"`
	TransactionTime   time.Time `json:"transactionTime"`
}

func toTransactionView(t ledger.Transaction) transactionView {
	return transactionView{
		TransactionID:     t.ID,
		FundCode:          t.FundCode,
		Type:              string(t.Type),
		Amount:            t.Amount.StringFixed(ledger.CashScale),
		Shares:            t.Shares.StringFixed(ledger.ShareScale),
		UnitPrice:         t.UnitPrice.StringFixed(ledger.ShareScale),
		Status:            string(t.Status),
		SettlementAccount: t.SettlementAccount,
		TransactionTime:   t.TransactionTime,
	}
}

type holdingView struct {
	FundCode    string    `json:"fundCode"`
	TotalShares string    `json:"totalShares"`
	AverageCost string    `json:"averageCost"`
	MarketValue string    `json:"marketValue"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

func toHoldingView(h ledger.Holding) holdingView {
	return holdingView{
		FundCode:    h.FundCode,
		TotalShares: h.TotalShares.StringFixed(ledger.ShareScale),
		AverageCost: h.AverageCost.StringFixed(ledger.ShareScale),
		MarketValue: h.MarketValue.StringFixed(ledger.CashScale),
		LastUpdate:  h.LastUpdate,
	}
}

// --- Handlers ---

type purchaseRequest struct {
	FundCode          string `json:"fundCode"`
	Amount            string `json:"amount"`
	SettlementAccount string `json:"settlementAccount"`
}

// PurchaseHandler handles POST /user/{userId}/purchase
func (h *HandlerProvider) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req purchaseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Purchase(r.Context(), trading.PurchaseRequest{
		UserID:            userID,
		FundCode:          req.FundCode,
		Amount:            amount,
		SettlementAccount: req.SettlementAccount,
	})
	if err != nil {
		writeTradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction":    toTransactionView(res.Transaction),
		"sharesAcquired": res.Transaction.Shares.StringFixed(ledger.ShareScale),
		"unitPrice":      res.Transaction.UnitPrice.StringFixed(ledger.ShareScale),
		"newBalance":     res.NewBalance.StringFixed(ledger.CashScale),
	})
}

type redeemRequest struct {
	FundCode          string `json:"fundCode"`
	Shares            string `json:"shares"`
	SettlementAccount string `json:"settlementAccount,omitempty"`
}

// RedeemHandler handles POST /user/{userId}/redeem
func (h *HandlerProvider) RedeemHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req redeemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	shares, err := parseShares(req.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Redeem(r.Context(), trading.RedeemRequest{
		UserID:            userID,
		FundCode:          req.FundCode,
		Shares:            shares,
		SettlementAccount: req.SettlementAccount,
	})
	if err != nil {
		writeTradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction":    toTransactionView(res.Transaction),
		"amountCredited": res.Transaction.Amount.StringFixed(ledger.CashScale),
		"unitPrice":      res.Transaction.UnitPrice.StringFixed(ledger.ShareScale),
		"newBalance":     res.NewBalance.StringFixed(ledger.CashScale),
	})
}

// GetBalanceHandler handles GET /user/{userId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	bal, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  userID,
		"balance": bal.StringFixed(ledger.CashScale),
	})
}

// ListTransactionsHandler handles GET /user/{userId}/transactions
func (h *HandlerProvider) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	txns, err := h.svc.ListTransactions(r.Context(), userID)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	views := make([]transactionView, 0, len(txns))
	for _, t := range txns {
		views = append(views, toTransactionView(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": views})
}

// GetTransactionHandler handles GET /user/{userId}/transactions/{txId}
func (h *HandlerProvider) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	txID, err := strconv.ParseInt(chi.URLParam(r, "txId"), 10, 64)
	if err != nil || txID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid txId in path")
		return
	}

	txn, err := h.svc.GetTransaction(r.Context(), txID, userID)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionView(txn))
}

// ListHoldingsHandler handles GET /user/{userId}/holdings
func (h *HandlerProvider) ListHoldingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	list, err := h.svc.ListHoldings(r.Context(), userID)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	views := make([]holdingView, 0, len(list))
	for _, hd := range list {
		views = append(views, toHoldingView(hd))
	}

	writeJSON(w, http.StatusOK, map[string]any{"holdings": views})
}

// GetHoldingHandler handles GET /user/{userId}/holdings/{fundCode}
func (h *HandlerProvider) GetHoldingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	fundCode := chi.URLParam(r, "fundCode")
	if fundCode == "" {
		writeError(w, http.StatusBadRequest, "missing fundCode in path")
		return
	}

	holding, err := h.svc.GetHolding(r.Context(), userID, fundCode)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toHoldingView(holding))
}

// GetQuoteHandler handles GET /funds/{fundCode}/quote
func (h *HandlerProvider) GetQuoteHandler(w http.ResponseWriter, r *http.Request) {
	fundCode := chi.URLParam(r, "fundCode")
	if fundCode == "" {
		writeError(w, http.StatusBadRequest, "missing fundCode in path")
		return
	}

	quote, err := h.svc.GetQuote(r.Context(), fundCode)
	if err != nil {
		writeTradeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}
