package accounts

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/httputil"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/types"
)

type Handler struct {
	svc           *Service
	faucetEnabled bool
	faucetMax     decimal.Decimal
}

func NewHandler(svc *Service, faucetEnabled bool, faucetMax decimal.Decimal) *Handler {
	return &Handler{svc: svc, faucetEnabled: faucetEnabled, faucetMax: faucetMax}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInsufficientFunds), errors.Is(err, storage.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTrade), errors.Is(err, ErrNoPrice):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request, userID string) {
	acc, err := h.svc.AccountForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	sum, err := h.svc.Summary(r.Context(), acc.ID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, userID string) {
	acc, err := h.svc.AccountForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	recs, err := h.svc.History(r.Context(), acc.ID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if recs == nil {
		recs = []storage.TradeRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

func (h *Handler) Faucet(w http.ResponseWriter, r *http.Request, userID string) {
	if !h.faucetEnabled {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "demo faucet is disabled"})
		return
	}
	var req struct {
		Amount string `json:"amount"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.GreaterThan(decimal.Zero) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "amount must be a positive decimal"})
		return
	}
	if amount.GreaterThan(h.faucetMax) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "amount exceeds faucet limit"})
		return
	}
	acc, err := h.svc.AccountForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	balance, err := h.svc.DemoTopUp(r.Context(), acc.ID, amount)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"demo_balance": balance.String()})
}

func (h *Handler) Trade(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Side     string `json:"side"`
		Symbol   string `json:"symbol"`
		Quantity string `json:"quantity"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "quantity must be a decimal"})
		return
	}
	acc, err := h.svc.AccountForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.Trade(r.Context(), acc.ID, types.TradeSide(req.Side), req.Symbol, qty)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}
