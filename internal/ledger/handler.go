package ledger

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"qc-ledger/internal/httputil"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/types"
)

// AccountResolver maps an authenticated user id to their account id.
type AccountResolver func(ctx context.Context, userID string) (string, error)

type Handler struct {
	svc     *Service
	resolve AccountResolver
}

func NewHandler(svc *Service, resolve AccountResolver) *Handler {
	return &Handler{svc: svc, resolve: resolve}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type createRequest struct {
	Amount        string `json:"amount"`
	Network       string `json:"network"`
	Address       string `json:"address"`
	ProcessingFee string `json:"processing_fee"`
	NetworkFee    string `json:"network_fee"`
}

func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request, userID string) {
	h.create(w, r, userID, types.EntryKindDeposit)
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request, userID string) {
	h.create(w, r, userID, types.EntryKindWithdrawal)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, userID string, kind types.EntryKind) {
	var req createRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "amount must be a decimal"})
		return
	}
	processingFee, networkFee := decimal.Zero, decimal.Zero
	if req.ProcessingFee != "" {
		if processingFee, err = decimal.NewFromString(req.ProcessingFee); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "processing_fee must be a decimal"})
			return
		}
	}
	if req.NetworkFee != "" {
		if networkFee, err = decimal.NewFromString(req.NetworkFee); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "network_fee must be a decimal"})
			return
		}
	}
	accountID, err := h.resolve(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	entry, err := h.svc.Create(r.Context(), CreateParams{
		AccountID:     accountID,
		Kind:          kind,
		Amount:        amount,
		Network:       req.Network,
		Address:       req.Address,
		ProcessingFee: processingFee,
		NetworkFee:    networkFee,
	})
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	accountID, err := h.resolve(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	entries, err := h.svc.ListForAccount(r.Context(), accountID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, userID string) {
	accountID, err := h.resolve(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	entry, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	// Entry ids are unguessable, but ownership is still enforced.
	if entry.AccountID != accountID {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: storage.ErrNotFound.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}
