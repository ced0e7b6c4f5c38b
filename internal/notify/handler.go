package notify

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"qc-ledger/internal/httputil"
	"qc-ledger/internal/storage"
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
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	accountID, err := h.resolve(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	items, err := h.svc.List(r.Context(), accountID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if items == nil {
		items = []storage.Notification{}
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request, userID string) {
	accountID, err := h.resolve(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.MarkRead(r.Context(), id, accountID); err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"read": true})
}
