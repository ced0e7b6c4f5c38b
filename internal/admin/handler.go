package admin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"qc-ledger/internal/httputil"
	"qc-ledger/internal/storage"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyFinalized):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: ErrInvalidCredentials.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request, adminID string) {
	entries, err := h.svc.ListPending(r.Context())
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request, adminID string) {
	entry, err := h.svc.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request, adminID string) {
	if err := h.svc.DeactivateAccount(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"active": false})
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request, adminID string) {
	var req struct {
		Annotation    string `json:"annotation"`
		SettlementRef string `json:"settlement_ref"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	entry, err := h.svc.Approve(r.Context(), chi.URLParam(r, "id"), adminID, req.Annotation, req.SettlementRef)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request, adminID string) {
	var req struct {
		Annotation string `json:"annotation"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	entry, err := h.svc.Reject(r.Context(), chi.URLParam(r, "id"), adminID, req.Annotation)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}
