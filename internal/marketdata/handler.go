package marketdata

import (
	"errors"
	"net/http"
	"sort"

	"qc-ledger/internal/httputil"
	"qc-ledger/internal/storage"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	prices, err := h.svc.Latest(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]storage.PriceSnapshot, 0, len(prices))
	for _, snap := range prices {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	httputil.WriteJSON(w, http.StatusOK, out)
}

// Ingest accepts a snapshot from the internal price feed. The route is
// guarded by the internal api token, not user auth.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var in SnapshotInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	snap, err := h.svc.Ingest(r.Context(), in)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidSnapshot) {
			status = http.StatusBadRequest
		}
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snap)
}
