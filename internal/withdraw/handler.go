package withdraw

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"adxchange/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	Coin    string          `json:"coin"`
	Network string          `json:"network"`
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request, userID string) {
	var req createRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}
	wr, err := h.svc.Create(r.Context(), CreateInput{
		UserID:  userID,
		Coin:    req.Coin,
		Network: req.Network,
		Address: req.Address,
		Amount:  req.Amount,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, wr)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, userID string) {
	wr, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if wr.UserID != userID {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "not your withdrawal"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wr)
}
