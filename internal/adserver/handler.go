package adserver

import (
	"net/http"

	"adxchange/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SendPost is the bot integration's hot-path endpoint: an API-keyed bot
// asks for the next eligible ad to show a given end user. A nil response
// with no error means there was nothing eligible to serve.
func (h *Handler) SendPost(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("X-Api-Key")
	if apiKey == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing api key"})
		return
	}

	var req SendPostRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}

	resp, err := h.svc.SendPost(r.Context(), apiKey, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
