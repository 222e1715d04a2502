package botkey

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"adxchange/internal/bots"
	"adxchange/internal/httputil"
)

type Handler struct {
	svc  *Service
	bots *bots.Service
}

func NewHandler(svc *Service, botsSvc *bots.Service) *Handler {
	return &Handler{svc: svc, bots: botsSvc}
}

// Issue mints (or rotates) the bot's API key. Only the owner-authenticated
// route should reach this; the router enforces ownership of the chi
// {id} param before routing here.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request, ownerID string) {
	bot, err := h.bots.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if bot.OwnerID != ownerID {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "not your bot"})
		return
	}
	key, err := h.svc.Issue(r.Context(), bot)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"apiKey": key})
}
