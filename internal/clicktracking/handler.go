package clicktracking

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"adxchange/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Redirect resolves the short click link a delivered ad's inline button
// points at and 302s the end user to the advertiser's original URL.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	adID := chi.URLParam(r, "adId")
	botID := chi.URLParam(r, "botId")
	buttonIndex, err := strconv.Atoi(chi.URLParam(r, "buttonIndex"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid button index"})
		return
	}
	var telegramUserID int64
	if raw := r.URL.Query().Get("u"); raw != "" {
		telegramUserID, _ = strconv.ParseInt(raw, 10, 64)
	}

	originalURL, err := h.svc.Record(r.Context(), RecordInput{
		AdID:           adID,
		BotID:          botID,
		ButtonIndex:    buttonIndex,
		TelegramUserID: telegramUserID,
		IPAddress:      r.RemoteAddr,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, originalURL, http.StatusFound)
}
