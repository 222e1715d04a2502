package bots

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"adxchange/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	TelegramBotID    int64  `json:"telegramBotId"`
	Username         string `json:"username"`
	TokenEncrypted   string `json:"tokenEncrypted"`
	Category         string `json:"category"`
	Language         string `json:"language"`
	FrequencyMinutes int    `json:"frequencyMinutes"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req registerRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}
	bot, err := h.svc.Register(r.Context(), RegisterInput{
		OwnerID:          ownerID,
		TelegramBotID:    req.TelegramBotID,
		Username:         req.Username,
		TokenEncrypted:   req.TokenEncrypted,
		Category:         req.Category,
		Language:         req.Language,
		FrequencyMinutes: req.FrequencyMinutes,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, bot)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ownerID string) {
	bot, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bot)
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (h *Handler) SetPaused(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req pauseRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.svc.SetPaused(r.Context(), chi.URLParam(r, "id"), req.Paused); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
