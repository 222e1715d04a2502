package ipn

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"adxchange/internal/apierr"
	"adxchange/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type notifyPayload struct {
	ProviderTxID string `json:"providerTxId"`
	UserID       string `json:"userId"`
	AmountUSD    string `json:"amountUsd"`
}

// ServeHTTP accepts the raw body so the HMAC can be verified against the
// exact bytes the provider signed, before any JSON decoding happens.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, apierr.Validation("cannot read body"))
		return
	}

	var p notifyPayload
	if err := json.Unmarshal(body, &p); err != nil {
		httputil.WriteError(w, apierr.Validation("invalid payload"))
		return
	}
	amount, err := decimal.NewFromString(p.AmountUSD)
	if err != nil {
		httputil.WriteError(w, apierr.Validation("invalid amount"))
		return
	}

	n := Notification{
		ProviderTxID: p.ProviderTxID,
		UserID:       p.UserID,
		AmountUSD:    amount,
		Signature:    r.Header.Get("X-Signature"),
		Body:         body,
	}
	if err := h.svc.Credit(r.Context(), n); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
