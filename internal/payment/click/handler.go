package click

import (
	"net/http"
	"strconv"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// HandlePrepare implements Click's /prepare webhook: application/x-www-form-urlencoded
// POST, answered with the same field echo plus error/error_note.
func (h *Handler) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	in := requestFromForm(r)
	action, _ := strconv.Atoi(r.FormValue("action"))
	in.Action = action

	code, note := h.svc.Prepare(r.Context(), in)
	writeForm(w, in.ClickTransID, in.MerchantTransID, code, note)
}

// HandleComplete implements Click's /complete webhook.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	in := requestFromForm(r)
	action, _ := strconv.Atoi(r.FormValue("action"))
	in.Action = action
	clickPaydocID, _ := strconv.ParseInt(r.FormValue("click_paydoc_id"), 10, 64)
	clickError, _ := strconv.Atoi(r.FormValue("error"))

	code, note := h.svc.Complete(r.Context(), in, clickPaydocID, clickError)
	writeForm(w, in.ClickTransID, in.MerchantTransID, code, note)
}

func requestFromForm(r *http.Request) PrepareRequest {
	return PrepareRequest{
		ClickTransID:    r.FormValue("click_trans_id"),
		ServiceID:       r.FormValue("service_id"),
		MerchantTransID: r.FormValue("merchant_trans_id"),
		Amount:          r.FormValue("amount"),
		SignTime:        r.FormValue("sign_time"),
		SignString:      r.FormValue("sign_string"),
	}
}

func writeForm(w http.ResponseWriter, clickTransID, merchantTransID string, errorCode int, errorNote string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"click_trans_id":"` + clickTransID + `","merchant_trans_id":"` + merchantTransID +
		`","error":` + strconv.Itoa(errorCode) + `,"error_note":"` + errorNote + `"}`))
}
