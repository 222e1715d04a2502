package ads

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"adxchange/internal/httputil"
	"adxchange/internal/model"
	"adxchange/internal/pricing"
	"adxchange/internal/types"
)

type Handler struct {
	svc     *Service
	pricing *pricing.Store
}

func NewHandler(svc *Service, pricingStore *pricing.Store) *Handler {
	return &Handler{svc: svc, pricing: pricingStore}
}

type createDraftRequest struct {
	ContentType string             `json:"contentType"`
	Text        string             `json:"text"`
	HTMLContent string             `json:"htmlContent"`
	MediaURL    string             `json:"mediaUrl"`
	MediaType   string             `json:"mediaType"`
	Buttons     []model.Button     `json:"buttons"`
	Poll        *model.Poll        `json:"poll"`
	Category    string             `json:"category"`
	Targeting   model.Targeting    `json:"targeting"`
	Schedule    model.ScheduleWindow `json:"schedule"`
}

func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request, advertiserID string) {
	var req createDraftRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}
	ad, err := h.svc.CreateDraft(r.Context(), CreateDraftInput{
		AdvertiserID: advertiserID,
		ContentType:  types.AdContentType(req.ContentType),
		Text:         req.Text,
		HTMLContent:  req.HTMLContent,
		MediaURL:     req.MediaURL,
		MediaType:    req.MediaType,
		Buttons:      req.Buttons,
		Poll:         req.Poll,
		Category:     req.Category,
		Targeting:    req.Targeting,
		Schedule:     req.Schedule,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ad)
}

type pricingRequest struct {
	TierID            string          `json:"tierId"`
	TargetImpressions int64           `json:"targetImpressions"`
	CPMBid            decimal.Decimal `json:"cpmBid"`
	PromoCode         string          `json:"promoCode"`
}

func (h *Handler) UpdatePricing(w http.ResponseWriter, r *http.Request, advertiserID string) {
	adID := chi.URLParam(r, "id")
	var req pricingRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}

	tiers, err := h.pricing.ListTiers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var tier model.PricingTier
	found := false
	for _, t := range tiers {
		if t.ID == req.TierID {
			tier = t
			found = true
			break
		}
	}
	if !found {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "pricing tier not found"})
		return
	}

	settings, err := h.pricing.GetSettings(r.Context(), "fees")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	feePct := decimal.NewFromInt(20)
	for _, s := range settings {
		if s.Key == "platform_fee_percent" {
			if v, perr := decimal.NewFromString(s.Value); perr == nil {
				feePct = v
			}
		}
	}

	// Promo code resolution is out of scope here; advertisers without a
	// code simply pay the tier's base rate.
	var promo *pricing.PromoCode

	ad, err := h.svc.UpdatePricing(r.Context(), adID, tier, req.TargetImpressions, req.CPMBid, feePct, promo)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ad)
}

func (h *Handler) SubmitAd(w http.ResponseWriter, r *http.Request, advertiserID string) {
	ad, err := h.svc.SubmitAd(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ad)
}

func (h *Handler) PauseAd(w http.ResponseWriter, r *http.Request, advertiserID string) {
	ad, err := h.svc.PauseAd(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ad)
}

func (h *Handler) ResumeAd(w http.ResponseWriter, r *http.Request, advertiserID string) {
	ad, err := h.svc.ResumeAd(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ad)
}

func (h *Handler) DeleteAd(w http.ResponseWriter, r *http.Request, advertiserID string) {
	if err := h.svc.DeleteAd(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, advertiserID string) {
	ad, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ad)
}
