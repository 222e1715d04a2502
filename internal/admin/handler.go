// Package admin is the moderation control panel: operator login, the
// pending-queue dashboard, pricing/settings CRUD, and the panel-admin
// roster, all gated behind the same JWT + rights model the rest of the
// platform's bearer auth uses.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"adxchange/internal/httputil"
	"adxchange/internal/model"
	"adxchange/internal/moderation"
	"adxchange/internal/pricing"
	"adxchange/internal/types"
)

// Handler serves the moderator/admin HTTP surface.
type Handler struct {
	pool       *pgxpool.Pool
	jwtSecret  []byte
	tokenStore *TokenStore
	moderation *moderation.Service
	pricing    *pricing.Store
}

func NewHandler(pool *pgxpool.Pool, jwtSecret string, moderationSvc *moderation.Service, pricingStore *pricing.Store) *Handler {
	return &Handler{
		pool:       pool,
		jwtSecret:  []byte(jwtSecret),
		tokenStore: NewTokenStore(pool),
		moderation: moderationSvc,
		pricing:    pricingStore,
	}
}

// Login exchanges an admin_users username/password for a bearer JWT
// carrying role and rights claims.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}

	var id int
	var passwordHash, role string
	var rights []string
	err := h.pool.QueryRow(r.Context(),
		`select id, password_hash, role, rights from admin_users where username = $1`, req.Username,
	).Scan(&id, &passwordHash, &role, &rights)
	if err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid credentials"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      id,
		"username": req.Username,
		"role":     role,
		"rights":   rights,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})
	tokenStr, err := token.SignedString(h.jwtSecret)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "token generation failed"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": tokenStr, "username": req.Username, "role": role})
}

// ValidateToken lets the Telegram moderator bot check a one-time access
// token it handed out, without requiring a session.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	at, err := h.tokenStore.ValidateToken(r.Context(), token)
	if err != nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "invalid or expired token"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, at)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	username := UsernameFromContext(r.Context())
	role, _ := r.Context().Value(adminRoleKey).(string)
	if role == "" {
		role = "moderator"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"username": username, "role": role})
}

// GetPendingQueue lists one moderation kind's backlog, paginated.
func (h *Handler) GetPendingQueue(w http.ResponseWriter, r *http.Request) {
	kind := types.ModerationKind(strings.ToUpper(chi.URLParam(r, "kind")))
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	entries, err := h.moderation.GetPending(r.Context(), kind, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) ApproveEntity(w http.ResponseWriter, r *http.Request) {
	kind := types.ModerationKind(strings.ToUpper(chi.URLParam(r, "kind")))
	id := chi.URLParam(r, "id")
	moderatorID := UsernameFromContext(r.Context())
	if err := h.moderation.Approve(r.Context(), kind, id, moderatorID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) RejectEntity(w http.ResponseWriter, r *http.Request) {
	kind := types.ModerationKind(strings.ToUpper(chi.URLParam(r, "kind")))
	id := chi.URLParam(r, "id")
	moderatorID := UsernameFromContext(r.Context())
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := h.moderation.Reject(r.Context(), kind, id, moderatorID, req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) RequestAdEdit(w http.ResponseWriter, r *http.Request) {
	adID := chi.URLParam(r, "id")
	moderatorID := UsernameFromContext(r.Context())
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}
	if err := h.moderation.RequestEdit(r.Context(), adID, moderatorID, req.Feedback); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ListPricingTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.pricing.ListTiers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tiers)
}

func (h *Handler) UpsertPricingTier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Impressions int64  `json:"impressions"`
		PriceUSD    string `json:"priceUsd"`
		IsActive    bool   `json:"isActive"`
		SortOrder   int    `json:"sortOrder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}
	price, err := decimal.NewFromString(req.PriceUSD)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid priceUsd"})
		return
	}
	tier, err := h.pricing.UpsertTier(r.Context(), pricing.UpsertTierInput{
		ID: req.ID, Name: req.Name, Impressions: req.Impressions, PriceUSD: price, IsActive: req.IsActive, SortOrder: req.SortOrder,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tier)
}

func (h *Handler) DeletePricingTier(w http.ResponseWriter, r *http.Request) {
	if err := h.pricing.DeleteTier(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	settings, err := h.pricing.GetSettings(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

func (h *Handler) SetSetting(w http.ResponseWriter, r *http.Request) {
	var p model.PlatformSettings
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}
	p.UpdatedBy = UsernameFromContext(r.Context())
	if err := h.pricing.SetSetting(r.Context(), p); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) GetPanelAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.tokenStore.GetPanelAdmins(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, admins)
}

func (h *Handler) CreatePanelAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID int64           `json:"telegram_id"`
		Name       string          `json:"name"`
		Rights     map[string]bool `json:"rights"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}
	a, err := h.tokenStore.CreatePanelAdmin(r.Context(), req.TelegramID, req.Name, req.Rights)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) UpdatePanelAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid id"})
		return
	}
	var req struct {
		Name   string          `json:"name"`
		Rights map[string]bool `json:"rights"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}
	a, err := h.tokenStore.UpdatePanelAdmin(r.Context(), id, req.Name, req.Rights)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) DeletePanelAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid id"})
		return
	}
	if err := h.tokenStore.DeletePanelAdmin(r.Context(), id); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ResetDatabaseData truncates every table except the ones an owner needs
// to keep logging in afterwards, for wiping a staging environment clean.
func (h *Handler) ResetDatabaseData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}
	if strings.TrimSpace(req.Confirm) != adminDBResetConfirmPhrase {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid confirmation phrase"})
		return
	}

	tx, err := h.pool.BeginTx(r.Context(), pgx.TxOptions{})
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to start transaction"})
		return
	}
	defer tx.Rollback(r.Context())

	tables, err := listAdminResetTables(r.Context(), tx)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to prepare reset table list"})
		return
	}
	if len(tables) > 0 {
		var quoted []string
		for _, table := range tables {
			quoted = append(quoted, quoteIdentifier(table))
		}
		if _, err := tx.Exec(r.Context(), fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))); err != nil {
			httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to reset database data"})
			return
		}
	}
	if err := tx.Commit(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to finalize reset"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "deleted_tables": tables, "deleted_count": len(tables)})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
