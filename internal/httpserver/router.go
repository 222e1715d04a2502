package httpserver

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"adxchange/internal/admin"
	"adxchange/internal/adserver"
	"adxchange/internal/ads"
	"adxchange/internal/auth"
	"adxchange/internal/bots"
	"adxchange/internal/botkey"
	"adxchange/internal/clicktracking"
	"adxchange/internal/health"
	"adxchange/internal/httputil"
	"adxchange/internal/payment/click"
	"adxchange/internal/payment/ipn"
	"adxchange/internal/payment/payme"
	"adxchange/internal/platform/cache"
	"adxchange/internal/withdraw"
)

type RouterDeps struct {
	AuthHandler          *auth.Handler
	AdsHandler           *ads.Handler
	BotsHandler          *bots.Handler
	BotKeyHandler        *botkey.Handler
	AdServerHandler      *adserver.Handler
	WithdrawHandler      *withdraw.Handler
	ClickHandler         *clicktracking.Handler
	PaymeHandler         *payme.Handler
	ClickGatewayHandler  *click.Handler
	IPNHandler           *ipn.Handler
	AdminHandler         *admin.Handler
	HealthHandler        *health.Handler
	AuthService          *auth.Service
	Cache                *cache.Cache
	InternalToken        string
	JWTSecret            string
	ModerationWSHandler  http.Handler
	UIDist               string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key, X-Internal-Token")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware(d.Cache, 20, time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.HealthHandler == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		d.HealthHandler.Get(w, r)
	})
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		if d.HealthHandler == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		d.HealthHandler.Live(w, r)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if d.HealthHandler == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		d.HealthHandler.Ready(w, r)
	})
	r.Get("/health/admin", func(w http.ResponseWriter, r *http.Request) {
		if d.HealthHandler == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		d.HealthHandler.Full(w, r)
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if d.HealthHandler == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		d.HealthHandler.Metrics(w, r)
	})

	// Payment provider webhooks: signed by the provider, not a bearer token.
	r.Post("/webhooks/payme", d.PaymeHandler.ServeHTTP)
	r.Post("/webhooks/click/prepare", d.ClickGatewayHandler.HandlePrepare)
	r.Post("/webhooks/click/complete", d.ClickGatewayHandler.HandleComplete)
	r.Post("/webhooks/ipn", d.IPNHandler.ServeHTTP)

	// Short click-tracking redirect an ad's inline button points at.
	r.Get("/c/{adId}/{botId}/{buttonIndex}", d.ClickHandler.Redirect)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login/initiate", d.AuthHandler.Initiate)
			r.Post("/login/refresh", d.AuthHandler.Refresh)
			r.Post("/login/verify/{token}", func(w http.ResponseWriter, r *http.Request) {
				d.AuthHandler.Verify(w, r, chi.URLParam(r, "token"))
			})
			r.Get("/login/status/{token}", func(w http.ResponseWriter, r *http.Request) {
				d.AuthHandler.Status(w, r, chi.URLParam(r, "token"))
			})
		})

		// Bot-facing ad-serving hot path: authenticated by API key, not
		// the human session JWT.
		r.Post("/ad/SendPost", d.AdServerHandler.SendPost)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))

			r.Post("/ads", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.AdsHandler.CreateDraft(w, r, userID)
			})
			r.Get("/ads/{id}", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.AdsHandler.Get(w, r, userID)
			})
			r.Post("/ads/{id}/pricing", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.AdsHandler.UpdatePricing(w, r, userID)
			})
			r.Post("/ads/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.AdsHandler.SubmitAd(w, r, userID)
			})
			r.Post("/ads/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.AdsHandler.PauseAd(w, r, userID)
			})
			r.Post("/ads/{id}/resume", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.AdsHandler.ResumeAd(w, r, userID)
			})
			r.Delete("/ads/{id}", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.AdsHandler.DeleteAd(w, r, userID)
			})

			r.Post("/bots", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.BotsHandler.Register(w, r, userID)
			})
			r.Get("/bots/{id}", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.BotsHandler.Get(w, r, userID)
			})
			r.Post("/bots/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.BotsHandler.SetPaused(w, r, userID)
			})
			r.Post("/bots/{id}/key", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.BotKeyHandler.Issue(w, r, userID)
			})

			r.Post("/withdrawals", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.WithdrawHandler.Create(w, r, userID)
			})
			r.Get("/withdrawals/{id}", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.WithdrawHandler.Get(w, r, userID)
			})
		})
	})

	// Admin / moderation panel.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", d.AdminHandler.Login)
		r.Get("/validate-token", d.AdminHandler.ValidateToken)
		r.Get("/ws", d.ModerationWSHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(admin.AdminAuthMiddleware(d.JWTSecret))
			r.Get("/me", d.AdminHandler.Me)

			r.With(admin.RequireOwner).Get("/system/health", func(w http.ResponseWriter, r *http.Request) {
				if d.HealthHandler == nil {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				d.HealthHandler.FullTrusted(w, r)
			})
			r.With(admin.RequireOwner).Get("/system/metrics", func(w http.ResponseWriter, r *http.Request) {
				if d.HealthHandler == nil {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				d.HealthHandler.MetricsJSONTrusted(w, r)
			})
			r.With(admin.RequireOwner).Post("/system/reset-db", d.AdminHandler.ResetDatabaseData)

			r.With(admin.RequireQueueKindRight).Get("/queue/{kind}", d.AdminHandler.GetPendingQueue)
			r.With(admin.RequireQueueKindRight).Post("/queue/{kind}/{id}/approve", d.AdminHandler.ApproveEntity)
			r.With(admin.RequireQueueKindRight).Post("/queue/{kind}/{id}/reject", d.AdminHandler.RejectEntity)
			r.With(admin.RequireRight("ads")).Post("/queue/ad/{id}/request-edit", d.AdminHandler.RequestAdEdit)

			r.With(admin.RequireRight("pricing")).Get("/pricing-tiers", d.AdminHandler.ListPricingTiers)
			r.With(admin.RequireRight("pricing")).Post("/pricing-tiers", d.AdminHandler.UpsertPricingTier)
			r.With(admin.RequireRight("pricing")).Delete("/pricing-tiers/{id}", d.AdminHandler.DeletePricingTier)

			r.With(admin.RequireRight("settings")).Get("/settings/{category}", d.AdminHandler.GetSettings)
			r.With(admin.RequireRight("settings")).Post("/settings", d.AdminHandler.SetSetting)

			r.Get("/panel-admins", d.AdminHandler.GetPanelAdmins)
			r.Post("/panel-admins", d.AdminHandler.CreatePanelAdmin)
			r.Put("/panel-admins/{id}", d.AdminHandler.UpdatePanelAdmin)
			r.Delete("/panel-admins/{id}", d.AdminHandler.DeletePanelAdmin)
		})
	})

	if d.UIDist != "" {
		r.NotFound(spaHandler(d.UIDist).ServeHTTP)
	}
	return r
}

func spaHandler(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}
		clean := filepath.Clean(path)
		full := filepath.Join(dir, clean)
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			http.ServeFile(w, r, full)
			return
		}
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}
