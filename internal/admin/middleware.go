package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"

	"adxchange/internal/httputil"
)

type contextKey string

const adminUsernameKey contextKey = "admin_username"
const adminRoleKey contextKey = "admin_role"
const adminRightsKey contextKey = "admin_rights"

// allAdminRights gates the moderation surfaces: a moderator with "ads"
// can work the ad queue, "withdrawals" the payout queue, and so on. An
// "owner" role bypasses rights entirely.
var allAdminRights = []string{"ads", "bots", "withdrawals", "pricing", "settings"}

func UsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(adminUsernameKey).(string)
	return strings.TrimSpace(username)
}

// AdminAuthMiddleware validates the bearer JWT issued by Login (or by
// the Telegram bot's one-time token exchange) and attaches the
// moderator's identity and rights to the request context.
func AdminAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing authorization"})
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid authorization format"})
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "invalid token"})
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid claims"})
				return
			}

			role, _ := claims["role"].(string)
			if role != "owner" && role != "moderator" {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "admin access required"})
				return
			}
			username, _ := claims["username"].(string)
			if username == "" {
				username = role
			}

			rightsMap := map[string]bool{}
			if rightsRaw, ok := claims["rights"].([]interface{}); ok {
				for _, raw := range rightsRaw {
					if right, ok := raw.(string); ok && right != "" {
						rightsMap[right] = true
					}
				}
			}
			if role == "owner" {
				for _, right := range allAdminRights {
					rightsMap[right] = true
				}
			}

			ctx := context.WithValue(r.Context(), adminUsernameKey, username)
			ctx = context.WithValue(ctx, adminRoleKey, role)
			ctx = context.WithValue(ctx, adminRightsKey, rightsMap)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireOwner(w http.ResponseWriter, r *http.Request) bool {
	role, _ := r.Context().Value(adminRoleKey).(string)
	if role != "owner" {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "owner access required"})
		return false
	}
	return true
}

func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireOwner(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRight(right string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(adminRoleKey).(string)
			if role == "owner" {
				next.ServeHTTP(w, r)
				return
			}
			rights, _ := r.Context().Value(adminRightsKey).(map[string]bool)
			if rights == nil || !rights[right] {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "insufficient rights"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// queueRightForKind maps a moderation queue's {kind} URL param to the
// right that gates it. "withdrawal" takes the plural "withdrawals" right
// to match allAdminRights.
func queueRightForKind(kind string) string {
	switch strings.ToLower(kind) {
	case "ad":
		return "ads"
	case "bot":
		return "bots"
	case "withdrawal":
		return "withdrawals"
	default:
		return kind
	}
}

// RequireQueueKindRight gates a /queue/{kind}/... route by the right
// matching its kind, rather than a single right fixed at route-setup
// time: the ad queue needs "ads", the bot queue "bots", and so on.
func RequireQueueKindRight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		right := queueRightForKind(chi.URLParam(r, "kind"))
		RequireRight(right)(next).ServeHTTP(w, r)
	})
}

const adminDBResetConfirmPhrase = "DELETE ALL DATA"

var adminDBResetExcludedTables = []string{
	"admin_users",
	"panel_admins",
	"access_tokens",
	"pricing_tiers",
	"platform_settings",
}

func listAdminResetTables(ctx context.Context, tx pgx.Tx) ([]string, error) {
	rows, err := tx.Query(ctx, `
		select tablename from pg_tables
		where schemaname = 'public' and not (tablename = any($1))
		order by tablename asc`, adminDBResetExcludedTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, 32)
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		out = append(out, table)
	}
	return out, rows.Err()
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
