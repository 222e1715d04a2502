// Package auth implements the Telegram login-code handshake and the JWT
// access/refresh tokens issued once it completes.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adxchange/internal/apierr"
	"adxchange/internal/model"
	"adxchange/internal/platform/cache"
	"adxchange/internal/types"
)

const loginSessionTTL = 5 * time.Minute

type Service struct {
	pool            *pgxpool.Pool
	cache           *cache.Cache
	issuer          string
	secret          []byte
	accessTTL       time.Duration
	adminAccessTTL  time.Duration
	refreshTTL      time.Duration
	botUsername     string
	platformBaseURL string
}

func NewService(pool *pgxpool.Pool, c *cache.Cache, issuer string, secret []byte, accessTTL, adminAccessTTL, refreshTTL time.Duration, botUsername, platformBaseURL string) *Service {
	return &Service{
		pool:            pool,
		cache:           c,
		issuer:          issuer,
		secret:          secret,
		accessTTL:       accessTTL,
		adminAccessTTL:  adminAccessTTL,
		refreshTTL:      refreshTTL,
		botUsername:     botUsername,
		platformBaseURL: platformBaseURL,
	}
}

type Claims struct {
	jwt.RegisteredClaims
	UserID     string       `json:"uid"`
	TelegramID int64        `json:"tid"`
	Role       types.Role   `json:"role"`
	Roles      []types.Role `json:"roles"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type InitiateResult struct {
	LoginToken string    `json:"loginToken"`
	DeepLink   string    `json:"deepLink"`
	Code       string    `json:"code"`
	Codes      []string  `json:"codes"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type StatusResult struct {
	Authorized bool         `json:"authorized"`
	User       *model.User  `json:"user,omitempty"`
	Tokens     *TokenPair   `json:"tokens,omitempty"`
}

// Initiate opens a new LoginSession: a one-shot token bound to four
// candidate 4-digit codes, exactly one of which the user must submit
// through the bot to authorize the session.
func (s *Service) Initiate(ctx context.Context, ipAddress, userAgent string) (InitiateResult, error) {
	token := uuid.NewString()
	codes, correct, err := generateCodes()
	if err != nil {
		return InitiateResult{}, apierr.Internal("generate login codes", err)
	}
	expiresAt := time.Now().UTC().Add(loginSessionTTL)

	session := model.LoginSession{
		Token:       token,
		CorrectCode: correct,
		Codes:       codes,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Authorized:  false,
		ExpiresAt:   expiresAt,
	}
	if err := s.cache.SetJSON(ctx, cache.LoginSessionKey(token), session, loginSessionTTL); err != nil {
		return InitiateResult{}, apierr.Internal("store login session", err)
	}

	deepLink := fmt.Sprintf("https://t.me/%s?start=login_%s_%s", s.botUsername, token, correct)
	return InitiateResult{
		LoginToken: token,
		DeepLink:   deepLink,
		Code:       correct,
		Codes:      codes,
		ExpiresAt:  expiresAt,
	}, nil
}

// Verify is called by the bot adapter once the end-user taps a code inside
// the chat. A session only ever authorizes once: a second correct
// submission after the first is rejected, matching every other code.
func (s *Service) Verify(ctx context.Context, token, submittedCode string, telegramID int64) error {
	var session model.LoginSession
	found, err := s.cache.GetJSON(ctx, cache.LoginSessionKey(token), &session)
	if err != nil {
		return apierr.Internal("load login session", err)
	}
	if !found {
		return apierr.NotFound("login session not found or expired")
	}
	if session.Authorized {
		return apierr.Conflict("login session already authorized")
	}
	if submittedCode != session.CorrectCode {
		return apierr.Authentication("incorrect code")
	}

	user, err := s.ensureUser(ctx, telegramID)
	if err != nil {
		return err
	}
	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return err
	}

	session.Authorized = true
	session.TelegramID = telegramID
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	status := StatusResult{Authorized: true, User: &user, Tokens: &tokens}
	if err := s.cache.SetJSON(ctx, statusKey(token), status, ttl); err != nil {
		return apierr.Internal("store login status", err)
	}
	if err := s.cache.SetJSON(ctx, cache.LoginSessionKey(token), session, ttl); err != nil {
		return apierr.Internal("update login session", err)
	}
	return nil
}

// Status is polled by the web client until the session is authorized.
func (s *Service) Status(ctx context.Context, token string) (StatusResult, error) {
	var status StatusResult
	found, err := s.cache.GetJSON(ctx, statusKey(token), &status)
	if err != nil {
		return StatusResult{}, apierr.Internal("load login status", err)
	}
	if found {
		return status, nil
	}
	var session model.LoginSession
	found, err = s.cache.GetJSON(ctx, cache.LoginSessionKey(token), &session)
	if err != nil {
		return StatusResult{}, apierr.Internal("load login session", err)
	}
	if !found {
		return StatusResult{}, apierr.NotFound("login session not found or expired")
	}
	return StatusResult{Authorized: false}, nil
}

func statusKey(token string) string {
	return "login:status:" + token
}

func generateCodes() ([]string, string, error) {
	codes := make([]string, 0, 4)
	seen := map[string]bool{}
	for len(codes) < 4 {
		code, err := randomCode()
		if err != nil {
			return nil, "", err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	idx, err := rand.Int(rand.Reader, big.NewInt(4))
	if err != nil {
		return nil, "", err
	}
	return codes, codes[idx.Int64()], nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

func (s *Service) ensureUser(ctx context.Context, telegramID int64) (model.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return model.User{}, apierr.Internal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	var u model.User
	var roleRaw string
	err = tx.QueryRow(ctx, `
		select id, telegram_id, username, display_name, locale, role, is_active, is_banned, last_login_at, created_at, updated_at
		from users where telegram_id = $1 for update`, telegramID).
		Scan(&u.ID, &u.TelegramID, &u.Username, &u.DisplayName, &u.Locale, &roleRaw, &u.IsActive, &u.IsBanned, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	now := time.Now().UTC()
	if errors.Is(err, pgx.ErrNoRows) {
		u = model.User{
			ID:          uuid.NewString(),
			TelegramID:  telegramID,
			Role:        types.RoleAdvertiser,
			IsActive:    true,
			LastLoginAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, err = tx.Exec(ctx, `
			insert into users (id, telegram_id, username, display_name, locale, role, is_active, is_banned, last_login_at, created_at, updated_at)
			values ($1, $2, '', '', '', $3, true, false, $4, $4, $4)`,
			u.ID, u.TelegramID, string(u.Role), now)
		if err != nil {
			return model.User{}, apierr.Internal("create user", err)
		}
	} else if err != nil {
		return model.User{}, apierr.Internal("lock user", err)
	} else {
		u.Role = types.Role(roleRaw)
		u.LastLoginAt = now
		_, err = tx.Exec(ctx, `update users set last_login_at = $2, updated_at = $2 where id = $1`, u.ID, now)
		if err != nil {
			return model.User{}, apierr.Internal("update last login", err)
		}
	}
	if u.IsBanned {
		return model.User{}, apierr.Authorization("user is banned")
	}
	if !u.IsActive {
		return model.User{}, apierr.Authorization("user is deactivated")
	}
	if err := tx.Commit(ctx); err != nil {
		return model.User{}, apierr.Internal("commit tx", err)
	}
	return u, nil
}

func (s *Service) issueTokens(ctx context.Context, user model.User) (TokenPair, error) {
	accessTTL := s.accessTTL
	if user.HasRole(types.RoleAdmin) || user.HasRole(types.RoleSuperAdmin) {
		accessTTL = s.adminAccessTTL
	}
	access, err := s.sign(user, accessTTL)
	if err != nil {
		return TokenPair{}, apierr.Internal("sign access token", err)
	}
	refresh, err := s.sign(user, s.refreshTTL)
	if err != nil {
		return TokenPair{}, apierr.Internal("sign refresh token", err)
	}
	if err := s.cache.SetJSON(ctx, cache.RefreshTokenKey(user.ID), refresh, s.refreshTTL); err != nil {
		return TokenPair{}, apierr.Internal("store refresh token", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(user model.User, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:     user.ID,
		TelegramID: user.TelegramID,
		Role:       user.Role,
		Roles:      user.Roles,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// ParseToken validates a signed access/refresh token and returns its claims.
func (s *Service) ParseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, apierr.Authentication("invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apierr.Authentication("invalid token")
	}
	if claims.Issuer != s.issuer || claims.UserID == "" {
		return nil, apierr.Authentication("invalid token")
	}
	return claims, nil
}

// Refresh verifies that refreshToken matches the one on record for the
// subject and issues a new pair, rejecting replays of a stale token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.ParseToken(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	var stored string
	found, err := s.cache.GetJSON(ctx, cache.RefreshTokenKey(claims.UserID), &stored)
	if err != nil {
		return TokenPair{}, apierr.Internal("load refresh token", err)
	}
	if !found || stored != refreshToken {
		return TokenPair{}, apierr.Authentication("refresh token is stale or revoked")
	}
	user := model.User{ID: claims.UserID, TelegramID: claims.TelegramID, Role: claims.Role, Roles: claims.Roles}
	return s.issueTokens(ctx, user)
}
