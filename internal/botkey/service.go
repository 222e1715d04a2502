// Package botkey issues and verifies the signed API keys bots present on
// every ad-server call. A key is a JWT bound to bot identity; verification
// re-fetches the Bot row so revocation and status changes take effect
// immediately, without waiting for the token to expire.
package botkey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"adxchange/internal/apierr"
	"adxchange/internal/bots"
	"adxchange/internal/model"
	"adxchange/internal/types"
)

const keyLifetime = 365 * 24 * time.Hour

type Service struct {
	bots   *bots.Service
	secret []byte
	issuer string
}

func NewService(botsSvc *bots.Service, secret []byte, issuer string) *Service {
	return &Service{bots: botsSvc, secret: secret, issuer: issuer}
}

type claims struct {
	jwt.RegisteredClaims
	BotID         string `json:"botId"`
	OwnerID       string `json:"ownerId"`
	TelegramBotID int64  `json:"telegramBotId"`
	Username      string `json:"username"`
}

// Issue signs a new API key for bot and stores its hash, so the plaintext
// key is shown to the owner exactly once and never persisted.
func (s *Service) Issue(ctx context.Context, bot model.Bot) (string, error) {
	now := time.Now().UTC()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   bot.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(keyLifetime)),
		},
		BotID:         bot.ID,
		OwnerID:       bot.OwnerID,
		TelegramBotID: bot.TelegramBotID,
		Username:      bot.Username,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", apierr.Internal("sign bot api key", err)
	}
	if err := s.bots.SetAPIKeyHash(ctx, bot.ID, hashKey(token)); err != nil {
		return "", err
	}
	return token, nil
}

// Verify authenticates an inbound X-Api-Key header, enforcing Bot.status
// and revocation at call time rather than relying on token expiry alone.
func (s *Service) Verify(ctx context.Context, apiKey string) (model.Bot, error) {
	parsed, err := jwt.ParseWithClaims(apiKey, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return model.Bot{}, apierr.Authentication("invalid api key")
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Issuer != s.issuer || c.BotID == "" {
		return model.Bot{}, apierr.Authentication("invalid api key")
	}

	bot, err := s.bots.GetByAPIKeyHash(ctx, hashKey(apiKey))
	if err != nil {
		return model.Bot{}, apierr.Authentication("invalid api key")
	}
	if bot.ID != c.BotID {
		return model.Bot{}, apierr.Authentication("invalid api key")
	}
	if bot.APIKeyRevoked {
		return model.Bot{}, apierr.Authorization("api key revoked")
	}
	if bot.Status == types.BotStatusSuspended {
		return model.Bot{}, apierr.Authorization("bot suspended")
	}
	if bot.Status != types.BotStatusActive {
		return model.Bot{}, apierr.Authorization("bot is not active")
	}
	return bot, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
