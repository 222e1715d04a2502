package model

import (
	"time"

	"github.com/shopspring/decimal"

	"adxchange/internal/types"
)

// Bot is a registered Telegram bot owned by a BOT_OWNER user.
type Bot struct {
	ID               string
	OwnerID          string
	TelegramBotID    int64
	Username         string
	TokenEncrypted   string
	APIKeyHash       string
	APIKeyRevoked    bool
	Status           types.BotStatus
	IsPaused         bool
	Monetized        bool
	Category         string
	Language         string
	TotalMembers     int64
	ActiveMembers    int64
	PostFilter       string
	AllowedCategories []string
	BlockedCategories []string
	FrequencyMinutes int
	TotalEarnings    decimal.Decimal
	PendingEarnings  decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BotUser is the (botId, telegramUserId) directory row, upserted on every
// impression delivered to that pair.
type BotUser struct {
	BotID          string
	TelegramUserID int64
	FirstName      string
	LastName       string
	Username       string
	LanguageCode   string
	Country        string
	City           string
	LastSeenAt     time.Time
}
