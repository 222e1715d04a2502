package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr string
	DBDSN    string
	RedisDSN string
	LogLevel string

	JWTIssuer      string
	JWTSecret      string
	AccessTTL      time.Duration
	AdminAccessTTL time.Duration
	RefreshTTL     time.Duration

	EncryptionKey string
	EncryptionIV  string

	InternalToken string

	TelegramBotToken    string
	TelegramBotUsername string
	StorageEndpoint     string
	PlatformBaseURL     string

	USDLocalRate decimal.Decimal

	PaymeSecretKey  string
	PaymeMerchantID string
	ClickSecretKey  string
	ClickServiceID  string
	ClickMerchantID string
	IPNSecretKey    string

	DefaultBaseCPM          decimal.Decimal
	DefaultPlatformFeePct   decimal.Decimal
	FrequencyGateMinMinutes int

	WithdrawMinUSD      decimal.Decimal
	WithdrawMaxDailyUSD decimal.Decimal
	WithdrawFeeUSD      decimal.Decimal

	AdminJWTSecret string

	WebSocketOrigin string
	UIDist          string
}

func Load() (Config, error) {
	var c Config
	var missing []string

	req := func(name string) string {
		v := os.Getenv(name)
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
		return v
	}

	c.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	c.DBDSN = req("DB_DSN")
	c.RedisDSN = req("REDIS_DSN")
	c.LogLevel = envOr("LOG_LEVEL", "info")

	c.JWTIssuer = envOr("JWT_ISSUER", "akhmads.net")
	c.JWTSecret = req("JWT_SECRET")
	c.AccessTTL = envDurationOr("JWT_ACCESS_TTL", 48*time.Hour)
	c.AdminAccessTTL = envDurationOr("JWT_ADMIN_ACCESS_TTL", 24*time.Hour)
	c.RefreshTTL = envDurationOr("JWT_REFRESH_TTL", 7*24*time.Hour)

	c.EncryptionKey = req("ENCRYPTION_KEY")
	c.EncryptionIV = req("ENCRYPTION_IV")

	c.InternalToken = req("INTERNAL_API_TOKEN")

	c.TelegramBotToken = req("TELEGRAM_BOT_TOKEN")
	c.TelegramBotUsername = envOr("TELEGRAM_BOT_USERNAME", "")
	c.StorageEndpoint = req("STORAGE_ENDPOINT")
	c.PlatformBaseURL = req("PLATFORM_BASE_URL")

	rate, err := decimal.NewFromString(envOr("USD_UZS_RATE", "12700"))
	if err != nil {
		return c, errors.New("invalid USD_UZS_RATE")
	}
	c.USDLocalRate = rate

	c.PaymeSecretKey = req("PAYME_SECRET_KEY")
	c.PaymeMerchantID = req("PAYME_MERCHANT_ID")
	c.ClickSecretKey = req("CLICK_SECRET_KEY")
	c.ClickServiceID = req("CLICK_SERVICE_ID")
	c.ClickMerchantID = envOr("CLICK_MERCHANT_ID", "")
	c.IPNSecretKey = os.Getenv("IPN_SECRET_KEY")

	c.AdminJWTSecret = envOr("ADMIN_JWT_SECRET", c.JWTSecret)

	c.WebSocketOrigin = envOr("WEBSOCKET_ORIGIN", "*")
	c.UIDist = envOr("UI_DIST", "")

	baseCPM, err := decimal.NewFromString(envOr("DEFAULT_BASE_CPM", "1.5"))
	if err != nil {
		return c, errors.New("invalid DEFAULT_BASE_CPM")
	}
	c.DefaultBaseCPM = baseCPM

	feePct, err := decimal.NewFromString(envOr("DEFAULT_PLATFORM_FEE_PERCENT", "20"))
	if err != nil {
		return c, errors.New("invalid DEFAULT_PLATFORM_FEE_PERCENT")
	}
	c.DefaultPlatformFeePct = feePct

	gate, err := strconv.Atoi(envOr("FREQUENCY_GATE_MIN_MINUTES", "1"))
	if err != nil {
		return c, errors.New("invalid FREQUENCY_GATE_MIN_MINUTES")
	}
	c.FrequencyGateMinMinutes = gate

	withdrawMin, err := decimal.NewFromString(envOr("WITHDRAW_MIN_USD", "10"))
	if err != nil {
		return c, errors.New("invalid WITHDRAW_MIN_USD")
	}
	c.WithdrawMinUSD = withdrawMin

	withdrawMaxDaily, err := decimal.NewFromString(envOr("WITHDRAW_MAX_DAILY_USD", "5000"))
	if err != nil {
		return c, errors.New("invalid WITHDRAW_MAX_DAILY_USD")
	}
	c.WithdrawMaxDailyUSD = withdrawMaxDaily

	withdrawFee, err := decimal.NewFromString(envOr("WITHDRAW_FEE_USD", "1"))
	if err != nil {
		return c, errors.New("invalid WITHDRAW_FEE_USD")
	}
	c.WithdrawFeeUSD = withdrawFee

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envDurationOr(name string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
