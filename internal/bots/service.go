// Package bots manages the Bot entity: registration, the moderation
// lifecycle (PENDING -> ACTIVE/REJECTED/SUSPENDED), and the settings a
// bot owner controls (pause, frequency gate, category filters).
package bots

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"adxchange/internal/apierr"
	"adxchange/internal/model"
	"adxchange/internal/types"
)

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

type RegisterInput struct {
	OwnerID          string
	TelegramBotID    int64
	Username         string
	TokenEncrypted   string
	Category         string
	Language         string
	FrequencyMinutes int
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (model.Bot, error) {
	if in.FrequencyMinutes <= 0 {
		in.FrequencyMinutes = 15
	}
	bot := model.Bot{
		ID:               uuid.NewString(),
		OwnerID:          in.OwnerID,
		TelegramBotID:    in.TelegramBotID,
		Username:         in.Username,
		TokenEncrypted:   in.TokenEncrypted,
		Status:           types.BotStatusPending,
		Category:         in.Category,
		Language:         in.Language,
		FrequencyMinutes: in.FrequencyMinutes,
		TotalEarnings:    decimal.Zero,
		PendingEarnings:  decimal.Zero,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	allowed, _ := json.Marshal(bot.AllowedCategories)
	blocked, _ := json.Marshal(bot.BlockedCategories)
	_, err := s.pool.Exec(ctx, `
		insert into bots (id, owner_id, telegram_bot_id, username, token_encrypted, api_key_hash, api_key_revoked,
			status, is_paused, monetized, category, language, total_members, active_members, post_filter,
			allowed_categories, blocked_categories, frequency_minutes, total_earnings, pending_earnings, created_at, updated_at)
		values ($1,$2,$3,$4,$5,'',false,$6,false,false,$7,$8,0,0,'',$9,$10,$11,0,0,$12,$12)`,
		bot.ID, bot.OwnerID, bot.TelegramBotID, bot.Username, bot.TokenEncrypted, string(bot.Status),
		bot.Category, bot.Language, allowed, blocked, bot.FrequencyMinutes, bot.CreatedAt)
	if err != nil {
		return model.Bot{}, apierr.Internal("insert bot", err)
	}
	return bot, nil
}

func (s *Service) Get(ctx context.Context, botID string) (model.Bot, error) {
	return s.scanOne(ctx, `select `+selectCols+` from bots where id = $1`, botID)
}

func (s *Service) GetByAPIKeyHash(ctx context.Context, hash string) (model.Bot, error) {
	return s.scanOne(ctx, `select `+selectCols+` from bots where api_key_hash = $1`, hash)
}

const selectCols = `id, owner_id, telegram_bot_id, username, token_encrypted, api_key_hash, api_key_revoked,
	status, is_paused, monetized, category, language, total_members, active_members, post_filter,
	allowed_categories, blocked_categories, frequency_minutes, total_earnings, pending_earnings, created_at, updated_at`

func (s *Service) scanOne(ctx context.Context, query string, arg interface{}) (model.Bot, error) {
	var b model.Bot
	var statusRaw string
	var allowed, blocked []byte
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&b.ID, &b.OwnerID, &b.TelegramBotID, &b.Username, &b.TokenEncrypted, &b.APIKeyHash, &b.APIKeyRevoked,
		&statusRaw, &b.IsPaused, &b.Monetized, &b.Category, &b.Language, &b.TotalMembers, &b.ActiveMembers, &b.PostFilter,
		&allowed, &blocked, &b.FrequencyMinutes, &b.TotalEarnings, &b.PendingEarnings, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Bot{}, apierr.NotFound("bot not found")
	}
	if err != nil {
		return model.Bot{}, apierr.Internal("get bot", err)
	}
	b.Status = types.BotStatus(statusRaw)
	_ = json.Unmarshal(allowed, &b.AllowedCategories)
	_ = json.Unmarshal(blocked, &b.BlockedCategories)
	return b, nil
}

// SetAPIKeyHash stores the hash of a freshly issued API key and clears any
// revocation. The bot row already exists by then: Register inserts it with
// an empty hash.
func (s *Service) SetAPIKeyHash(ctx context.Context, botID, hash string) error {
	_, err := s.pool.Exec(ctx, `update bots set api_key_hash = $2, api_key_revoked = false, updated_at = $3 where id = $1`, botID, hash, time.Now().UTC())
	if err != nil {
		return apierr.Internal("set bot api key hash", err)
	}
	return nil
}

func (s *Service) RevokeAPIKey(ctx context.Context, botID string) error {
	_, err := s.pool.Exec(ctx, `update bots set api_key_revoked = true, updated_at = $2 where id = $1`, botID, time.Now().UTC())
	if err != nil {
		return apierr.Internal("revoke bot api key", err)
	}
	return nil
}

// ListPending returns bots awaiting moderation, oldest first.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]model.Bot, error) {
	rows, err := s.pool.Query(ctx, `select `+selectCols+` from bots where status = 'PENDING' order by created_at asc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, apierr.Internal("list pending bots", err)
	}
	defer rows.Close()

	var out []model.Bot
	for rows.Next() {
		var b model.Bot
		var statusRaw string
		var allowed, blocked []byte
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.TelegramBotID, &b.Username, &b.TokenEncrypted, &b.APIKeyHash, &b.APIKeyRevoked,
			&statusRaw, &b.IsPaused, &b.Monetized, &b.Category, &b.Language, &b.TotalMembers, &b.ActiveMembers, &b.PostFilter,
			&allowed, &blocked, &b.FrequencyMinutes, &b.TotalEarnings, &b.PendingEarnings, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, apierr.Internal("scan pending bot", err)
		}
		b.Status = types.BotStatus(statusRaw)
		_ = json.Unmarshal(allowed, &b.AllowedCategories)
		_ = json.Unmarshal(blocked, &b.BlockedCategories)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Service) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `select count(*) from bots where status = 'PENDING'`).Scan(&n)
	if err != nil {
		return 0, apierr.Internal("count pending bots", err)
	}
	return n, nil
}

func (s *Service) Activate(ctx context.Context, botID string) error {
	return s.setStatus(ctx, botID, types.BotStatusActive)
}

func (s *Service) Reject(ctx context.Context, botID string) error {
	return s.setStatus(ctx, botID, types.BotStatusRejected)
}

func (s *Service) Suspend(ctx context.Context, botID string) error {
	return s.setStatus(ctx, botID, types.BotStatusSuspended)
}

func (s *Service) setStatus(ctx context.Context, botID string, status types.BotStatus) error {
	tag, err := s.pool.Exec(ctx, `update bots set status = $2, updated_at = $3 where id = $1`, botID, string(status), time.Now().UTC())
	if err != nil {
		return apierr.Internal("update bot status", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound("bot not found")
	}
	return nil
}

func (s *Service) SetPaused(ctx context.Context, botID string, paused bool) error {
	_, err := s.pool.Exec(ctx, `update bots set is_paused = $2, updated_at = $3 where id = $1`, botID, paused, time.Now().UTC())
	if err != nil {
		return apierr.Internal("update bot pause state", err)
	}
	return nil
}

// CreditEarnings increments the advisory pendingEarnings counter alongside
// totalEarnings on each impression; Wallet.available plus Wallet.totalEarned
// remains the authoritative balance.
func (s *Service) CreditEarnings(ctx context.Context, tx pgx.Tx, botID string, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx, `update bots set total_earnings = total_earnings + $2, pending_earnings = pending_earnings + $2, updated_at = $3 where id = $1`, botID, amount, time.Now().UTC())
	if err != nil {
		return apierr.Internal("credit bot earnings", err)
	}
	return nil
}

func (s *Service) UpsertBotUser(ctx context.Context, tx pgx.Tx, bu model.BotUser) error {
	_, err := tx.Exec(ctx, `
		insert into bot_users (bot_id, telegram_user_id, first_name, last_name, username, language_code, country, city, last_seen_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		on conflict (bot_id, telegram_user_id) do update set
			first_name = excluded.first_name, last_name = excluded.last_name, username = excluded.username,
			language_code = excluded.language_code, country = excluded.country, city = excluded.city, last_seen_at = excluded.last_seen_at`,
		bu.BotID, bu.TelegramUserID, bu.FirstName, bu.LastName, bu.Username, bu.LanguageCode, bu.Country, bu.City, bu.LastSeenAt)
	if err != nil {
		return apierr.Internal("upsert bot user", err)
	}
	return nil
}
