// Package adserver is the bot-facing hot path: authenticate, authorize,
// gate by frequency, select an eligible ad, bill it atomically, and
// record the delivery. Every other component in this system is low
// volume by comparison; this is the one that must never hold a database
// transaction open across an outbound call.
package adserver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"adxchange/internal/ads"
	"adxchange/internal/apierr"
	"adxchange/internal/bots"
	"adxchange/internal/botkey"
	"adxchange/internal/model"
	"adxchange/internal/platform/cache"
	"adxchange/internal/pricing"
	"adxchange/internal/types"
	"adxchange/internal/wallet"
)

const idempotencyWindow = 60 * time.Second

type Service struct {
	pool                  *pgxpool.Pool
	botkey                *botkey.Service
	bots                  *bots.Service
	ads                   *ads.Service
	wallet                *wallet.Service
	cache                 *cache.Cache
	platformFeePercentage decimal.Decimal
	clickBaseURL          string
	sf                    singleflight.Group
}

func NewService(pool *pgxpool.Pool, botkeySvc *botkey.Service, botsSvc *bots.Service, adsSvc *ads.Service, walletSvc *wallet.Service, c *cache.Cache, platformFeePercentage decimal.Decimal, clickBaseURL string) *Service {
	return &Service{
		pool:                  pool,
		botkey:                botkeySvc,
		bots:                  botsSvc,
		ads:                   adsSvc,
		wallet:                walletSvc,
		cache:                 c,
		platformFeePercentage: platformFeePercentage,
		clickBaseURL:          clickBaseURL,
	}
}

type EndUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Country      string `json:"country,omitempty"`
	City         string `json:"city,omitempty"`
}

type SendPostRequest struct {
	User      EndUser `json:"user"`
	ChatID    int64   `json:"chatId"`
	Context   string  `json:"context,omitempty"`
	RequestID string  `json:"requestId,omitempty"`
}

type InlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type ReplyMarkup struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

type SendPostResponse struct {
	AdID        string      `json:"adId"`
	MessageID   string      `json:"messageId"`
	Text        string      `json:"text,omitempty"`
	ParseMode   string      `json:"parse_mode,omitempty"`
	Photo       string      `json:"photo,omitempty"`
	Caption     string      `json:"caption,omitempty"`
	ReplyMarkup ReplyMarkup `json:"reply_markup"`
}

// SendPost runs the full delivery pipeline. A nil response with a nil
// error means "no eligible ad" (204); callers must not treat that as a
// failure.
func (s *Service) SendPost(ctx context.Context, apiKey string, req SendPostRequest) (*SendPostResponse, error) {
	bot, err := s.botkey.Verify(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, bot.OwnerID); err != nil {
		return nil, err
	}

	if req.RequestID != "" {
		var cached SendPostResponse
		found, err := s.cache.GetJSON(ctx, cache.IdempotencyKey(bot.ID, req.RequestID), &cached)
		if err != nil {
			// Past authorization, every failure is answered as "no ad" (204).
			return nil, nil
		}
		if found {
			return &cached, nil
		}
	}

	freqKey := cache.FrequencyKey(bot.ID, fmt.Sprintf("%d", req.User.ID))
	window := time.Duration(bot.FrequencyMinutes) * time.Minute
	seenRecently, err := s.cache.SeenRecently(ctx, freqKey, window)
	if err != nil {
		return nil, nil
	}
	if seenRecently {
		return nil, nil
	}

	sfKey := fmt.Sprintf("%s:%d", bot.ID, req.User.ID)
	result, err, _ := s.sf.Do(sfKey, func() (interface{}, error) {
		return s.deliver(ctx, bot, req)
	})
	if err != nil {
		return nil, nil
	}
	resp, _ := result.(*SendPostResponse)

	if resp != nil && req.RequestID != "" {
		_ = s.cache.SetJSON(ctx, cache.IdempotencyKey(bot.ID, req.RequestID), resp, idempotencyWindow)
	}
	return resp, nil
}

func (s *Service) authorizeOwner(ctx context.Context, ownerID string) error {
	var isActive, isBanned bool
	err := s.pool.QueryRow(ctx, `select is_active, is_banned from users where id = $1`, ownerID).Scan(&isActive, &isBanned)
	if err != nil {
		return apierr.Authorization("bot owner not found")
	}
	if isBanned || !isActive {
		return apierr.Authorization("bot owner is not active")
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, bot model.Bot, req SendPostRequest) (*SendPostResponse, error) {
	now := time.Now().UTC()
	candidates, err := s.ads.ListEligible(ctx, bot.Category, now)
	if err != nil {
		return nil, err
	}
	ranked := rankCandidates(filterCandidates(candidates, bot, req.User.ID, now))
	if len(ranked) == 0 {
		return nil, nil
	}

	for _, candidate := range ranked {
		ad, err := s.ads.Get(ctx, candidate.ID)
		if err != nil {
			continue
		}
		revenue := pricing.CalculateImpressionRevenue(ad.FinalCPM, s.platformFeePercentage)

		delivered, impressionID, err := s.recordDeliveryTx(ctx, ad.ID, bot, req, revenue)
		if err != nil {
			return nil, err
		}
		if !delivered {
			continue // another caller won the race on this ad; try the next candidate
		}

		if err := s.creditOwner(ctx, bot, impressionID, revenue); err != nil {
			return nil, err
		}

		freqKey := cache.FrequencyKey(bot.ID, fmt.Sprintf("%d", req.User.ID))
		_ = s.cache.MarkSeen(ctx, freqKey, time.Duration(bot.FrequencyMinutes)*time.Minute)

		return s.assembleResponse(ad, bot, req, impressionID), nil
	}
	return nil, nil
}

func (s *Service) recordDeliveryTx(ctx context.Context, adID string, bot model.Bot, req SendPostRequest, revenue pricing.ImpressionRevenue) (bool, string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, "", apierr.Internal("begin delivery tx", err)
	}
	defer tx.Rollback(ctx)

	delivered, err := s.ads.RecordDelivery(ctx, tx, adID, revenue.RevenuePerImpression)
	if err != nil {
		return false, "", err
	}
	if !delivered {
		return false, "", nil
	}

	impressionID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		insert into impressions (id, ad_id, bot_id, telegram_user_id, first_name, last_name, username,
			language_code, country, city, revenue, platform_fee, bot_owner_earns, message_id, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		impressionID, adID, bot.ID, req.User.ID, req.User.FirstName, req.User.LastName, req.User.Username,
		req.User.LanguageCode, req.User.Country, req.User.City, revenue.RevenuePerImpression, revenue.PlatformFee,
		revenue.BotOwnerEarns, impressionID, time.Now().UTC())
	if err != nil {
		return false, "", apierr.Internal("insert impression", err)
	}

	if err := s.bots.UpsertBotUser(ctx, tx, model.BotUser{
		BotID: bot.ID, TelegramUserID: req.User.ID, FirstName: req.User.FirstName, LastName: req.User.LastName,
		Username: req.User.Username, LanguageCode: req.User.LanguageCode, Country: req.User.Country, City: req.User.City,
		LastSeenAt: time.Now().UTC(),
	}); err != nil {
		return false, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, "", apierr.Internal("commit delivery tx", err)
	}
	return true, impressionID, nil
}

// creditOwner runs after the delivery transaction commits: the Ad Server
// must not hold a transaction open across these separate writer calls, so
// owner crediting happens lazily, immediately after, not inside the same
// transaction as the delivery record.
func (s *Service) creditOwner(ctx context.Context, bot model.Bot, impressionID string, revenue pricing.ImpressionRevenue) error {
	if _, err := s.wallet.Credit(ctx, bot.OwnerID, revenue.BotOwnerEarns, types.LedgerEntryEarnings, impressionID, "ad impression revenue"); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apierr.Internal("begin owner earnings tx", err)
	}
	defer tx.Rollback(ctx)
	if err := s.bots.CreditEarnings(ctx, tx, bot.ID, revenue.BotOwnerEarns); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apierr.Internal("commit owner earnings tx", err)
	}
	return nil
}

func filterCandidates(candidates []ads.CandidateAd, bot model.Bot, telegramUserID int64, now time.Time) []ads.CandidateAd {
	var out []ads.CandidateAd
	for _, c := range candidates {
		if !ads.IsAdActive(c.Schedule, now) {
			continue
		}
		if containsString(c.Targeting.ExcludedBots, bot.ID) {
			continue
		}
		if len(c.Targeting.SpecificBots) > 0 && !containsString(c.Targeting.SpecificBots, bot.ID) {
			continue
		}
		if containsInt64(c.Targeting.ExcludedUsers, telegramUserID) {
			continue
		}
		if !categoryCompatible(c.Category, bot) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func categoryCompatible(adCategory string, bot model.Bot) bool {
	if len(bot.AllowedCategories) > 0 && !containsString(bot.AllowedCategories, adCategory) {
		return false
	}
	if containsString(bot.BlockedCategories, adCategory) {
		return false
	}
	return true
}

func rankCandidates(candidates []ads.CandidateAd) []ads.CandidateAd {
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].FinalCPM.Equal(candidates[j].FinalCPM) {
			return candidates[i].FinalCPM.GreaterThan(candidates[j].FinalCPM)
		}
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].RemainingBudget.LessThan(candidates[j].RemainingBudget)
	})
	return candidates
}

func (s *Service) assembleResponse(ad model.Ad, bot model.Bot, req SendPostRequest, impressionID string) *SendPostResponse {
	resp := &SendPostResponse{AdID: ad.ID, MessageID: impressionID}
	var rows [][]InlineButton
	var row []InlineButton
	for i, b := range ad.Buttons {
		row = append(row, InlineButton{Text: b.Text, URL: s.clickLink(ad.ID, bot.ID, i, req.User.ID)})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	resp.ReplyMarkup = ReplyMarkup{InlineKeyboard: rows}

	switch ad.ContentType {
	case types.AdContentTypeMedia:
		resp.Photo = ad.MediaURL
		resp.Caption = ad.Text
	case types.AdContentTypeHTML:
		resp.Text = ad.HTMLContent
		resp.ParseMode = "HTML"
	case types.AdContentTypeMarkdown:
		resp.Text = ad.Text
		resp.ParseMode = "MarkdownV2"
	default:
		resp.Text = ad.Text
	}
	return resp
}

func (s *Service) clickLink(adID, botID string, buttonIndex int, telegramUserID int64) string {
	return fmt.Sprintf("%s/c/%s/%s/%d?u=%d", s.clickBaseURL, adID, botID, buttonIndex, telegramUserID)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsInt64(list []int64, v int64) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
