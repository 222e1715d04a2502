// Package clicktracking records button clicks on delivered ads and
// resolves the short /c/<adId>/<botId>/<buttonIndex> link the ad server
// hands end users back to the advertiser's original URL.
package clicktracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adxchange/internal/apierr"
	"adxchange/internal/model"
)

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

type RecordInput struct {
	AdID           string
	BotID          string
	ButtonIndex    int
	TelegramUserID int64
	IPAddress      string
}

// Record looks up the original button URL for (adId, buttonIndex),
// inserts an immutable ClickEvent, and returns the URL the caller should
// redirect to. The click is recorded even if the ad has since completed
// or been paused: the impression that produced the button already billed
// the advertiser.
func (s *Service) Record(ctx context.Context, in RecordInput) (string, error) {
	originalURL, err := s.buttonURL(ctx, in.AdID, in.ButtonIndex)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		insert into click_events (id, ad_id, bot_id, telegram_user_id, button_index, original_url, clicked, clicked_at, ip_address, created_at)
		values ($1,$2,$3,$4,$5,$6,true,$7,$8,$7)`,
		uuid.NewString(), in.AdID, in.BotID, in.TelegramUserID, in.ButtonIndex, originalURL, now, in.IPAddress)
	if err != nil {
		return "", apierr.Internal("insert click event", err)
	}
	return originalURL, nil
}

func (s *Service) buttonURL(ctx context.Context, adID string, buttonIndex int) (string, error) {
	var buttonsRaw []byte
	err := s.pool.QueryRow(ctx, `select buttons from ads where id = $1`, adID).Scan(&buttonsRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apierr.NotFound("ad not found")
	}
	if err != nil {
		return "", apierr.Internal("load ad buttons", err)
	}

	var buttons []model.Button
	if err := json.Unmarshal(buttonsRaw, &buttons); err != nil {
		return "", apierr.Internal("decode ad buttons", err)
	}
	if buttonIndex < 0 || buttonIndex >= len(buttons) {
		return "", apierr.NotFound("button index out of range")
	}
	return buttons[buttonIndex].URL, nil
}

// ListByAd returns recorded clicks for an ad, most recent first, for the
// advertiser-facing click report.
func (s *Service) ListByAd(ctx context.Context, adID string, limit int) ([]model.ClickEvent, error) {
	rows, err := s.pool.Query(ctx, `
		select id, ad_id, bot_id, telegram_user_id, button_index, original_url, clicked, clicked_at, ip_address, created_at
		from click_events where ad_id = $1 order by created_at desc limit $2`, adID, limit)
	if err != nil {
		return nil, apierr.Internal("list click events", err)
	}
	defer rows.Close()

	var out []model.ClickEvent
	for rows.Next() {
		var c model.ClickEvent
		if err := rows.Scan(&c.ID, &c.AdID, &c.BotID, &c.TelegramUserID, &c.ButtonIndex, &c.OriginalURL, &c.Clicked, &c.ClickedAt, &c.IPAddress, &c.CreatedAt); err != nil {
			return nil, apierr.Internal("scan click event", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
