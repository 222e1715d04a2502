// Package ads persists Ads and enforces the lifecycle state machine:
// every transition that moves money is paired with exactly one call into
// the wallet service, inside the same logical transaction as the status
// change.
package ads

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
	"adxchange/internal/audit"
	"adxchange/internal/model"
	"adxchange/internal/pricing"
	"adxchange/internal/types"
	"adxchange/internal/wallet"
)

type Service struct {
	pool   *pgxpool.Pool
	wallet *wallet.Service
	audit  *audit.Service
}

func NewService(pool *pgxpool.Pool, walletSvc *wallet.Service, auditSvc *audit.Service) *Service {
	return &Service{pool: pool, wallet: walletSvc, audit: auditSvc}
}

type CreateDraftInput struct {
	AdvertiserID string
	ContentType  types.AdContentType
	Text         string
	HTMLContent  string
	MediaURL     string
	MediaType    string
	Buttons      []model.Button
	Poll         *model.Poll
	Category     string
	Targeting    model.Targeting
	Schedule     model.ScheduleWindow
}

func (s *Service) CreateDraft(ctx context.Context, in CreateDraftInput) (model.Ad, error) {
	ad := model.Ad{
		ID:           uuid.NewString(),
		AdvertiserID: in.AdvertiserID,
		ContentType:  in.ContentType,
		Text:         in.Text,
		HTMLContent:  in.HTMLContent,
		MediaURL:     in.MediaURL,
		MediaType:    in.MediaType,
		Buttons:      in.Buttons,
		Poll:         in.Poll,
		Category:     in.Category,
		Targeting:    in.Targeting,
		Schedule:     in.Schedule,
		Status:       types.AdStatusDraft,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.insert(ctx, ad); err != nil {
		return model.Ad{}, err
	}
	return ad, nil
}

// UpdatePricing recomputes and stores an ad's pricing snapshot. Only legal
// while the ad is still a DRAFT: content and pricing inputs are immutable
// once submitted.
func (s *Service) UpdatePricing(ctx context.Context, adID string, tier model.PricingTier, targetImpressions int64, cpmBid decimal.Decimal, platformFeePercentage decimal.Decimal, promo *pricing.PromoCode) (model.Ad, error) {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return model.Ad{}, err
	}
	if ad.Status != types.AdStatusDraft {
		return model.Ad{}, apierr.Conflict("pricing can only be edited while the ad is a draft")
	}

	result, err := pricing.Calculate(pricing.Input{
		Tier:                  tier,
		Impressions:           targetImpressions,
		Category:              ad.Category,
		Targeting:             ad.Targeting,
		CPMBid:                cpmBid,
		PlatformFeePercentage: platformFeePercentage,
		Promo:                 promo,
	})
	if err != nil {
		return model.Ad{}, err
	}

	ad.SelectedTierID = tier.ID
	ad.TargetImpressions = targetImpressions
	ad.BaseCPM = result.BaseCPM
	ad.CPMBid = cpmBid
	ad.FinalCPM = result.FinalCPM
	ad.TotalCost = result.TotalCost
	ad.PlatformFee = result.PlatformFee
	ad.BotOwnerRevenue = result.BotOwnerRevenue
	ad.RemainingBudget = result.TotalCost
	ad.UpdatedAt = time.Now().UTC()

	if err := s.update(ctx, ad); err != nil {
		return model.Ad{}, err
	}
	return ad, nil
}

// SubmitAd reserves the ad's total cost from the advertiser's wallet and
// advances the ad from DRAFT through SUBMITTED into PENDING_REVIEW, ready
// for the moderation queue.
func (s *Service) SubmitAd(ctx context.Context, adID string) (model.Ad, error) {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return model.Ad{}, err
	}
	if err := s.transition(ctx, &ad, types.AdStatusSubmitted); err != nil {
		return model.Ad{}, err
	}
	if _, err := s.wallet.ReserveForAd(ctx, ad.AdvertiserID, ad.ID, ad.TotalCost); err != nil {
		return model.Ad{}, err
	}
	if err := s.transition(ctx, &ad, types.AdStatusPending); err != nil {
		return model.Ad{}, err
	}
	return ad, nil
}

// ApproveAd confirms the reserved funds as spend and advances the ad to
// RUNNING, or to SCHEDULED if its window has a future start.
func (s *Service) ApproveAd(ctx context.Context, adID, moderatorID string) (model.Ad, error) {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return model.Ad{}, err
	}
	if ad.Status != types.AdStatusSubmitted && ad.Status != types.AdStatusPending {
		return model.Ad{}, apierr.Conflict("ad is not awaiting moderation")
	}
	if err := s.transition(ctx, &ad, types.AdStatusApproved); err != nil {
		return model.Ad{}, err
	}
	if _, err := s.wallet.ConfirmAdReserve(ctx, ad.AdvertiserID, ad.ID, ad.TotalCost); err != nil {
		return model.Ad{}, err
	}
	ad.ModeratedBy = moderatorID
	now := time.Now().UTC()
	ad.ModeratedAt = &now

	next := types.AdStatusRunning
	if ad.Schedule.Start != nil && ad.Schedule.Start.After(now) {
		next = types.AdStatusScheduled
	}
	if err := s.transition(ctx, &ad, next); err != nil {
		return model.Ad{}, err
	}
	s.logModeration(ctx, moderatorID, "approve", ad.ID, nil)
	return ad, nil
}

// RejectAd refunds the reservation and terminates the ad.
func (s *Service) RejectAd(ctx context.Context, adID, moderatorID, reason string) (model.Ad, error) {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return model.Ad{}, err
	}
	if ad.Status != types.AdStatusSubmitted && ad.Status != types.AdStatusPending {
		return model.Ad{}, apierr.Conflict("ad is not awaiting moderation")
	}
	if err := s.transition(ctx, &ad, types.AdStatusRejected); err != nil {
		return model.Ad{}, err
	}
	if _, err := s.wallet.RefundAdReserve(ctx, ad.AdvertiserID, ad.ID, ad.TotalCost); err != nil {
		return model.Ad{}, err
	}
	ad.ModeratedBy = moderatorID
	ad.RejectionReason = reason
	now := time.Now().UTC()
	ad.ModeratedAt = &now
	ad.UpdatedAt = now
	if err := s.update(ctx, ad); err != nil {
		return model.Ad{}, err
	}
	s.logModeration(ctx, moderatorID, "reject", ad.ID, map[string]string{"reason": reason})
	return ad, nil
}

// RequestEdit returns the ad to DRAFT so the advertiser can revise it,
// refunding the reservation made at submission.
func (s *Service) RequestEdit(ctx context.Context, adID, moderatorID, feedback string) (model.Ad, error) {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return model.Ad{}, err
	}
	if ad.Status != types.AdStatusSubmitted && ad.Status != types.AdStatusPending {
		return model.Ad{}, apierr.Conflict("ad is not awaiting moderation")
	}
	if err := s.transition(ctx, &ad, types.AdStatusDraft); err != nil {
		return model.Ad{}, err
	}
	if _, err := s.wallet.RefundAdReserve(ctx, ad.AdvertiserID, ad.ID, ad.TotalCost); err != nil {
		return model.Ad{}, err
	}
	ad.ModeratedBy = moderatorID
	ad.RejectionReason = feedback
	ad.UpdatedAt = time.Now().UTC()
	if err := s.update(ctx, ad); err != nil {
		return model.Ad{}, err
	}
	s.logModeration(ctx, moderatorID, "request_edit", ad.ID, map[string]string{"feedback": feedback})
	return ad, nil
}

// logModeration records an AuditLog entry for a moderation decision.
// Audit logging is best-effort: a write failure here must not unwind a
// decision that already committed to the ad/wallet tables.
func (s *Service) logModeration(ctx context.Context, actorID, action, adID string, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, actorID, action, "AD", adID, metadata)
}

// ListPending returns ads awaiting moderation (SUBMITTED or PENDING_REVIEW),
// oldest first, for the moderation queue.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]model.Ad, error) {
	rows, err := s.pool.Query(ctx, `
		select id from ads where status in ('SUBMITTED','PENDING_REVIEW') order by created_at asc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, apierr.Internal("list pending ads", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apierr.Internal("scan pending ad id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apierr.Internal("iterate pending ads", err)
	}

	out := make([]model.Ad, 0, len(ids))
	for _, id := range ids {
		ad, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ad)
	}
	return out, nil
}

func (s *Service) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `select count(*) from ads where status in ('SUBMITTED','PENDING_REVIEW')`).Scan(&n)
	if err != nil {
		return 0, apierr.Internal("count pending ads", err)
	}
	return n, nil
}

// DeleteAd cancels a draft, or an ad with funds still reserved, releasing
// whatever remains of its budget back to the advertiser.
func (s *Service) DeleteAd(ctx context.Context, adID string) error {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return err
	}
	if ad.Status == types.AdStatusDraft {
		return s.transition(ctx, &ad, types.AdStatusCancelled)
	}
	if (ad.Status == types.AdStatusSubmitted || ad.Status == types.AdStatusPending || ad.Status == types.AdStatusApproved) && ad.RemainingBudget.IsPositive() {
		if err := s.transition(ctx, &ad, types.AdStatusCancelled); err != nil {
			return err
		}
		_, err := s.wallet.ReleaseReserved(ctx, ad.AdvertiserID, ad.RemainingBudget, ad.ID)
		return err
	}
	return apierr.Conflict("ad cannot be deleted in its current state")
}

func (s *Service) PauseAd(ctx context.Context, adID string) (model.Ad, error) {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return model.Ad{}, err
	}
	if err := s.transition(ctx, &ad, types.AdStatusPaused); err != nil {
		return model.Ad{}, err
	}
	return ad, nil
}

func (s *Service) ResumeAd(ctx context.Context, adID string) (model.Ad, error) {
	ad, err := s.Get(ctx, adID)
	if err != nil {
		return model.Ad{}, err
	}
	if err := s.transition(ctx, &ad, types.AdStatusRunning); err != nil {
		return model.Ad{}, err
	}
	return ad, nil
}

// RecordDelivery atomically decrements remainingBudget by revenuePerImpression
// and increments deliveredImpressions, completing the ad when its budget or
// target is exhausted. It returns false if another caller already consumed
// the last affordable impression (the conditional UPDATE matched no rows).
func (s *Service) RecordDelivery(ctx context.Context, tx pgx.Tx, adID string, revenuePerImpression decimal.Decimal) (bool, error) {
	tag, err := tx.Exec(ctx, `
		update ads set
			remaining_budget = remaining_budget - $2,
			delivered_impressions = delivered_impressions + 1,
			updated_at = $3
		where id = $1 and status = 'RUNNING' and remaining_budget >= $2`,
		adID, revenuePerImpression, time.Now().UTC())
	if err != nil {
		return false, apierr.Internal("conditional ad delivery update", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	var remainingBudget decimal.Decimal
	var deliveredImpressions, targetImpressions int64
	err = tx.QueryRow(ctx, `select remaining_budget, delivered_impressions, target_impressions from ads where id = $1`, adID).
		Scan(&remainingBudget, &deliveredImpressions, &targetImpressions)
	if err != nil {
		return false, apierr.Internal("read ad after delivery", err)
	}
	if deliveredImpressions >= targetImpressions || !remainingBudget.IsPositive() {
		_, err := tx.Exec(ctx, `update ads set status = 'COMPLETED', completed_at = $2, updated_at = $2 where id = $1 and status = 'RUNNING'`, adID, time.Now().UTC())
		if err != nil {
			return false, apierr.Internal("complete ad", err)
		}
	}
	return true, nil
}

// CandidateAd is the slice of Ad fields the ad server needs to rank
// eligible candidates without loading full creative content twice.
type CandidateAd struct {
	ID              string
	AdvertiserID    string
	FinalCPM        decimal.Decimal
	RemainingBudget decimal.Decimal
	CreatedAt       time.Time
	Category        string
	Targeting       model.Targeting
	Schedule        model.ScheduleWindow
}

// ListEligible returns running ads with a positive remaining budget (not
// necessarily enough for one more impression), for the caller (ad server)
// to apply bot-specific exclusion and ranking rules in memory.
func (s *Service) ListEligible(ctx context.Context, category string, now time.Time) ([]CandidateAd, error) {
	rows, err := s.pool.Query(ctx, `
		select id, advertiser_id, final_cpm, remaining_budget, created_at, category, targeting, schedule
		from ads where status = 'RUNNING' and remaining_budget > 0`)
	if err != nil {
		return nil, apierr.Internal("list eligible ads", err)
	}
	defer rows.Close()

	var out []CandidateAd
	for rows.Next() {
		var c CandidateAd
		var targetingRaw, scheduleRaw []byte
		if err := rows.Scan(&c.ID, &c.AdvertiserID, &c.FinalCPM, &c.RemainingBudget, &c.CreatedAt, &c.Category, &targetingRaw, &scheduleRaw); err != nil {
			return nil, apierr.Internal("scan eligible ad", err)
		}
		_ = json.Unmarshal(targetingRaw, &c.Targeting)
		_ = json.Unmarshal(scheduleRaw, &c.Schedule)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) Get(ctx context.Context, adID string) (model.Ad, error) {
	var ad model.Ad
	var buttonsRaw, pollRaw, targetingRaw, scheduleRaw []byte
	err := s.pool.QueryRow(ctx, `
		select id, advertiser_id, content_type, text, html_content, media_url, media_type, buttons, poll,
			selected_tier_id, target_impressions, delivered_impressions, base_cpm, cpm_bid, final_cpm,
			total_cost, platform_fee, bot_owner_revenue, remaining_budget, category, targeting, status,
			schedule, moderated_by, moderated_at, rejection_reason, is_archived, created_at, updated_at, completed_at
		from ads where id = $1`, adID).Scan(
		&ad.ID, &ad.AdvertiserID, &ad.ContentType, &ad.Text, &ad.HTMLContent, &ad.MediaURL, &ad.MediaType, &buttonsRaw, &pollRaw,
		&ad.SelectedTierID, &ad.TargetImpressions, &ad.DeliveredImpressions, &ad.BaseCPM, &ad.CPMBid, &ad.FinalCPM,
		&ad.TotalCost, &ad.PlatformFee, &ad.BotOwnerRevenue, &ad.RemainingBudget, &ad.Category, &targetingRaw, &ad.Status,
		&scheduleRaw, &ad.ModeratedBy, &ad.ModeratedAt, &ad.RejectionReason, &ad.IsArchived, &ad.CreatedAt, &ad.UpdatedAt, &ad.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ad{}, apierr.NotFound("ad not found")
	}
	if err != nil {
		return model.Ad{}, apierr.Internal("get ad", err)
	}
	_ = json.Unmarshal(buttonsRaw, &ad.Buttons)
	if len(pollRaw) > 0 {
		_ = json.Unmarshal(pollRaw, &ad.Poll)
	}
	_ = json.Unmarshal(targetingRaw, &ad.Targeting)
	_ = json.Unmarshal(scheduleRaw, &ad.Schedule)
	return ad, nil
}

func (s *Service) transition(ctx context.Context, ad *model.Ad, to types.AdStatus) error {
	if !isValidTransition(ad.Status, to) {
		return apierr.Conflict("illegal ad transition from " + string(ad.Status) + " to " + string(to))
	}
	ad.Status = to
	ad.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `update ads set status = $2, updated_at = $3 where id = $1`, ad.ID, string(to), ad.UpdatedAt)
	if err != nil {
		return apierr.Internal("update ad status", err)
	}
	return nil
}

func (s *Service) insert(ctx context.Context, ad model.Ad) error {
	buttons, _ := json.Marshal(ad.Buttons)
	poll, _ := json.Marshal(ad.Poll)
	targeting, _ := json.Marshal(ad.Targeting)
	schedule, _ := json.Marshal(ad.Schedule)
	_, err := s.pool.Exec(ctx, `
		insert into ads (id, advertiser_id, content_type, text, html_content, media_url, media_type, buttons, poll,
			selected_tier_id, target_impressions, delivered_impressions, base_cpm, cpm_bid, final_cpm,
			total_cost, platform_fee, bot_owner_revenue, remaining_budget, category, targeting, status,
			schedule, is_archived, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`,
		ad.ID, ad.AdvertiserID, string(ad.ContentType), ad.Text, ad.HTMLContent, ad.MediaURL, ad.MediaType, buttons, poll,
		ad.SelectedTierID, ad.TargetImpressions, ad.DeliveredImpressions, ad.BaseCPM, ad.CPMBid, ad.FinalCPM,
		ad.TotalCost, ad.PlatformFee, ad.BotOwnerRevenue, ad.RemainingBudget, ad.Category, targeting, string(ad.Status),
		schedule, ad.IsArchived, ad.CreatedAt, ad.UpdatedAt)
	if err != nil {
		return apierr.Internal("insert ad", err)
	}
	return nil
}

func (s *Service) update(ctx context.Context, ad model.Ad) error {
	buttons, _ := json.Marshal(ad.Buttons)
	poll, _ := json.Marshal(ad.Poll)
	targeting, _ := json.Marshal(ad.Targeting)
	_, err := s.pool.Exec(ctx, `
		update ads set content_type=$2, text=$3, html_content=$4, media_url=$5, media_type=$6, buttons=$7, poll=$8,
			selected_tier_id=$9, target_impressions=$10, base_cpm=$11, cpm_bid=$12, final_cpm=$13,
			total_cost=$14, platform_fee=$15, bot_owner_revenue=$16, remaining_budget=$17, category=$18,
			targeting=$19, status=$20, moderated_by=$21, moderated_at=$22, rejection_reason=$23, updated_at=$24
		where id = $1`,
		ad.ID, string(ad.ContentType), ad.Text, ad.HTMLContent, ad.MediaURL, ad.MediaType, buttons, poll,
		ad.SelectedTierID, ad.TargetImpressions, ad.BaseCPM, ad.CPMBid, ad.FinalCPM,
		ad.TotalCost, ad.PlatformFee, ad.BotOwnerRevenue, ad.RemainingBudget, ad.Category,
		targeting, string(ad.Status), ad.ModeratedBy, ad.ModeratedAt, ad.RejectionReason, ad.UpdatedAt)
	if err != nil {
		return apierr.Internal("update ad", err)
	}
	return nil
}

// IsAdActive reports whether now falls within the ad's schedule window,
// day-of-week set, and hour-of-day ranges (all compared in UTC).
func IsAdActive(schedule model.ScheduleWindow, now time.Time) bool {
	if schedule.Start != nil && now.Before(*schedule.Start) {
		return false
	}
	if schedule.End != nil && now.After(*schedule.End) {
		return false
	}
	if len(schedule.ActiveDays) > 0 {
		day := int(now.UTC().Weekday())
		found := false
		for _, d := range schedule.ActiveDays {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(schedule.ActiveHours) > 0 {
		hour := now.UTC().Hour()
		found := false
		for _, rng := range schedule.ActiveHours {
			if hour >= rng.StartHour && hour < rng.EndHour {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
