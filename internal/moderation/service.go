package moderation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adxchange/internal/ads"
	"adxchange/internal/apierr"
	"adxchange/internal/audit"
	"adxchange/internal/bots"
	"adxchange/internal/telegramadapter"
	"adxchange/internal/types"
	"adxchange/internal/withdraw"
)

// SafetyCheck is an optional hook consulted before a moderator's decision
// is applied: a confidence above 0.9 auto-rejects instead of entering the
// normal approve/reject path. Left nil, every decision goes through the
// moderator unmodified.
type SafetyCheck func(ctx context.Context, kind types.ModerationKind, entityID string) (confidence float64, reason string, err error)

const autoRejectConfidence = 0.9

type Service struct {
	pool     *pgxpool.Pool
	ads      *ads.Service
	bots     *bots.Service
	withdraw *withdraw.Service
	audit    *audit.Service
	bus      *Bus
	safety   SafetyCheck
	notifier telegramadapter.Adapter
}

func NewService(pool *pgxpool.Pool, adsSvc *ads.Service, botsSvc *bots.Service, withdrawSvc *withdraw.Service, auditSvc *audit.Service, bus *Bus) *Service {
	return &Service{pool: pool, ads: adsSvc, bots: botsSvc, withdraw: withdrawSvc, audit: auditSvc, bus: bus}
}

// SetSafetyCheck wires an automated pre-screen; called once at startup.
func (s *Service) SetSafetyCheck(check SafetyCheck) {
	s.safety = check
}

// SetNotifier wires outbound Telegram notifications for moderation
// decisions; called once at startup.
func (s *Service) SetNotifier(notifier telegramadapter.Adapter) {
	s.notifier = notifier
}

// notifyOwner looks up the telegram ID behind an internal user ID and
// best-effort notifies them of a moderation outcome. A lookup or delivery
// failure never blocks or reverts the decision that already committed.
func (s *Service) notifyOwner(ctx context.Context, userID, text string) {
	if s.notifier == nil || s.pool == nil {
		return
	}
	var telegramID int64
	err := s.pool.QueryRow(ctx, `select telegram_id from users where id = $1`, userID).Scan(&telegramID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return
	}
	if telegramID == 0 {
		return
	}
	_ = s.notifier.Notify(ctx, telegramadapter.Notification{TelegramUserID: telegramID, Text: text})
}

type PendingEntry struct {
	Kind     types.ModerationKind `json:"kind"`
	EntityID string                `json:"entityId"`
}

// GetPending lists queue entries for one kind, paginated.
func (s *Service) GetPending(ctx context.Context, kind types.ModerationKind, limit, offset int) ([]PendingEntry, error) {
	var ids []string
	var err error
	switch kind {
	case types.ModerationKindAd:
		list, e := s.ads.ListPending(ctx, limit, offset)
		err = e
		for _, a := range list {
			ids = append(ids, a.ID)
		}
	case types.ModerationKindBot:
		list, e := s.bots.ListPending(ctx, limit, offset)
		err = e
		for _, b := range list {
			ids = append(ids, b.ID)
		}
	case types.ModerationKindWithdrawal:
		list, e := s.withdraw.ListPending(ctx, limit, offset)
		err = e
		for _, w := range list {
			ids = append(ids, w.ID)
		}
	default:
		return nil, apierr.Validation("unknown moderation kind")
	}
	if err != nil {
		return nil, err
	}
	out := make([]PendingEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, PendingEntry{Kind: kind, EntityID: id})
	}
	return out, nil
}

// Approve applies the moderator's approval, running the safety check
// first: a high-confidence automated flag overrides the moderator with
// an auto-reject instead.
func (s *Service) Approve(ctx context.Context, kind types.ModerationKind, entityID, moderatorID string) error {
	if rejected, err := s.autoReject(ctx, kind, entityID, moderatorID); rejected || err != nil {
		return err
	}
	switch kind {
	case types.ModerationKindAd:
		ad, err := s.ads.ApproveAd(ctx, entityID, moderatorID)
		if err != nil {
			return err
		}
		s.notifyOwner(ctx, ad.AdvertiserID, "Your ad has been approved and is now live.")
	case types.ModerationKindBot:
		bot, err := s.bots.Get(ctx, entityID)
		if err == nil {
			s.notifyOwner(ctx, bot.OwnerID, "Your bot has been approved.")
		}
		if err := s.bots.Activate(ctx, entityID); err != nil {
			return err
		}
		s.logAudit(ctx, moderatorID, "approve", "BOT", entityID, nil)
	case types.ModerationKindWithdrawal:
		wr, err := s.withdraw.Approve(ctx, entityID, moderatorID)
		if err != nil {
			return err
		}
		s.notifyOwner(ctx, wr.UserID, "Your withdrawal request has been approved.")
	default:
		return apierr.Validation("unknown moderation kind")
	}
	s.pushCounts(ctx)
	return nil
}

func (s *Service) Reject(ctx context.Context, kind types.ModerationKind, entityID, moderatorID, reason string) error {
	switch kind {
	case types.ModerationKindAd:
		ad, err := s.ads.RejectAd(ctx, entityID, moderatorID, reason)
		if err != nil {
			return err
		}
		s.notifyOwner(ctx, ad.AdvertiserID, "Your ad was rejected: "+reason)
	case types.ModerationKindBot:
		bot, err := s.bots.Get(ctx, entityID)
		if err == nil {
			s.notifyOwner(ctx, bot.OwnerID, "Your bot was rejected.")
		}
		if err := s.bots.Reject(ctx, entityID); err != nil {
			return err
		}
		s.logAudit(ctx, moderatorID, "reject", "BOT", entityID, map[string]string{"reason": reason})
	case types.ModerationKindWithdrawal:
		wr, err := s.withdraw.Reject(ctx, entityID, moderatorID, reason)
		if err == nil {
			s.notifyOwner(ctx, wr.UserID, "Your withdrawal request was rejected: "+reason)
		}
		if err != nil {
			return err
		}
	default:
		return apierr.Validation("unknown moderation kind")
	}
	s.pushCounts(ctx)
	return nil
}

// RequestEdit only applies to ads: bots and withdrawals are pass/fail,
// with no draft state to return to.
func (s *Service) RequestEdit(ctx context.Context, adID, moderatorID, feedback string) error {
	if _, err := s.ads.RequestEdit(ctx, adID, moderatorID, feedback); err != nil {
		return err
	}
	s.pushCounts(ctx)
	return nil
}

func (s *Service) autoReject(ctx context.Context, kind types.ModerationKind, entityID, moderatorID string) (bool, error) {
	if s.safety == nil {
		return false, nil
	}
	confidence, reason, err := s.safety(ctx, kind, entityID)
	if err != nil {
		return false, err
	}
	if confidence <= autoRejectConfidence {
		return false, nil
	}
	if err := s.Reject(ctx, kind, entityID, moderatorID, "automated safety check: "+reason); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Service) logAudit(ctx context.Context, actorID, action, entityType, entityID string, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, actorID, action, entityType, entityID, metadata)
}

// pushCounts recomputes every queue's depth and publishes it to connected
// admin panels. Best-effort: a websocket push failing never blocks a
// moderation decision that already committed.
func (s *Service) pushCounts(ctx context.Context) {
	if s.bus == nil {
		return
	}
	var counts PendingCounts
	if n, err := s.ads.CountPending(ctx); err == nil {
		counts.Ads = n
	}
	if n, err := s.bots.CountPending(ctx); err == nil {
		counts.Bots = n
	}
	if n, err := s.withdraw.CountPending(ctx); err == nil {
		counts.Withdrawals = n
	}
	s.bus.Publish(QueueEvent{Type: "pending_counts", Data: counts})
}
