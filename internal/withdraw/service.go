// Package withdraw implements the payout workflow: an advertiser or bot
// owner requests a withdrawal against their available balance, funds are
// reserved immediately, and a moderator's later approve/reject finalizes
// or releases the hold. No withdrawal ever touches the wallet twice.
package withdraw

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"adxchange/internal/apierr"
	"adxchange/internal/model"
	"adxchange/internal/types"
	"adxchange/internal/wallet"
)

// addressPatterns validates a payout address by network. Networks not
// listed fall back to a permissive non-empty check.
var addressPatterns = map[string]*regexp.Regexp{
	"TRC20": regexp.MustCompile(`^T[A-Za-z0-9]{33}$`),
	"ERC20": regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`),
	"BTC":   regexp.MustCompile(`^(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,62}$`),
}

type Service struct {
	pool      *pgxpool.Pool
	wallet    *wallet.Service
	minUSD    decimal.Decimal
	maxDaily  decimal.Decimal
	fixedFee  decimal.Decimal
}

func NewService(pool *pgxpool.Pool, walletSvc *wallet.Service, minUSD, maxDailyUSD, fixedFeeUSD decimal.Decimal) *Service {
	return &Service{pool: pool, wallet: walletSvc, minUSD: minUSD, maxDaily: maxDailyUSD, fixedFee: fixedFeeUSD}
}

type CreateInput struct {
	UserID  string
	Coin    string
	Network string
	Address string
	Amount  decimal.Decimal
}

// Create validates the request against the address format, the minimum
// amount, and the rolling 24h cap, reserves amount+fee from the user's
// wallet, and inserts a REQUESTED row.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.WithdrawRequest, error) {
	if in.Amount.LessThan(s.minUSD) {
		return model.WithdrawRequest{}, apierr.Validation("amount is below the minimum withdrawal")
	}
	if !validAddress(in.Network, in.Address) {
		return model.WithdrawRequest{}, apierr.Validation("invalid payout address for network " + in.Network)
	}

	spentToday, err := s.spentLast24h(ctx, in.UserID)
	if err != nil {
		return model.WithdrawRequest{}, err
	}
	if spentToday.Add(in.Amount).GreaterThan(s.maxDaily) {
		return model.WithdrawRequest{}, apierr.Conflict("daily withdrawal limit exceeded")
	}

	fee := s.fixedFee
	netAmount := in.Amount.Sub(fee)
	if netAmount.LessThanOrEqual(decimal.Zero) {
		return model.WithdrawRequest{}, apierr.Validation("amount does not cover the withdrawal fee")
	}

	wr := model.WithdrawRequest{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Coin:      in.Coin,
		Network:   in.Network,
		Address:   in.Address,
		Amount:    in.Amount,
		Fee:       fee,
		NetAmount: netAmount,
		Status:    types.WithdrawRequested,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if _, err := s.wallet.Reserve(ctx, in.UserID, in.Amount, wr.ID); err != nil {
		return model.WithdrawRequest{}, err
	}

	_, err = s.pool.Exec(ctx, `
		insert into withdraw_requests (id, user_id, coin, network, address, amount, fee, net_amount, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		wr.ID, wr.UserID, wr.Coin, wr.Network, wr.Address, wr.Amount, wr.Fee, wr.NetAmount, string(wr.Status), wr.CreatedAt, wr.UpdatedAt)
	if err != nil {
		return model.WithdrawRequest{}, apierr.Internal("insert withdraw request", err)
	}
	return wr, nil
}

// Approve finalizes the reservation as withdrawn funds and records the
// external Transaction leg the advertiser/owner sees in their history.
func (s *Service) Approve(ctx context.Context, id, moderatorID string) (model.WithdrawRequest, error) {
	wr, err := s.Get(ctx, id)
	if err != nil {
		return model.WithdrawRequest{}, err
	}
	if wr.Status != types.WithdrawRequested && wr.Status != types.WithdrawPendingReview {
		return model.WithdrawRequest{}, apierr.Conflict("withdrawal is not awaiting approval")
	}
	if _, err := s.wallet.ConfirmReserved(ctx, wr.UserID, wr.Amount, wr.ID); err != nil {
		return model.WithdrawRequest{}, err
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		insert into transactions (id, user_id, type, provider, coin, network, amount, fee, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
		uuid.NewString(), wr.UserID, string(types.TransactionWithdraw), "manual", wr.Coin, wr.Network, wr.NetAmount, wr.Fee, string(types.TransactionSuccess), now)
	if err != nil {
		return model.WithdrawRequest{}, apierr.Internal("insert withdraw transaction", err)
	}

	wr.Status = types.WithdrawCompleted
	wr.ApprovedBy = moderatorID
	wr.ApprovedAt = &now
	wr.UpdatedAt = now
	if err := s.update(ctx, wr); err != nil {
		return model.WithdrawRequest{}, err
	}
	return wr, nil
}

// Reject releases the hold back to available balance.
func (s *Service) Reject(ctx context.Context, id, moderatorID, reason string) (model.WithdrawRequest, error) {
	wr, err := s.Get(ctx, id)
	if err != nil {
		return model.WithdrawRequest{}, err
	}
	if wr.Status != types.WithdrawRequested && wr.Status != types.WithdrawPendingReview {
		return model.WithdrawRequest{}, apierr.Conflict("withdrawal is not awaiting approval")
	}
	if _, err := s.wallet.ReleaseReserved(ctx, wr.UserID, wr.Amount, wr.ID); err != nil {
		return model.WithdrawRequest{}, err
	}
	now := time.Now().UTC()
	wr.Status = types.WithdrawRejected
	wr.ApprovedBy = moderatorID
	wr.Reason = reason
	wr.UpdatedAt = now
	if err := s.update(ctx, wr); err != nil {
		return model.WithdrawRequest{}, err
	}
	return wr, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.WithdrawRequest, error) {
	var wr model.WithdrawRequest
	var statusRaw string
	err := s.pool.QueryRow(ctx, `
		select id, user_id, coin, network, address, amount, fee, net_amount, status, coalesce(approved_by,''), approved_at, coalesce(reason,''), created_at, updated_at
		from withdraw_requests where id = $1`, id).Scan(
		&wr.ID, &wr.UserID, &wr.Coin, &wr.Network, &wr.Address, &wr.Amount, &wr.Fee, &wr.NetAmount, &statusRaw,
		&wr.ApprovedBy, &wr.ApprovedAt, &wr.Reason, &wr.CreatedAt, &wr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WithdrawRequest{}, apierr.NotFound("withdraw request not found")
	}
	if err != nil {
		return model.WithdrawRequest{}, apierr.Internal("get withdraw request", err)
	}
	wr.Status = types.WithdrawStatus(statusRaw)
	return wr, nil
}

// ListPending returns withdrawals awaiting moderation, oldest first.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]model.WithdrawRequest, error) {
	rows, err := s.pool.Query(ctx, `
		select id, user_id, coin, network, address, amount, fee, net_amount, status, coalesce(approved_by,''), approved_at, coalesce(reason,''), created_at, updated_at
		from withdraw_requests where status in ('REQUESTED','PENDING_REVIEW') order by created_at asc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, apierr.Internal("list pending withdrawals", err)
	}
	defer rows.Close()

	var out []model.WithdrawRequest
	for rows.Next() {
		var wr model.WithdrawRequest
		var statusRaw string
		if err := rows.Scan(&wr.ID, &wr.UserID, &wr.Coin, &wr.Network, &wr.Address, &wr.Amount, &wr.Fee, &wr.NetAmount,
			&statusRaw, &wr.ApprovedBy, &wr.ApprovedAt, &wr.Reason, &wr.CreatedAt, &wr.UpdatedAt); err != nil {
			return nil, apierr.Internal("scan withdraw request", err)
		}
		wr.Status = types.WithdrawStatus(statusRaw)
		out = append(out, wr)
	}
	return out, rows.Err()
}

func (s *Service) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `select count(*) from withdraw_requests where status in ('REQUESTED','PENDING_REVIEW')`).Scan(&n)
	if err != nil {
		return 0, apierr.Internal("count pending withdrawals", err)
	}
	return n, nil
}

func (s *Service) spentLast24h(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		select coalesce(sum(amount), 0) from withdraw_requests
		where user_id = $1 and created_at > $2 and status not in ('REJECTED','CANCELLED')`,
		userID, time.Now().UTC().Add(-24*time.Hour)).Scan(&sum)
	if err != nil {
		return decimal.Zero, apierr.Internal("sum recent withdrawals", err)
	}
	return sum, nil
}

func (s *Service) update(ctx context.Context, wr model.WithdrawRequest) error {
	_, err := s.pool.Exec(ctx, `
		update withdraw_requests set status=$2, approved_by=$3, approved_at=$4, reason=$5, updated_at=$6 where id=$1`,
		wr.ID, string(wr.Status), nullableString(wr.ApprovedBy), wr.ApprovedAt, wr.Reason, wr.UpdatedAt)
	if err != nil {
		return apierr.Internal("update withdraw request", err)
	}
	return nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func validAddress(network, address string) bool {
	if pattern, ok := addressPatterns[network]; ok {
		return pattern.MatchString(address)
	}
	return len(address) >= 8
}
