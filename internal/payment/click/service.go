// Package click implements Click's two-phase signed webhook (prepare then
// complete), an alternative deposit gateway to Payme for the same wallet
// crediting contract.
package click

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"adxchange/internal/types"
	"adxchange/internal/wallet"
)

// Error codes per Click's merchant API contract.
const (
	ErrCodeSuccess              = 0
	ErrCodeSignFailed           = -1
	ErrCodeBadAmount            = -2
	ErrCodeActionNotFound       = -3
	ErrCodeAlreadyPaid          = -4
	ErrCodeUserNotFound         = -5
	ErrCodeTransactionNotFound  = -6
	ErrCodeRequestFailed        = -8
	ErrCodeTransactionCancelled = -9
)

type Service struct {
	pool         *pgxpool.Pool
	wallet       *wallet.Service
	serviceID    string
	merchantID   string
	secretKey    string
	usdLocalRate decimal.Decimal
}

func NewService(pool *pgxpool.Pool, walletSvc *wallet.Service, serviceID, merchantID, secretKey string, usdLocalRate decimal.Decimal) *Service {
	return &Service{pool: pool, wallet: walletSvc, serviceID: serviceID, merchantID: merchantID, secretKey: secretKey, usdLocalRate: usdLocalRate}
}

type PrepareRequest struct {
	ClickTransID    string
	ServiceID       string
	MerchantTransID string
	Amount          string
	Action          int
	SignTime        string
	SignString      string
}

func (s *Service) signature(in PrepareRequest) string {
	raw := in.ClickTransID + in.ServiceID + s.secretKey + in.MerchantTransID + in.Amount + fmt.Sprintf("%d", in.Action) + in.SignTime
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *Service) verifySignature(in PrepareRequest) bool {
	return s.signature(in) == in.SignString
}

// Prepare opens a pending transaction against the merchant order
// (MerchantTransID, the platform's user ID), without crediting the
// wallet yet.
func (s *Service) Prepare(ctx context.Context, in PrepareRequest) (errorCode int, errorNote string) {
	if !s.verifySignature(in) {
		return ErrCodeSignFailed, "sign check failed"
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `select exists(select 1 from users where id = $1)`, in.MerchantTransID).Scan(&exists); err != nil {
		return ErrCodeRequestFailed, "internal error"
	}
	if !exists {
		return ErrCodeUserNotFound, "user not found"
	}

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return ErrCodeBadAmount, "invalid amount"
	}

	if _, getErr := s.getByClickTransID(ctx, in.ClickTransID); getErr == nil {
		return ErrCodeSuccess, "already prepared"
	} else if !errors.Is(getErr, pgx.ErrNoRows) {
		return ErrCodeRequestFailed, "internal error"
	}

	amountUSD := amount.Div(s.usdLocalRate)
	if _, err := s.wallet.AddPending(ctx, in.MerchantTransID, amountUSD, in.ClickTransID); err != nil {
		return ErrCodeRequestFailed, "internal error"
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		insert into transactions (id, user_id, type, provider, provider_tx_id, coin, network, amount, fee, status, created_at, updated_at)
		values ($1,$2,$3,'click',$4,'UZS','',$5,0,$6,$7,$7)`,
		uuid.NewString(), in.MerchantTransID, string(types.TransactionDeposit), in.ClickTransID, amountUSD, string(types.TransactionPending), now)
	if err != nil {
		return ErrCodeRequestFailed, "internal error"
	}
	return ErrCodeSuccess, "success"
}

// Complete settles the prepared transaction, or cancels it when Click
// reports a negative error (the payment failed on Click's side).
func (s *Service) Complete(ctx context.Context, in PrepareRequest, clickPaydocID int64, clickError int) (errorCode int, errorNote string) {
	if !s.verifySignature(in) {
		return ErrCodeSignFailed, "sign check failed"
	}
	tx, err := s.getByClickTransID(ctx, in.ClickTransID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCodeTransactionNotFound, "transaction not found"
		}
		return ErrCodeRequestFailed, "internal error"
	}

	if clickError < 0 {
		if tx.status == types.TransactionPending {
			_, _ = s.wallet.CancelPending(ctx, tx.userID, tx.amount, in.ClickTransID)
			_, _ = s.pool.Exec(ctx, `update transactions set status = $2, updated_at = $3 where provider_tx_id = $1`,
				in.ClickTransID, string(types.TransactionFailed), time.Now().UTC())
		}
		return ErrCodeTransactionCancelled, "transaction cancelled"
	}

	if tx.status == types.TransactionSuccess {
		return ErrCodeSuccess, "already completed"
	}
	if _, err := s.wallet.ConfirmPending(ctx, tx.userID, tx.amount, in.ClickTransID); err != nil {
		return ErrCodeRequestFailed, "internal error"
	}
	_, err = s.pool.Exec(ctx, `update transactions set status = $2, updated_at = $3 where provider_tx_id = $1`,
		in.ClickTransID, string(types.TransactionSuccess), time.Now().UTC())
	if err != nil {
		return ErrCodeRequestFailed, "internal error"
	}
	return ErrCodeSuccess, "success"
}

type clickTx struct {
	userID string
	amount decimal.Decimal
	status types.TransactionStatus
}

func (s *Service) getByClickTransID(ctx context.Context, clickTransID string) (clickTx, error) {
	var t clickTx
	var status string
	err := s.pool.QueryRow(ctx, `select user_id, amount, status from transactions where provider_tx_id = $1 and provider = 'click'`, clickTransID).
		Scan(&t.userID, &t.amount, &status)
	if err != nil {
		return clickTx{}, err
	}
	t.status = types.TransactionStatus(status)
	return t, nil
}
