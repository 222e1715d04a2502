// Package payme implements the Payme JSON-RPC merchant API: a single
// Basic-authenticated endpoint dispatching on a "method" field, used to
// settle deposits into a user's wallet in the platform's local currency.
package payme

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"adxchange/internal/apierr"
	"adxchange/internal/types"
	"adxchange/internal/wallet"
)

// JSON-RPC error codes from the Payme merchant API spec.
const (
	ErrCodeCantDoOperation   = -31008
	ErrCodeTransactionNotFound = -31003
	ErrCodeAlreadyDone       = -31007
	ErrCodeInvalidAmount     = -31001
	ErrCodeOrderNotFound     = -31050
	ErrCodeSystemError       = -32504
)

const (
	stateCreated   = 1
	statePerformed = 2
	stateCancelled = -1
)

type Service struct {
	pool        *pgxpool.Pool
	wallet      *wallet.Service
	merchantID  string
	secretKey   string
	usdLocalRate decimal.Decimal
}

func NewService(pool *pgxpool.Pool, walletSvc *wallet.Service, merchantID, secretKey string, usdLocalRate decimal.Decimal) *Service {
	return &Service{pool: pool, wallet: walletSvc, merchantID: merchantID, secretKey: secretKey, usdLocalRate: usdLocalRate}
}

// AuthorizeBasic checks the Basic-auth header Payme sends on every call,
// "Paycom:<secret>".
func (s *Service) AuthorizeBasic(header string) bool {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.secretKey)) == 1
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

func rpcErr(code int, msg string) *RPCError { return &RPCError{Code: code, Message: msg} }

// CheckPerformTransaction validates that orderID (the user ID this
// platform bills against) exists and amount (tiyin) is acceptable before
// Payme opens a transaction.
func (s *Service) CheckPerformTransaction(ctx context.Context, orderID string, amountTiyin int64) error {
	if amountTiyin <= 0 {
		return rpcErr(ErrCodeInvalidAmount, "invalid amount")
	}
	var exists bool
	err := s.pool.QueryRow(ctx, `select exists(select 1 from users where id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return apierr.Internal("check order user", err)
	}
	if !exists {
		return rpcErr(ErrCodeOrderNotFound, "order not found")
	}
	return nil
}

// CreateTransaction opens (or replays) a Payme-initiated transaction in
// the pending state, keyed by Payme's own transaction id so repeated
// create calls for the same payment are idempotent.
func (s *Service) CreateTransaction(ctx context.Context, paymeTxID, orderID string, amountTiyin int64, createTime int64) (state int, performTime int64, err error) {
	existing, getErr := s.getByProviderTxID(ctx, paymeTxID)
	if getErr == nil {
		return existing.state, existing.performTime, nil
	}
	if !errors.Is(getErr, pgx.ErrNoRows) {
		return 0, 0, apierr.Internal("lookup payme transaction", getErr)
	}

	if err := s.CheckPerformTransaction(ctx, orderID, amountTiyin); err != nil {
		return 0, 0, err
	}

	amountUSD := decimal.NewFromInt(amountTiyin).Div(decimal.NewFromInt(100)).Div(s.usdLocalRate)
	if _, err := s.wallet.AddPending(ctx, orderID, amountUSD, paymeTxID); err != nil {
		return 0, 0, err
	}

	metadata, _ := json.Marshal(map[string]string{"amount_tiyin": decimal.NewFromInt(amountTiyin).String()})
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		insert into transactions (id, user_id, type, provider, provider_tx_id, coin, network, amount, fee, status, metadata, created_at, updated_at)
		values ($1,$2,$3,'payme',$4,'UZS','',$5,0,$6,$7,$8,$8)`,
		uuid.NewString(), orderID, string(types.TransactionDeposit), paymeTxID, amountUSD, string(types.TransactionPending),
		metadata, now)
	if err != nil {
		return 0, 0, apierr.Internal("insert payme transaction", err)
	}
	return stateCreated, 0, nil
}

// PerformTransaction settles a pending transaction into the wallet's
// available balance. Repeated calls for an already-performed
// transaction return the recorded performTime without re-crediting.
func (s *Service) PerformTransaction(ctx context.Context, paymeTxID string) (state int, performTime int64, err error) {
	tx, getErr := s.getByProviderTxID(ctx, paymeTxID)
	if getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return 0, 0, rpcErr(ErrCodeTransactionNotFound, "transaction not found")
		}
		return 0, 0, apierr.Internal("lookup payme transaction", getErr)
	}
	if tx.state == statePerformed {
		return statePerformed, tx.performTime, nil
	}
	if tx.state == stateCancelled {
		return 0, 0, rpcErr(ErrCodeAlreadyDone, "transaction already cancelled")
	}

	if _, err := s.wallet.ConfirmPending(ctx, tx.userID, tx.amount, paymeTxID); err != nil {
		return 0, 0, err
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `update transactions set status = $2, updated_at = $3 where provider_tx_id = $1`,
		paymeTxID, string(types.TransactionSuccess), now)
	if err != nil {
		return 0, 0, apierr.Internal("mark payme transaction performed", err)
	}
	return statePerformed, now.UnixMilli(), nil
}

// CancelTransaction cancels a pending transaction, releasing its pending
// hold. A performed transaction cannot be cancelled (ErrCodeAlreadyDone);
// repeated calls for a cancelled one return the recorded cancel time.
func (s *Service) CancelTransaction(ctx context.Context, paymeTxID string) (state int, cancelTime int64, err error) {
	tx, getErr := s.getByProviderTxID(ctx, paymeTxID)
	if getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return 0, 0, rpcErr(ErrCodeTransactionNotFound, "transaction not found")
		}
		return 0, 0, apierr.Internal("lookup payme transaction", getErr)
	}
	if tx.state == stateCancelled {
		return stateCancelled, tx.cancelTime, nil
	}
	if tx.state == statePerformed {
		return 0, 0, rpcErr(ErrCodeAlreadyDone, "transaction already performed")
	}

	if tx.state == stateCreated {
		if _, err := s.wallet.CancelPending(ctx, tx.userID, tx.amount, paymeTxID); err != nil {
			return 0, 0, err
		}
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `update transactions set status = $2, updated_at = $3 where provider_tx_id = $1`,
		paymeTxID, string(types.TransactionFailed), now)
	if err != nil {
		return 0, 0, apierr.Internal("cancel payme transaction", err)
	}
	return stateCancelled, now.UnixMilli(), nil
}

func (s *Service) CheckTransaction(ctx context.Context, paymeTxID string) (state int, createTime, performTime, cancelTime int64, err error) {
	tx, getErr := s.getByProviderTxID(ctx, paymeTxID)
	if getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return 0, 0, 0, 0, rpcErr(ErrCodeTransactionNotFound, "transaction not found")
		}
		return 0, 0, 0, 0, apierr.Internal("lookup payme transaction", getErr)
	}
	return tx.state, tx.createTime, tx.performTime, tx.cancelTime, nil
}

type paymeTx struct {
	userID      string
	amount      decimal.Decimal
	state       int
	createTime  int64
	performTime int64
	cancelTime  int64
}

func (s *Service) getByProviderTxID(ctx context.Context, paymeTxID string) (paymeTx, error) {
	var t paymeTx
	var status string
	var createdAt, updatedAt time.Time
	err := s.pool.QueryRow(ctx, `
		select user_id, amount, status, created_at, updated_at from transactions where provider_tx_id = $1 and provider = 'payme'`,
		paymeTxID).Scan(&t.userID, &t.amount, &status, &createdAt, &updatedAt)
	if err != nil {
		return paymeTx{}, err
	}
	t.createTime = createdAt.UnixMilli()
	switch types.TransactionStatus(status) {
	case types.TransactionPending:
		t.state = stateCreated
	case types.TransactionSuccess:
		t.state = statePerformed
		t.performTime = updatedAt.UnixMilli()
	case types.TransactionFailed:
		t.state = stateCancelled
		t.cancelTime = updatedAt.UnixMilli()
	}
	return t, nil
}
