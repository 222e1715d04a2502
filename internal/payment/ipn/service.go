// Package ipn implements an optional generic instant-payment-notification
// adapter: a single HMAC-SHA512 signed webhook, for payment providers that
// speak a plain callback rather than Payme's or Click's bespoke protocols.
package ipn

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"adxchange/internal/apierr"
	"adxchange/internal/types"
	"adxchange/internal/wallet"
)

type Service struct {
	pool      *pgxpool.Pool
	wallet    *wallet.Service
	secretKey string
}

func NewService(pool *pgxpool.Pool, walletSvc *wallet.Service, secretKey string) *Service {
	return &Service{pool: pool, wallet: walletSvc, secretKey: secretKey}
}

type Notification struct {
	ProviderTxID string
	UserID       string
	AmountUSD    decimal.Decimal
	Signature    string
	Body         []byte
}

// VerifySignature checks the hex-encoded HMAC-SHA512 of the raw request
// body against the shared secret.
func (s *Service) VerifySignature(n Notification) bool {
	mac := hmac.New(sha512.New, []byte(s.secretKey))
	mac.Write(n.Body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.Signature)) == 1
}

// Credit settles a notification exactly once, keyed by the provider's own
// transaction id, matching the idempotence contract shared with the Payme
// and Click adapters.
func (s *Service) Credit(ctx context.Context, n Notification) error {
	if !s.VerifySignature(n) {
		return apierr.Authentication("ipn signature mismatch")
	}
	if n.AmountUSD.LessThanOrEqual(decimal.Zero) {
		return apierr.Validation("invalid amount")
	}

	_, err := s.getByProviderTxID(ctx, n.ProviderTxID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return apierr.Internal("lookup ipn transaction", err)
	}

	if _, err := s.wallet.Credit(ctx, n.UserID, n.AmountUSD, types.LedgerEntryDeposit, n.ProviderTxID, "ipn deposit"); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		insert into transactions (id, user_id, type, provider, provider_tx_id, coin, network, amount, fee, status, created_at, updated_at)
		values ($1,$2,$3,'ipn',$4,'USD','',$5,0,$6,$7,$7)`,
		uuid.NewString(), n.UserID, string(types.TransactionDeposit), n.ProviderTxID, n.AmountUSD, string(types.TransactionSuccess), now)
	if err != nil {
		return apierr.Internal("insert ipn transaction", err)
	}
	return nil
}

func (s *Service) getByProviderTxID(ctx context.Context, providerTxID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `select id from transactions where provider_tx_id = $1 and provider = 'ipn'`, providerTxID).Scan(&id)
	return id, err
}
