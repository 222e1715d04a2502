// Package wallet is the sole writer of Wallet balances and LedgerEntry
// rows. Every exported operation runs as one logical transaction: either
// both the wallet aggregate and its ledger entry persist, or neither does.
package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

// GetWallet returns the current Wallet, creating a zero-initialized row on
// first access. Idempotent.
func (s *Service) GetWallet(ctx context.Context, userID string) (model.Wallet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Wallet{}, apierr.Internal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	w, err := s.lockOrCreateWallet(ctx, tx, userID)
	if err != nil {
		return model.Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Wallet{}, apierr.Internal("commit tx", err)
	}
	return w, nil
}

// Credit increases available (or, for EARNINGS, leaves the split to the
// caller's accounting) by amount and records the corresponding totals.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, entryType types.LedgerEntryType, refID string, description string) (model.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.Wallet{}, apierr.Validation("amount must be positive")
	}
	return s.mutate(ctx, userID, entryType, amount, refID, description, func(w *model.Wallet) error {
		w.Available = w.Available.Add(amount)
		if entryType == types.LedgerEntryEarnings {
			w.TotalEarned = w.TotalEarned.Add(amount)
		} else {
			w.TotalDeposited = w.TotalDeposited.Add(amount)
		}
		return nil
	})
}

// Debit decreases available by amount, failing with InsufficientFunds if
// the balance is too low.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal, entryType types.LedgerEntryType, refID string, description string) (model.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.Wallet{}, apierr.Validation("amount must be positive")
	}
	return s.mutate(ctx, userID, entryType, amount.Neg(), refID, description, func(w *model.Wallet) error {
		if w.Available.LessThan(amount) {
			return apierr.InsufficientFunds("insufficient available balance")
		}
		w.Available = w.Available.Sub(amount)
		w.TotalSpent = w.TotalSpent.Add(amount)
		return nil
	})
}

// ReserveForAd moves amount from available to reserved ahead of moderation.
func (s *Service) ReserveForAd(ctx context.Context, userID, adID string, amount decimal.Decimal) (model.Wallet, error) {
	return s.reserveFor(ctx, userID, amount, types.LedgerEntryAdReserve, "AD", adID)
}

// ConfirmAdReserve converts a reservation into spend once an ad is approved.
func (s *Service) ConfirmAdReserve(ctx context.Context, userID, adID string, amount decimal.Decimal) (model.Wallet, error) {
	return s.mutate(ctx, userID, types.LedgerEntryAdSpend, decimal.Zero, adID, "ad reserve confirmed as spend", func(w *model.Wallet) error {
		if w.Reserved.LessThan(amount) {
			return apierr.Conflict("reserved balance lower than confirm amount")
		}
		w.Reserved = w.Reserved.Sub(amount)
		w.TotalSpent = w.TotalSpent.Add(amount)
		return nil
	})
}

// RefundAdReserve returns a held reservation to available, on ad rejection
// or edit request.
func (s *Service) RefundAdReserve(ctx context.Context, userID, adID string, amount decimal.Decimal) (model.Wallet, error) {
	return s.mutate(ctx, userID, types.LedgerEntryAdRefund, decimal.Zero, adID, "ad reserve refunded", func(w *model.Wallet) error {
		if w.Reserved.LessThan(amount) {
			return apierr.Conflict("reserved balance lower than refund amount")
		}
		w.Reserved = w.Reserved.Sub(amount)
		w.Available = w.Available.Add(amount)
		return nil
	})
}

// Reserve holds amount from available for a withdrawal request.
func (s *Service) Reserve(ctx context.Context, userID string, amount decimal.Decimal, refID string) (model.Wallet, error) {
	return s.reserveFor(ctx, userID, amount, types.LedgerEntryReserve, "WITHDRAW", refID)
}

// ReleaseReserved returns a withdrawal hold to available on rejection.
func (s *Service) ReleaseReserved(ctx context.Context, userID string, amount decimal.Decimal, refID string) (model.Wallet, error) {
	return s.mutate(ctx, userID, types.LedgerEntryRelease, decimal.Zero, refID, "reserved funds released", func(w *model.Wallet) error {
		if w.Reserved.LessThan(amount) {
			return apierr.Conflict("reserved balance lower than release amount")
		}
		w.Reserved = w.Reserved.Sub(amount)
		w.Available = w.Available.Add(amount)
		return nil
	})
}

// ConfirmReserved finalizes a withdrawal hold as withdrawn funds.
func (s *Service) ConfirmReserved(ctx context.Context, userID string, amount decimal.Decimal, refID string) (model.Wallet, error) {
	return s.mutate(ctx, userID, types.LedgerEntryConfirm, decimal.Zero, refID, "reserved funds confirmed withdrawn", func(w *model.Wallet) error {
		if w.Reserved.LessThan(amount) {
			return apierr.Conflict("reserved balance lower than confirm amount")
		}
		w.Reserved = w.Reserved.Sub(amount)
		w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
		return nil
	})
}

// AddPending records funds a gateway has acknowledged but not yet settled.
func (s *Service) AddPending(ctx context.Context, userID string, amount decimal.Decimal, txID string) (model.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.Wallet{}, apierr.Validation("amount must be positive")
	}
	return s.mutate(ctx, userID, types.LedgerEntryDeposit, decimal.Zero, txID, "pending deposit opened", func(w *model.Wallet) error {
		w.Pending = w.Pending.Add(amount)
		return nil
	})
}

// ConfirmPending settles a pending deposit into available.
func (s *Service) ConfirmPending(ctx context.Context, userID string, amount decimal.Decimal, txID string) (model.Wallet, error) {
	return s.mutate(ctx, userID, types.LedgerEntryDeposit, amount, txID, "pending deposit settled", func(w *model.Wallet) error {
		if w.Pending.LessThan(amount) {
			return apierr.Conflict("pending balance lower than confirm amount")
		}
		w.Pending = w.Pending.Sub(amount)
		w.Available = w.Available.Add(amount)
		w.TotalDeposited = w.TotalDeposited.Add(amount)
		return nil
	})
}

// CancelPending discards a pending deposit that the gateway failed.
func (s *Service) CancelPending(ctx context.Context, userID string, amount decimal.Decimal, txID string) (model.Wallet, error) {
	return s.mutate(ctx, userID, types.LedgerEntryAdjustment, decimal.Zero, txID, "pending deposit cancelled", func(w *model.Wallet) error {
		if w.Pending.LessThan(amount) {
			return apierr.Conflict("pending balance lower than cancel amount")
		}
		w.Pending = w.Pending.Sub(amount)
		return nil
	})
}

// VerifyBalance compares the ledger's signed-amount sum to the wallet
// aggregate and reports whether they match within the tolerance callers use
// for reconciliation jobs.
func (s *Service) VerifyBalance(ctx context.Context, userID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, apierr.Internal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	w, err := s.lockOrCreateWallet(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	var sum decimal.Decimal
	if err := tx.QueryRow(ctx, `select coalesce(sum(amount), 0) from ledger_entries where user_id = $1`, userID).Scan(&sum); err != nil {
		return false, apierr.Internal("sum ledger entries", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, apierr.Internal("commit tx", err)
	}
	total := w.Available.Add(w.Reserved).Add(w.Pending)
	diff := total.Sub(sum).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(0.001)), nil
}

func (s *Service) reserveFor(ctx context.Context, userID string, amount decimal.Decimal, entryType types.LedgerEntryType, refType, refID string) (model.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.Wallet{}, apierr.Validation("amount must be positive")
	}
	return s.mutate(ctx, userID, entryType, decimal.Zero, refID, "funds reserved", func(w *model.Wallet) error {
		if w.Available.LessThan(amount) {
			return apierr.InsufficientFunds("insufficient available balance")
		}
		w.Available = w.Available.Sub(amount)
		w.Reserved = w.Reserved.Add(amount)
		return nil
	})
}

// mutate runs apply under a row lock on the wallet, appends a hash-chained
// ledger entry, and persists both atomically. entryAmount is the entry's
// signed amount recorded for the audit trail; apply performs the actual
// aggregate mutation so each operation can express bucket moves that don't
// net to entryAmount alone (e.g. reserve moves available->reserved with a
// zero net change but still needs a record).
func (s *Service) mutate(ctx context.Context, userID string, entryType types.LedgerEntryType, entryAmount decimal.Decimal, refID, description string, apply func(w *model.Wallet) error) (model.Wallet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Wallet{}, apierr.Internal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	w, err := s.lockOrCreateWallet(ctx, tx, userID)
	if err != nil {
		return model.Wallet{}, err
	}

	if err := apply(&w); err != nil {
		return model.Wallet{}, err
	}
	if w.Available.IsNegative() || w.Reserved.IsNegative() || w.Pending.IsNegative() {
		return model.Wallet{}, apierr.Internal("wallet mutation produced a negative bucket", errors.New("invariant violated"))
	}

	w.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(ctx, `
		update wallets set available=$1, reserved=$2, pending=$3, total_deposited=$4,
			total_withdrawn=$5, total_earned=$6, total_spent=$7, updated_at=$8
		where user_id=$9`,
		w.Available, w.Reserved, w.Pending, w.TotalDeposited, w.TotalWithdrawn, w.TotalEarned, w.TotalSpent, w.UpdatedAt, userID)
	if err != nil {
		return model.Wallet{}, apierr.Internal("update wallet", err)
	}

	balance := w.Available.Add(w.Reserved).Add(w.Pending)
	if err := s.appendEntry(ctx, tx, userID, entryType, entryAmount, balance, refID, description); err != nil {
		return model.Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Wallet{}, apierr.Internal("commit tx", err)
	}
	return w, nil
}

// lockOrCreateWallet acquires the per-user row lock that serializes all
// balance writes on this wallet, creating a zero row the first time.
func (s *Service) lockOrCreateWallet(ctx context.Context, tx pgx.Tx, userID string) (model.Wallet, error) {
	var w model.Wallet
	err := tx.QueryRow(ctx, `
		select user_id, available, reserved, pending, total_deposited, total_withdrawn, total_earned, total_spent, updated_at
		from wallets where user_id = $1 for update`, userID).
		Scan(&w.UserID, &w.Available, &w.Reserved, &w.Pending, &w.TotalDeposited, &w.TotalWithdrawn, &w.TotalEarned, &w.TotalSpent, &w.UpdatedAt)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Wallet{}, apierr.Internal("lock wallet", err)
	}

	w = model.ZeroWallet(userID)
	w.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(ctx, `
		insert into wallets (user_id, available, reserved, pending, total_deposited, total_withdrawn, total_earned, total_spent, updated_at)
		values ($1, 0, 0, 0, 0, 0, 0, 0, $2)
		on conflict (user_id) do nothing`, userID, w.UpdatedAt)
	if err != nil {
		return model.Wallet{}, apierr.Internal("create wallet", err)
	}
	err = tx.QueryRow(ctx, `
		select user_id, available, reserved, pending, total_deposited, total_withdrawn, total_earned, total_spent, updated_at
		from wallets where user_id = $1 for update`, userID).
		Scan(&w.UserID, &w.Available, &w.Reserved, &w.Pending, &w.TotalDeposited, &w.TotalWithdrawn, &w.TotalEarned, &w.TotalSpent, &w.UpdatedAt)
	if err != nil {
		return model.Wallet{}, apierr.Internal("lock wallet after create", err)
	}
	return w, nil
}

// appendEntry inserts a ledger row chained to the previous entry for this
// user by a SHA256 hash, giving the audit trail tamper-evidence without a
// separate blockchain dependency.
func (s *Service) appendEntry(ctx context.Context, tx pgx.Tx, userID string, entryType types.LedgerEntryType, amount, balance decimal.Decimal, refID, description string) error {
	var prevHash string
	err := tx.QueryRow(ctx, `select hash from ledger_entries where user_id = $1 order by created_at desc limit 1`, userID).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apierr.Internal("read previous ledger hash", err)
	}

	entryID := uuid.NewString()
	now := time.Now().UTC()
	hash := computeHash(entryID, userID, amount, entryType, now, prevHash)

	_, err = tx.Exec(ctx, `
		insert into ledger_entries (id, user_id, type, amount, balance, ref_id, ref_type, description, prev_hash, hash, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entryID, userID, string(entryType), amount, balance, refID, refTypeFor(entryType), description, prevHash, hash, now)
	if err != nil {
		return apierr.Internal("append ledger entry", err)
	}
	return nil
}

func refTypeFor(t types.LedgerEntryType) string {
	switch t {
	case types.LedgerEntryAdReserve, types.LedgerEntryAdSpend, types.LedgerEntryAdRefund:
		return "AD"
	case types.LedgerEntryReserve, types.LedgerEntryRelease, types.LedgerEntryConfirm:
		return "WITHDRAW"
	default:
		return ""
	}
}

func computeHash(entryID, userID string, amount decimal.Decimal, entryType types.LedgerEntryType, createdAt time.Time, prevHash string) string {
	buf := entryID + "|" + userID + "|" + amount.String() + "|" + string(entryType) + "|" + createdAt.Format(time.RFC3339Nano) + "|" + prevHash
	sum := sha256.Sum256([]byte(buf))
	return hex.EncodeToString(sum[:])
}
