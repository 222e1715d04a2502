package model

import (
	"time"

	"github.com/shopspring/decimal"

	"adxchange/internal/types"
)

// Wallet is the per-user aggregate balance, created lazily on first access
// and mutated only through the Wallet Service.
type Wallet struct {
	UserID         string
	Available      decimal.Decimal
	Reserved       decimal.Decimal
	Pending        decimal.Decimal
	TotalDeposited decimal.Decimal
	TotalWithdrawn decimal.Decimal
	TotalEarned    decimal.Decimal
	TotalSpent     decimal.Decimal
	UpdatedAt      time.Time
}

func ZeroWallet(userID string) Wallet {
	return Wallet{
		UserID:         userID,
		Available:      decimal.Zero,
		Reserved:       decimal.Zero,
		Pending:        decimal.Zero,
		TotalDeposited: decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		TotalEarned:    decimal.Zero,
		TotalSpent:     decimal.Zero,
	}
}

// LedgerEntry is an immutable, signed, typed accounting record appended on
// every balance mutation. Balance is the post-entry running total
// (available+reserved+pending) for the user, stamped at write time.
type LedgerEntry struct {
	ID          string
	UserID      string
	Type        types.LedgerEntryType
	Amount      decimal.Decimal
	Balance     decimal.Decimal
	RefID       string
	RefType     string
	Description string
	PrevHash    string
	Hash        string
	CreatedAt   time.Time
}
