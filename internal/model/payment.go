package model

import (
	"time"

	"github.com/shopspring/decimal"

	"adxchange/internal/types"
)

// Transaction is an external payment leg: created on initiation by either
// a deposit request or a withdrawal approval, updated by gateway callbacks.
type Transaction struct {
	ID            string
	UserID        string
	Type          types.TransactionType
	Provider      string
	ProviderTxID  string
	Coin          string
	Network       string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Status        types.TransactionStatus
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WithdrawRequest is a payout request gated by manual admin approval.
type WithdrawRequest struct {
	ID          string
	UserID      string
	Coin        string
	Network     string
	Address     string
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	NetAmount   decimal.Decimal
	Status      types.WithdrawStatus
	ApprovedBy  string
	ApprovedAt  *time.Time
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditLog records a moderation or administrative action against an
// entity, independent of the domain-level Transaction/LedgerEntry trail.
type AuditLog struct {
	ID         string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]string
	CreatedAt  time.Time
}
