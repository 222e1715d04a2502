package model

import "github.com/shopspring/decimal"

// PricingTier is an admin-managed impression-count breakpoint on the
// impressions-to-price curve.
type PricingTier struct {
	ID          string
	Name        string
	Impressions int64
	PriceUSD    decimal.Decimal
	IsActive    bool
	SortOrder   int
}

// PlatformSettings is a typed key-value row; Value is always stored as a
// string and decoded per ValueType at read time.
type PlatformSettings struct {
	Key       string
	Value     string
	ValueType string // "number" | "boolean" | "string"
	Category  string
	UpdatedBy string
}
