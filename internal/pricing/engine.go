// Package pricing is a pure calculator: no I/O, no side effects, same
// inputs always produce the same outputs. It turns a tier/category/
// targeting/bid/promo/fee input bundle into the cost breakdown an Ad
// carries for its lifetime.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"adxchange/internal/apierr"
	"adxchange/internal/model"
)

const minImpressions = 100

var defaultBaseCPM = decimal.NewFromFloat(1.5)

var categoryMultipliers = map[string]decimal.Decimal{
	"ai":          decimal.NewFromFloat(1.3),
	"finance":     decimal.NewFromFloat(1.25),
	"crypto":      decimal.NewFromFloat(1.2),
	"gaming":      decimal.NewFromFloat(1.1),
	"education":   decimal.NewFromFloat(1.05),
	"entertainment": decimal.NewFromFloat(1.0),
	"general":     decimal.NewFromFloat(1.0),
}

var aiSegmentMultipliers = map[string]decimal.Decimal{
	"high_intent":  decimal.NewFromFloat(1.5),
	"engaged":      decimal.NewFromFloat(1.3),
	"new_user":     decimal.NewFromFloat(1.1),
}

type PromoCode struct {
	Kind  string // "percentage" | "fixed"
	Value decimal.Decimal
}

type Input struct {
	Tier                  model.PricingTier
	Impressions           int64
	Category              string
	Targeting             model.Targeting
	CPMBid                decimal.Decimal
	PlatformFeePercentage decimal.Decimal
	Promo                 *PromoCode
	BaseCPMOverride       *decimal.Decimal
}

type Result struct {
	BaseCPM         decimal.Decimal
	CategoryMult    decimal.Decimal
	TargetingMult   decimal.Decimal
	FinalCPM        decimal.Decimal
	BaseCost        decimal.Decimal
	PromoDiscount   decimal.Decimal
	TotalCost       decimal.Decimal
	PlatformFee     decimal.Decimal
	BotOwnerRevenue decimal.Decimal
}

// Calculate implements the pricing algorithm end to end, returning rounded
// fields at the precision callers persist: 4 digits for CPMs, 2 for totals.
func Calculate(in Input) (Result, error) {
	if in.Impressions < minImpressions {
		return Result{}, apierr.Validation("impressions must be at least 100")
	}
	if in.CPMBid.IsNegative() {
		return Result{}, apierr.Validation("cpmBid must be non-negative")
	}
	if in.PlatformFeePercentage.IsNegative() || in.PlatformFeePercentage.GreaterThan(decimal.NewFromInt(50)) {
		return Result{}, apierr.Validation("platformFeePercentage must be between 0 and 50")
	}

	baseCPM := resolveBaseCPM(in)
	categoryMult := categoryMultiplier(in.Category)
	targetingMult := targetingMultiplier(in.Targeting)

	adjustedCPM := baseCPM.Mul(categoryMult).Mul(targetingMult)
	finalCPM := adjustedCPM.Add(in.CPMBid)

	baseCost := finalCPM.Mul(decimal.NewFromInt(in.Impressions)).Div(decimal.NewFromInt(1000))

	discount := promoDiscount(in.Promo, baseCost)
	finalCost := baseCost.Sub(discount)
	if finalCost.IsNegative() {
		finalCost = decimal.Zero
	}

	platformFee := finalCost.Mul(in.PlatformFeePercentage).Div(decimal.NewFromInt(100))
	botOwnerRevenue := finalCost.Sub(platformFee)

	return Result{
		BaseCPM:         baseCPM.RoundBank(4),
		CategoryMult:    categoryMult,
		TargetingMult:   targetingMult,
		FinalCPM:        finalCPM.RoundBank(4),
		BaseCost:        baseCost.RoundBank(2),
		PromoDiscount:   discount.RoundBank(2),
		TotalCost:       finalCost.RoundBank(2),
		PlatformFee:     platformFee.RoundBank(2),
		BotOwnerRevenue: botOwnerRevenue.RoundBank(2),
	}, nil
}

func resolveBaseCPM(in Input) decimal.Decimal {
	if in.BaseCPMOverride != nil {
		return *in.BaseCPMOverride
	}
	if in.Tier.Impressions > 0 {
		return in.Tier.PriceUSD.Div(decimal.NewFromInt(in.Tier.Impressions)).Mul(decimal.NewFromInt(1000))
	}
	return defaultBaseCPM
}

func categoryMultiplier(category string) decimal.Decimal {
	if m, ok := categoryMultipliers[category]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

func targetingMultiplier(t model.Targeting) decimal.Decimal {
	mult := decimal.NewFromInt(1)

	if len(t.AISegments) > 0 {
		max := decimal.NewFromInt(1)
		for _, seg := range t.AISegments {
			if m, ok := aiSegmentMultipliers[seg]; ok && m.GreaterThan(max) {
				max = m
			}
		}
		mult = mult.Mul(max)
	}
	if len(t.SpecificBots) > 0 {
		mult = mult.Mul(decimal.NewFromFloat(1.2))
	}
	if len(t.Languages) > 0 && len(t.Languages) < 3 {
		mult = mult.Mul(decimal.NewFromFloat(1.1))
	}
	return mult
}

func promoDiscount(promo *PromoCode, baseCost decimal.Decimal) decimal.Decimal {
	if promo == nil {
		return decimal.Zero
	}
	switch promo.Kind {
	case "percentage":
		return baseCost.Mul(promo.Value).Div(decimal.NewFromInt(100))
	case "fixed":
		return promo.Value
	default:
		return decimal.Zero
	}
}

// FindTier selects the richest active tier whose impression breakpoint is
// at or below requested; if every tier's breakpoint exceeds requested it
// falls back to the smallest tier available.
func FindTier(tiers []model.PricingTier, requested int64) (model.PricingTier, bool) {
	var active []model.PricingTier
	for _, t := range tiers {
		if t.IsActive {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return model.PricingTier{}, false
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Impressions == active[j].Impressions {
			return active[i].SortOrder < active[j].SortOrder
		}
		return active[i].Impressions < active[j].Impressions
	})

	var best *model.PricingTier
	for i := range active {
		if active[i].Impressions <= requested && (best == nil || active[i].Impressions > best.Impressions) {
			best = &active[i]
		}
	}
	if best != nil {
		return *best, true
	}
	return active[0], true
}

type ImpressionRevenue struct {
	RevenuePerImpression decimal.Decimal
	PlatformFee          decimal.Decimal
	BotOwnerEarns         decimal.Decimal
}

// CalculateImpressionRevenue splits a single delivery's revenue, computed
// fresh on every impression rather than amortized from the Ad-level totals.
func CalculateImpressionRevenue(finalCPM, platformFeePercentage decimal.Decimal) ImpressionRevenue {
	revenuePerImpression := finalCPM.Div(decimal.NewFromInt(1000)).RoundBank(6)
	platformFee := revenuePerImpression.Mul(platformFeePercentage).Div(decimal.NewFromInt(100)).RoundBank(6)
	botOwnerEarns := revenuePerImpression.Sub(platformFee)
	return ImpressionRevenue{
		RevenuePerImpression: revenuePerImpression,
		PlatformFee:          platformFee,
		BotOwnerEarns:        botOwnerEarns,
	}
}
