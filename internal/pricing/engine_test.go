package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adxchange/internal/model"
)

func TestCalculate_GrowthTierAICategory(t *testing.T) {
	tier := model.PricingTier{
		Name:        "Growth",
		Impressions: 10000,
		PriceUSD:    decimal.NewFromInt(45),
		IsActive:    true,
	}

	result, err := Calculate(Input{
		Tier:                  tier,
		Impressions:           10000,
		Category:              "ai",
		Targeting:             model.Targeting{},
		CPMBid:                decimal.Zero,
		PlatformFeePercentage: decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	assert.True(t, result.BaseCPM.Equal(decimal.NewFromFloat(4.5)), "baseCPM: %s", result.BaseCPM)
	assert.True(t, result.FinalCPM.Equal(decimal.NewFromFloat(5.85)), "finalCPM: %s", result.FinalCPM)
	assert.True(t, result.TotalCost.Equal(decimal.NewFromFloat(58.5)), "totalCost: %s", result.TotalCost)
	assert.True(t, result.PlatformFee.Equal(decimal.NewFromFloat(11.7)), "platformFee: %s", result.PlatformFee)
	assert.True(t, result.BotOwnerRevenue.Equal(decimal.NewFromFloat(46.8)), "botOwnerRevenue: %s", result.BotOwnerRevenue)
}

func TestCalculate_RejectsLowImpressions(t *testing.T) {
	_, err := Calculate(Input{Impressions: 50, PlatformFeePercentage: decimal.NewFromInt(10)})
	assert.Error(t, err)
}

func TestCalculate_RejectsNegativeBid(t *testing.T) {
	_, err := Calculate(Input{Impressions: 1000, CPMBid: decimal.NewFromInt(-1), PlatformFeePercentage: decimal.NewFromInt(10)})
	assert.Error(t, err)
}

func TestCalculate_RejectsFeeOutOfRange(t *testing.T) {
	_, err := Calculate(Input{Impressions: 1000, PlatformFeePercentage: decimal.NewFromInt(51)})
	assert.Error(t, err)
}

func TestTargetingMultiplier_AISegmentTakesMax(t *testing.T) {
	mult := targetingMultiplier(model.Targeting{AISegments: []string{"new_user", "high_intent"}})
	assert.True(t, mult.Equal(decimal.NewFromFloat(1.5)))
}

func TestTargetingMultiplier_SpecificBotsAndFewLanguagesStack(t *testing.T) {
	mult := targetingMultiplier(model.Targeting{
		SpecificBots: []string{"bot1"},
		Languages:    []string{"en", "ru"},
	})
	assert.True(t, mult.Equal(decimal.NewFromFloat(1.2).Mul(decimal.NewFromFloat(1.1))))
}

func TestTargetingMultiplier_ThreeOrMoreLanguagesNoBonus(t *testing.T) {
	mult := targetingMultiplier(model.Targeting{Languages: []string{"en", "ru", "uz"}})
	assert.True(t, mult.Equal(decimal.NewFromInt(1)))
}

func TestFindTier_PicksHighestBreakpointAtOrBelowRequested(t *testing.T) {
	tiers := []model.PricingTier{
		{Name: "Starter", Impressions: 1000, IsActive: true},
		{Name: "Growth", Impressions: 10000, IsActive: true},
		{Name: "Scale", Impressions: 50000, IsActive: true},
	}
	got, ok := FindTier(tiers, 12000)
	require.True(t, ok)
	assert.Equal(t, "Growth", got.Name)
}

func TestFindTier_FallsBackToSmallestWhenAllExceedRequested(t *testing.T) {
	tiers := []model.PricingTier{
		{Name: "Growth", Impressions: 10000, IsActive: true},
		{Name: "Scale", Impressions: 50000, IsActive: true},
	}
	got, ok := FindTier(tiers, 500)
	require.True(t, ok)
	assert.Equal(t, "Growth", got.Name)
}

func TestFindTier_TieBreaksBySortOrder(t *testing.T) {
	tiers := []model.PricingTier{
		{Name: "A", Impressions: 1000, IsActive: true, SortOrder: 2},
		{Name: "B", Impressions: 1000, IsActive: true, SortOrder: 1},
	}
	got, ok := FindTier(tiers, 1000)
	require.True(t, ok)
	assert.Equal(t, "B", got.Name)
}

func TestCalculateImpressionRevenue(t *testing.T) {
	rev := CalculateImpressionRevenue(decimal.NewFromFloat(5.85), decimal.NewFromInt(20))
	assert.True(t, rev.RevenuePerImpression.Equal(decimal.NewFromFloat(0.00585)))
	expectedFee := decimal.NewFromFloat(0.00585).Mul(decimal.NewFromInt(20)).Div(decimal.NewFromInt(100)).RoundBank(6)
	assert.True(t, rev.PlatformFee.Equal(expectedFee))
	assert.True(t, rev.BotOwnerEarns.Equal(rev.RevenuePerImpression.Sub(rev.PlatformFee)))
}
