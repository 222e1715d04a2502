package adserver

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"adxchange/internal/ads"
	"adxchange/internal/model"
)

func candidate(id string, finalCPM float64, createdAt time.Time, remaining float64) ads.CandidateAd {
	return ads.CandidateAd{
		ID:              id,
		FinalCPM:        decimal.NewFromFloat(finalCPM),
		RemainingBudget: decimal.NewFromFloat(remaining),
		CreatedAt:       createdAt,
		Category:        "general",
	}
}

func TestFilterCandidates_ExcludesBotFromTargetingExclusion(t *testing.T) {
	now := time.Now()
	c := candidate("ad-1", 5, now, 10)
	c.Targeting.ExcludedBots = []string{"bot-1"}
	bot := model.Bot{ID: "bot-1"}

	out := filterCandidates([]ads.CandidateAd{c}, bot, 42, now)
	assert.Empty(t, out)
}

func TestFilterCandidates_RequiresMembershipInSpecificBots(t *testing.T) {
	now := time.Now()
	c := candidate("ad-1", 5, now, 10)
	c.Targeting.SpecificBots = []string{"bot-2", "bot-3"}
	bot := model.Bot{ID: "bot-1"}

	out := filterCandidates([]ads.CandidateAd{c}, bot, 42, now)
	assert.Empty(t, out)

	bot.ID = "bot-2"
	out = filterCandidates([]ads.CandidateAd{c}, bot, 42, now)
	assert.Len(t, out, 1)
}

func TestFilterCandidates_ExcludesTargetedUser(t *testing.T) {
	now := time.Now()
	c := candidate("ad-1", 5, now, 10)
	c.Targeting.ExcludedUsers = []int64{42}
	bot := model.Bot{ID: "bot-1"}

	out := filterCandidates([]ads.CandidateAd{c}, bot, 42, now)
	assert.Empty(t, out)

	out = filterCandidates([]ads.CandidateAd{c}, bot, 43, now)
	assert.Len(t, out, 1)
}

func TestCategoryCompatible_BlockedCategoryWins(t *testing.T) {
	bot := model.Bot{AllowedCategories: []string{"gaming", "crypto"}, BlockedCategories: []string{"crypto"}}
	assert.True(t, categoryCompatible("gaming", bot))
	assert.False(t, categoryCompatible("crypto", bot))
	assert.False(t, categoryCompatible("finance", bot))
}

func TestRankCandidates_OrdersByCPMThenAgeThenBudget(t *testing.T) {
	now := time.Now()
	older := candidate("ad-old", 5, now.Add(-time.Hour), 10)
	newer := candidate("ad-new", 5, now, 10)
	richer := candidate("ad-rich", 8, now, 10)

	ranked := rankCandidates([]ads.CandidateAd{newer, richer, older})

	assert.Equal(t, "ad-rich", ranked[0].ID)
	assert.Equal(t, "ad-old", ranked[1].ID)
	assert.Equal(t, "ad-new", ranked[2].ID)
}

func TestClickLink_EncodesAdBotButtonAndUser(t *testing.T) {
	s := &Service{clickBaseURL: "https://ads.example.com"}
	link := s.clickLink("ad-1", "bot-1", 2, 555)
	assert.Equal(t, "https://ads.example.com/c/ad-1/bot-1/2?u=555", link)
}
