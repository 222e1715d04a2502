package model

import (
	"time"

	"github.com/shopspring/decimal"

	"adxchange/internal/types"
)

type Button struct {
	Text  string            `json:"text"`
	URL   string            `json:"url"`
	Color types.ButtonColor `json:"color"`
}

// Targeting restricts and re-prices delivery. A nil or empty set-valued
// field counts as unset, and empty sets are omitted from JSON.
type Targeting struct {
	AISegments     []string `json:"aiSegments,omitempty"`
	SpecificBots   []string `json:"specificBots,omitempty"`
	ExcludedBots   []string `json:"excludedBots,omitempty"`
	ExcludedUsers  []int64  `json:"excludedUserIds,omitempty"`
	Languages      []string `json:"languages,omitempty"`
}

type Poll struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type ScheduleWindow struct {
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Timezone    string     `json:"timezone,omitempty"`
	ActiveDays  []int      `json:"activeDays,omitempty"`  // 0=Sunday..6=Saturday
	ActiveHours []HourRange `json:"activeHours,omitempty"`
}

type HourRange struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Ad is the advertiser creative, the richest entity in the data model: a
// state machine (Status) paired with the pricing snapshot computed at
// submission time and the running delivery counters mutated per impression.
type Ad struct {
	ID             string
	AdvertiserID   string
	ContentType    types.AdContentType
	Text           string
	HTMLContent    string
	MediaURL       string
	MediaType      string
	Buttons        []Button
	Poll           *Poll

	SelectedTierID    string
	TargetImpressions int64
	DeliveredImpressions int64

	BaseCPM         decimal.Decimal
	CPMBid          decimal.Decimal
	FinalCPM        decimal.Decimal
	TotalCost       decimal.Decimal
	PlatformFee     decimal.Decimal
	BotOwnerRevenue decimal.Decimal
	RemainingBudget decimal.Decimal

	Category  string
	Targeting Targeting

	Status types.AdStatus

	Schedule ScheduleWindow

	ModeratedBy      string
	ModeratedAt      *time.Time
	RejectionReason  string
	IsArchived       bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// RevenuePerImpression is finalCPM/1000, the per-delivery charge against
// RemainingBudget.
func (a *Ad) RevenuePerImpression() decimal.Decimal {
	return a.FinalCPM.Div(decimal.NewFromInt(1000))
}

// Impression is a single, immutable recorded delivery of an Ad.
type Impression struct {
	ID             string
	AdID           string
	BotID          string
	TelegramUserID int64
	FirstName      string
	LastName       string
	Username       string
	LanguageCode   string
	Country        string
	City           string
	Revenue        decimal.Decimal
	PlatformFee    decimal.Decimal
	BotOwnerEarns  decimal.Decimal
	MessageID      string
	CreatedAt      time.Time
}

// ClickEvent is an immutable record of a button click on a delivered ad.
type ClickEvent struct {
	ID             string
	AdID           string
	BotID          string
	TelegramUserID int64
	ButtonIndex    int
	OriginalURL    string
	Clicked        bool
	ClickedAt      *time.Time
	IPAddress      string
	CreatedAt      time.Time
}
