package types

import "time"

type Strategy string

const (
	StrategyMostVoted  Strategy = "MOST_VOTED"
	StrategyHighOdds   Strategy = "HIGH_ODDS"
	StrategyPercentage Strategy = "PERCENTAGE"
	StrategySmart      Strategy = "SMART"
	StrategySmartMoney Strategy = "SMART_MONEY"
	StrategyNumber1    Strategy = "NUMBER_1"
	StrategyNumber2    Strategy = "NUMBER_2"
	StrategyNumber3    Strategy = "NUMBER_3"
	StrategyNumber4    Strategy = "NUMBER_4"
	StrategyNumber5    Strategy = "NUMBER_5"
	StrategyNumber6    Strategy = "NUMBER_6"
	StrategyNumber7    Strategy = "NUMBER_7"
	StrategyNumber8    Strategy = "NUMBER_8"
)

type DelayMode string

const (
	DelayFromStart  DelayMode = "FROM_START"
	DelayFromEnd    DelayMode = "FROM_END"
	DelayPercentage DelayMode = "PERCENTAGE"
)

type OutcomeKey string

const (
	KeyTotalUsers      OutcomeKey = "TOTAL_USERS"
	KeyTotalPoints     OutcomeKey = "TOTAL_POINTS"
	KeyOdds            OutcomeKey = "ODDS"
	KeyOddsPercentage  OutcomeKey = "ODDS_PERCENTAGE"
	KeyTopPoints       OutcomeKey = "TOP_POINTS"
	KeyPercentageUsers OutcomeKey = "PERCENTAGE_USERS"
)

type Condition string

const (
	ConditionGT  Condition = "GT"
	ConditionGTE Condition = "GTE"
	ConditionLT  Condition = "LT"
	ConditionLTE Condition = "LTE"
)

type ChatPresence string

const (
	ChatAlways  ChatPresence = "ALWAYS"
	ChatNever   ChatPresence = "NEVER"
	ChatOnline  ChatPresence = "ONLINE"
	ChatOffline ChatPresence = "OFFLINE"
)

// Joined reports whether chat should be joined for the given online status.
func (c ChatPresence) Joined(online bool) bool {
	switch c {
	case ChatAlways:
		return true
	case ChatOnline:
		return online
	case ChatOffline:
		return !online
	default:
		return false
	}
}

type FilterCondition struct {
	By    OutcomeKey `json:"by"`
	Where Condition  `json:"where"`
	Value float64    `json:"value"`
}

// BetSettings is the resolved, immutable bet configuration of a streamer.
type BetSettings struct {
	Strategy       Strategy
	PercentagePick Strategy
	Percentage     int
	PercentageGap  int
	MaxPoints      int
	MinimumPoints  int
	StealthMode    bool
	DelayMode      DelayMode
	Delay          float64
	Filter         *FilterCondition
}

// DelayDuration interprets Delay as seconds. Not meaningful for DelayPercentage.
func (b BetSettings) DelayDuration() time.Duration {
	return time.Duration(b.Delay * float64(time.Second))
}

// Settings is the resolved, immutable per-streamer configuration.
type Settings struct {
	MakePredictions bool
	FollowRaid      bool
	ClaimDrops      bool
	ClaimMoments    bool
	WatchStreak     bool
	Chat            ChatPresence
	Bet             BetSettings
}

// DefaultSettings is the lowest tier of settings resolution.
func DefaultSettings() Settings {
	return Settings{
		MakePredictions: true,
		FollowRaid:      true,
		ClaimDrops:      true,
		ClaimMoments:    true,
		WatchStreak:     true,
		Chat:            ChatOnline,
		Bet: BetSettings{
			Strategy:       StrategySmart,
			PercentagePick: StrategyMostVoted,
			Percentage:     5,
			PercentageGap:  20,
			MaxPoints:      50000,
			MinimumPoints:  0,
			StealthMode:    false,
			DelayMode:      DelayFromEnd,
			Delay:          6,
		},
	}
}

type PriorityKind string

const (
	PriorityStreak PriorityKind = "STREAK"
	PriorityDrops  PriorityKind = "DROPS"
	PriorityOrder  PriorityKind = "ORDER"
)

type OrderBy string

const (
	OrderByConfig     OrderBy = "CONFIG"
	OrderByPoints     OrderBy = "POINTS"
	OrderByFollowedAt OrderBy = "FOLLOWED_AT"
)

type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

type PriorityMode struct {
	Kind      PriorityKind
	By        OrderBy
	Direction Direction
}
