package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"points-miner/internal/types"
)

// StreamerSettings is one tier of optional overrides. Nil fields defer to the tier below.
type StreamerSettings struct {
	MakePredictions *bool        `yaml:"make_predictions"`
	FollowRaid      *bool        `yaml:"follow_raid"`
	ClaimDrops      *bool        `yaml:"claim_drops"`
	ClaimMoments    *bool        `yaml:"claim_moments"`
	WatchStreak     *bool        `yaml:"watch_streak"`
	Chat            *string      `yaml:"chat" validate:"omitempty,oneof=ALWAYS NEVER ONLINE OFFLINE"`
	Bet             *BetSettings `yaml:"bet"`
}

type BetSettings struct {
	Strategy       *string          `yaml:"strategy" validate:"omitempty,strategy"`
	PercentagePick *string          `yaml:"percentage_pick" validate:"omitempty,oneof=MOST_VOTED HIGH_ODDS"`
	Percentage     *int             `yaml:"percentage" validate:"omitempty,min=0,max=100"`
	PercentageGap  *int             `yaml:"percentage_gap" validate:"omitempty,min=0,max=100"`
	MaxPoints      *int             `yaml:"max_points" validate:"omitempty,min=0"`
	MinimumPoints  *int             `yaml:"minimum_points" validate:"omitempty,min=0"`
	StealthMode    *bool            `yaml:"stealth_mode"`
	DelayMode      *string          `yaml:"delay_mode" validate:"omitempty,oneof=FROM_START FROM_END PERCENTAGE"`
	Delay          *float64         `yaml:"delay" validate:"omitempty,min=0"`
	Filter         *FilterCondition `yaml:"filter_condition"`
}

type FilterCondition struct {
	By    string  `yaml:"by" validate:"required,oneof=TOTAL_USERS TOTAL_POINTS ODDS ODDS_PERCENTAGE TOP_POINTS PERCENTAGE_USERS"`
	Where string  `yaml:"where" validate:"required,oneof=GT GTE LT LTE"`
	Value float64 `yaml:"value"`
}

type StreamerConfig struct {
	Username string           `yaml:"username" validate:"required"`
	Settings StreamerSettings `yaml:"settings"`
}

// UnmarshalYAML accepts either a bare username or a mapping with settings.
func (s *StreamerConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&s.Username)
	}
	type plain StreamerConfig
	var p plain
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("invalid streamer entry: %w", err)
	}
	*s = StreamerConfig(p)
	return nil
}

// Resolve merges the three settings tiers: per-streamer override, miner-wide
// defaults, and built-in global defaults. The result shares no memory with its inputs.
func Resolve(call, instance StreamerSettings, global types.Settings) types.Settings {
	out := global
	if global.Bet.Filter != nil {
		f := *global.Bet.Filter
		out.Bet.Filter = &f
	}
	instance.apply(&out)
	call.apply(&out)
	return out
}

func (o StreamerSettings) apply(s *types.Settings) {
	setBool(&s.MakePredictions, o.MakePredictions)
	setBool(&s.FollowRaid, o.FollowRaid)
	setBool(&s.ClaimDrops, o.ClaimDrops)
	setBool(&s.ClaimMoments, o.ClaimMoments)
	setBool(&s.WatchStreak, o.WatchStreak)
	if o.Chat != nil {
		s.Chat = types.ChatPresence(*o.Chat)
	}
	if o.Bet != nil {
		o.Bet.apply(&s.Bet)
	}
}

func (o BetSettings) apply(b *types.BetSettings) {
	if o.Strategy != nil {
		b.Strategy = types.Strategy(*o.Strategy)
	}
	if o.PercentagePick != nil {
		b.PercentagePick = types.Strategy(*o.PercentagePick)
	}
	setInt(&b.Percentage, o.Percentage)
	setInt(&b.PercentageGap, o.PercentageGap)
	setInt(&b.MaxPoints, o.MaxPoints)
	setInt(&b.MinimumPoints, o.MinimumPoints)
	setBool(&b.StealthMode, o.StealthMode)
	if o.DelayMode != nil {
		b.DelayMode = types.DelayMode(*o.DelayMode)
	}
	if o.Delay != nil {
		b.Delay = *o.Delay
	}
	if o.Filter != nil {
		b.Filter = &types.FilterCondition{
			By:    types.OutcomeKey(o.Filter.By),
			Where: types.Condition(o.Filter.Where),
			Value: o.Filter.Value,
		}
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// StreamerSettingsFor resolves the effective settings of a configured streamer.
func (c *Config) StreamerSettingsFor(sc StreamerConfig) types.Settings {
	return Resolve(sc.Settings, c.Settings, types.DefaultSettings())
}

// DefaultStreamerSettings resolves settings for streamers with no override, such as followers.
func (c *Config) DefaultStreamerSettings() types.Settings {
	return Resolve(StreamerSettings{}, c.Settings, types.DefaultSettings())
}
