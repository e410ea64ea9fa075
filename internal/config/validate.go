package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"points-miner/internal/types"
)

// ConfigurationError lists every problem found in a configuration. It is only
// ever produced at startup.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

var knownStrategies = map[types.Strategy]bool{
	types.StrategyMostVoted:  true,
	types.StrategyHighOdds:   true,
	types.StrategyPercentage: true,
	types.StrategySmart:      true,
	types.StrategySmartMoney: true,
	types.StrategyNumber1:    true,
	types.StrategyNumber2:    true,
	types.StrategyNumber3:    true,
	types.StrategyNumber4:    true,
	types.StrategyNumber5:    true,
	types.StrategyNumber6:    true,
	types.StrategyNumber7:    true,
	types.StrategyNumber8:    true,
}

// Same field set as cron.WithSeconds, used by the persist job runner.
var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("event_tag", func(fl validator.FieldLevel) bool {
		return types.IsTag(fl.Field().String())
	})
	_ = v.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		return knownStrategies[types.Strategy(fl.Field().String())]
	})
	return v
}

func (c *Config) Validate() error {
	var problems []string

	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ConfigurationError{Problems: []string{err.Error()}}
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	seen := make(map[string]bool)
	for _, p := range c.Miner.Priority {
		if seen[p] {
			problems = append(problems, fmt.Sprintf("priority mode %s listed twice", p))
		}
		seen[p] = true
	}

	names := make(map[string]bool)
	for _, s := range c.Streamers {
		key := strings.ToLower(s.Username)
		if names[key] {
			problems = append(problems, fmt.Sprintf("streamer %s configured twice", s.Username))
		}
		names[key] = true
		problems = append(problems, checkBet(s.Username, c.StreamerSettingsFor(s).Bet)...)
	}
	problems = append(problems, checkBet("streamer_settings", c.DefaultStreamerSettings().Bet)...)

	if c.AWS.DynamoDBTable != "" && c.Miner.PersistSchedule != "" {
		if _, err := scheduleParser.Parse(c.Miner.PersistSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("persist_schedule: %v", err))
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func checkBet(owner string, b types.BetSettings) []string {
	var problems []string
	if b.DelayMode == types.DelayPercentage && b.Delay > 1 {
		problems = append(problems, fmt.Sprintf("%s: delay must be a fraction in [0,1] with delay_mode PERCENTAGE", owner))
	}
	if b.Strategy == types.StrategyPercentage &&
		b.PercentagePick != types.StrategyMostVoted && b.PercentagePick != types.StrategyHighOdds {
		problems = append(problems, fmt.Sprintf("%s: percentage_pick must be MOST_VOTED or HIGH_ODDS", owner))
	}
	return problems
}
