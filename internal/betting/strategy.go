package betting

import (
	"strconv"
	"strings"

	"points-miner/internal/types"
)

// Strategy picks the outcome to bet on. ok is false when the strategy declines.
type Strategy interface {
	Name() types.Strategy
	Evaluate(w types.PredictionWindow) (index int, ok bool)
}

// NewStrategy selects the strategy for resolved settings. Unknown names fall
// back to SMART; configuration validation rejects them before this point.
func NewStrategy(s types.BetSettings) Strategy {
	switch s.Strategy {
	case types.StrategyMostVoted:
		return mostVoted{}
	case types.StrategyHighOdds:
		return highOdds{}
	case types.StrategyPercentage:
		var pick Strategy = mostVoted{}
		if s.PercentagePick == types.StrategyHighOdds {
			pick = highOdds{}
		}
		return percentage{pick: pick}
	case types.StrategySmartMoney:
		return smartMoney{}
	}
	if n, ok := strings.CutPrefix(string(s.Strategy), "NUMBER_"); ok {
		if i, err := strconv.Atoi(n); err == nil && i >= 1 {
			return number{index: i - 1}
		}
	}
	return smart{}
}

type mostVoted struct{}

func (mostVoted) Name() types.Strategy { return types.StrategyMostVoted }

func (mostVoted) Evaluate(w types.PredictionWindow) (int, bool) {
	if w.TotalUsers() == 0 {
		return -1, false
	}
	return argmax(w.Outcomes, func(o types.Outcome) float64 { return float64(o.TotalUsers) })
}

type highOdds struct{}

func (highOdds) Name() types.Strategy { return types.StrategyHighOdds }

func (highOdds) Evaluate(w types.PredictionWindow) (int, bool) {
	return argmax(w.Outcomes, func(o types.Outcome) float64 { return o.Odds })
}

// percentage bets on whichever outcome its tiebreak picks; the sizing is the
// same percentage-of-balance rule every strategy uses.
type percentage struct {
	pick Strategy
}

func (percentage) Name() types.Strategy { return types.StrategyPercentage }

func (p percentage) Evaluate(w types.PredictionWindow) (int, bool) {
	return p.pick.Evaluate(w)
}

// smart only bets when the crowd favourite also pays the best odds.
type smart struct{}

func (smart) Name() types.Strategy { return types.StrategySmart }

func (smart) Evaluate(w types.PredictionWindow) (int, bool) {
	voted, ok := mostVoted{}.Evaluate(w)
	if !ok {
		return -1, false
	}
	odds, ok := highOdds{}.Evaluate(w)
	if !ok || voted != odds {
		return -1, false
	}
	return voted, true
}

type smartMoney struct{}

func (smartMoney) Name() types.Strategy { return types.StrategySmartMoney }

func (smartMoney) Evaluate(w types.PredictionWindow) (int, bool) {
	return argmax(w.Outcomes, func(o types.Outcome) float64 { return float64(o.TopPoints) })
}

type number struct {
	index int
}

func (n number) Name() types.Strategy {
	return types.Strategy("NUMBER_" + strconv.Itoa(n.index+1))
}

func (n number) Evaluate(w types.PredictionWindow) (int, bool) {
	if n.index >= len(w.Outcomes) {
		return -1, false
	}
	return n.index, true
}

// argmax returns the first outcome with the strictly highest positive value.
func argmax(outcomes []types.Outcome, value func(types.Outcome) float64) (int, bool) {
	best, bestValue := -1, 0.0
	for i, o := range outcomes {
		if v := value(o); v > bestValue {
			best, bestValue = i, v
		}
	}
	return best, best >= 0
}
