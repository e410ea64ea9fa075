package betting

import "points-miner/internal/types"

// aggregate keys compare a value summed over all outcomes and can be checked
// before any outcome is chosen.
func aggregate(key types.OutcomeKey) bool {
	return key == types.KeyTotalUsers || key == types.KeyTotalPoints
}

func filterValue(f types.FilterCondition, w types.PredictionWindow, chosen int) float64 {
	switch f.By {
	case types.KeyTotalUsers:
		return float64(w.TotalUsers())
	case types.KeyTotalPoints:
		return float64(w.TotalPoints())
	}
	o := w.Outcomes[chosen]
	switch f.By {
	case types.KeyOdds:
		return o.Odds
	case types.KeyOddsPercentage:
		return o.OddsPercentage
	case types.KeyTopPoints:
		return float64(o.TopPoints)
	case types.KeyPercentageUsers:
		return o.PercentageUsers
	}
	return 0
}

func compare(where types.Condition, got, threshold float64) bool {
	switch where {
	case types.ConditionGT:
		return got > threshold
	case types.ConditionGTE:
		return got >= threshold
	case types.ConditionLT:
		return got < threshold
	case types.ConditionLTE:
		return got <= threshold
	}
	return false
}

// passes reports whether the filter allows a bet. chosen is ignored for aggregate keys.
func passes(f *types.FilterCondition, w types.PredictionWindow, chosen int) bool {
	if f == nil {
		return true
	}
	return compare(f.Where, filterValue(*f, w, chosen), f.Value)
}
