// Package priority orders online streamers for the watch scheduler.
package priority

import (
	"cmp"
	"slices"

	"points-miner/internal/types"
)

// Rank returns the online streamers of states ordered by modes, applied
// lexicographically. Configuration order breaks every remaining tie, so the
// result is a deterministic total order.
func Rank(states []types.StreamState, modes []types.PriorityMode) []types.Streamer {
	online := make([]types.StreamState, 0, len(states))
	for _, s := range states {
		if s.Online {
			online = append(online, s)
		}
	}

	slices.SortStableFunc(online, func(a, b types.StreamState) int {
		for _, m := range modes {
			if c := compareMode(m, a, b); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Streamer.Index, b.Streamer.Index)
	})

	out := make([]types.Streamer, len(online))
	for i, s := range online {
		out[i] = s.Streamer
	}
	return out
}

func compareMode(m types.PriorityMode, a, b types.StreamState) int {
	switch m.Kind {
	case types.PriorityStreak:
		return compareStreak(a, b)
	case types.PriorityDrops:
		return cmp.Compare(rankBool(a.DropsPending()), rankBool(b.DropsPending()))
	case types.PriorityOrder:
		return compareOrder(m, a, b)
	default:
		return 0
	}
}

// compareStreak puts streamers with a pending streak first, nearest to the threshold first.
func compareStreak(a, b types.StreamState) int {
	ap, bp := a.StreakPending(), b.StreakPending()
	if c := cmp.Compare(rankBool(ap), rankBool(bp)); c != 0 || !ap {
		return c
	}
	return cmp.Compare(a.StreakThreshold()-a.WatchAccumulated, b.StreakThreshold()-b.WatchAccumulated)
}

func compareOrder(m types.PriorityMode, a, b types.StreamState) int {
	var c int
	switch m.By {
	case types.OrderByPoints:
		c = cmp.Compare(a.Points, b.Points)
	case types.OrderByFollowedAt:
		c = a.Streamer.FollowedAt.Compare(b.Streamer.FollowedAt)
	default:
		c = cmp.Compare(a.Streamer.Index, b.Streamer.Index)
	}
	if m.Direction == types.Descending {
		c = -c
	}
	return c
}

func rankBool(v bool) int {
	if v {
		return 0
	}
	return 1
}
