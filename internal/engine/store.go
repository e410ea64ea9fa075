package engine

import (
	"cmp"
	"slices"
	"strings"

	"points-miner/internal/types"
)

// store holds every tracked streamer's state. Only the control loop touches it.
type store struct {
	states map[string]*types.StreamState
}

func newStore() *store {
	return &store{states: make(map[string]*types.StreamState)}
}

func key(username string) string {
	return strings.ToLower(username)
}

func (s *store) add(st *types.StreamState) bool {
	k := key(st.Streamer.Username)
	if _, ok := s.states[k]; ok {
		return false
	}
	s.states[k] = st
	return true
}

func (s *store) get(username string) (*types.StreamState, bool) {
	st, ok := s.states[key(username)]
	return st, ok
}

func (s *store) len() int { return len(s.states) }

// all returns the live records in configuration order.
func (s *store) all() []*types.StreamState {
	out := make([]*types.StreamState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b *types.StreamState) int {
		return cmp.Compare(a.Streamer.Index, b.Streamer.Index)
	})
	return out
}

func (s *store) withStatus(status types.WatchStatus) []*types.StreamState {
	var out []*types.StreamState
	for _, st := range s.all() {
		if st.Status == status {
			out = append(out, st)
		}
	}
	return out
}

// snapshot returns value copies safe to hand to other goroutines.
func (s *store) snapshot() []types.StreamState {
	all := s.all()
	out := make([]types.StreamState, len(all))
	for i, st := range all {
		out[i] = st.Clone()
	}
	return out
}
