package types

import (
	"slices"
	"time"
)

// Progress is the persisted slice of a StreamState that survives a restart.
type Progress struct {
	Username         string        `json:"username" dynamodbav:"username"`
	Points           int           `json:"points" dynamodbav:"points"`
	WatchAccumulated time.Duration `json:"watch_accumulated" dynamodbav:"watch_accumulated"`
	StreakDone       bool          `json:"streak_done" dynamodbav:"streak_done"`
	DropsRemaining   []string      `json:"drops_remaining,omitempty" dynamodbav:"drops_remaining,omitempty"`
	LastSeenOnline   time.Time     `json:"last_seen_online" dynamodbav:"last_seen_online"`
	LastSeenOffline  time.Time     `json:"last_seen_offline" dynamodbav:"last_seen_offline"`
	UpdatedAt        time.Time     `json:"updated_at" dynamodbav:"updated_at"`
}

func (s *StreamState) Progress(now time.Time) Progress {
	drops := make([]string, 0, len(s.DropsRemaining))
	for id := range s.DropsRemaining {
		drops = append(drops, id)
	}
	slices.Sort(drops)
	return Progress{
		Username:         s.Streamer.Username,
		Points:           s.Points,
		WatchAccumulated: s.WatchAccumulated,
		StreakDone:       s.StreakDone,
		DropsRemaining:   drops,
		LastSeenOnline:   s.LastSeenOnline,
		LastSeenOffline:  s.LastSeenOffline,
		UpdatedAt:        now,
	}
}

// Restore applies persisted progress. Online status is never restored; the
// platform feed re-reports live streams.
func (s *StreamState) Restore(p Progress) {
	s.Points = p.Points
	s.WatchAccumulated = p.WatchAccumulated
	s.StreakDone = p.StreakDone
	s.LastSeenOnline = p.LastSeenOnline
	s.LastSeenOffline = p.LastSeenOffline
	s.DropsRemaining = make(map[string]struct{}, len(p.DropsRemaining))
	for _, id := range p.DropsRemaining {
		s.DropsRemaining[id] = struct{}{}
	}
}
