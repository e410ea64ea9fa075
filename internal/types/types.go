package types

import "time"

type Streamer struct {
	Username   string    `json:"username"`
	ChannelID  string    `json:"channel_id"`
	Index      int       `json:"index"`
	FollowedAt time.Time `json:"followed_at,omitempty"`
	Settings   Settings  `json:"-"`
}

type WatchStatus int

const (
	StatusOffline WatchStatus = iota
	StatusOnlineUnwatched
	StatusWatched
)

func (s WatchStatus) String() string {
	switch s {
	case StatusOffline:
		return "OFFLINE"
	case StatusOnlineUnwatched:
		return "ONLINE_UNWATCHED"
	case StatusWatched:
		return "WATCHED"
	default:
		return "UNKNOWN"
	}
}

// StreamState is the per-streamer record owned by the engine control loop.
// Copies handed to other goroutines must go through Clone.
type StreamState struct {
	Streamer Streamer

	Online          bool
	Status          WatchStatus
	LastSeenOnline  time.Time
	LastSeenOffline time.Time
	WatchedSince    time.Time

	// SpeculativeOffline is set while the engine, not the platform, decided
	// the stream ended. A later live-stream event reverts it.
	SpeculativeOffline bool

	WatchAccumulated      time.Duration
	StreakMinutesRequired int
	StreakDone            bool

	Points         int
	DropsRemaining map[string]struct{}

	ActivePrediction *PredictionWindow
}

func NewStreamState(s Streamer, streakMinutes int) *StreamState {
	return &StreamState{
		Streamer:              s,
		Status:                StatusOffline,
		StreakMinutesRequired: streakMinutes,
		DropsRemaining:        make(map[string]struct{}),
	}
}

func (s *StreamState) StreakThreshold() time.Duration {
	return time.Duration(s.StreakMinutesRequired) * time.Minute
}

// StreakPending reports whether watching this streamer still progresses a watch streak.
func (s *StreamState) StreakPending() bool {
	return s.Streamer.Settings.WatchStreak && !s.StreakDone && s.WatchAccumulated < s.StreakThreshold()
}

func (s *StreamState) DropsPending() bool {
	return s.Streamer.Settings.ClaimDrops && len(s.DropsRemaining) > 0
}

// GoalsComplete is true once there is no streak or drop left to chase.
func (s *StreamState) GoalsComplete() bool {
	return !s.StreakPending() && !s.DropsPending()
}

func (s *StreamState) Clone() StreamState {
	c := *s
	c.DropsRemaining = make(map[string]struct{}, len(s.DropsRemaining))
	for id := range s.DropsRemaining {
		c.DropsRemaining[id] = struct{}{}
	}
	if s.ActivePrediction != nil {
		w := s.ActivePrediction.Clone()
		c.ActivePrediction = &w
	}
	return c
}

type Follower struct {
	Username   string    `json:"username"`
	ChannelID  string    `json:"channel_id"`
	FollowedAt time.Time `json:"followed_at"`
}

type BetReceipt struct {
	ID        string    `json:"id"`
	WindowID  string    `json:"window_id"`
	OutcomeID string    `json:"outcome_id"`
	Amount    int       `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}
