package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-miner/internal/notify"
	"points-miner/internal/types"
)

func TestScheduler_NeverExceedsWatchLimit(t *testing.T) {
	opts := defaultOptions()
	opts.MinDwell = 0
	var streamers []types.Streamer
	for i := range 5 {
		streamers = append(streamers, streamer(fmt.Sprintf("s%d", i)))
	}
	h := newHarness(t, opts, streamers...)

	online := map[string]bool{}
	check := func(step string) {
		n := 0
		for _, v := range online {
			if v {
				n++
			}
		}
		assert.LessOrEqual(t, len(h.watched()), opts.WatchLimit, step)
		assert.LessOrEqual(t, len(h.e.sessions), opts.WatchLimit, step)
		assert.Len(t, h.watched(), min(n, opts.WatchLimit), step)
	}

	steps := []struct {
		up   bool
		name string
	}{
		{true, "s3"}, {true, "s4"}, {true, "s0"}, {true, "s1"}, {false, "s0"},
		{true, "s2"}, {false, "s3"}, {true, "s0"}, {false, "s1"}, {false, "s2"},
		{true, "s3"}, {false, "s0"}, {false, "s3"}, {false, "s4"},
	}
	for i, s := range steps {
		if s.up {
			h.up(s.name)
		} else {
			h.down(s.name)
		}
		online[s.name] = s.up
		check(fmt.Sprintf("step %d event", i))

		h.tickAfter(time.Minute)
		check(fmt.Sprintf("step %d tick", i))
	}
}

func TestScheduler_WatchesHighestRanked(t *testing.T) {
	h := newHarness(t, defaultOptions(), streamer("a"), streamer("b"), streamer("c"))

	h.up("c")
	h.up("b")
	assert.ElementsMatch(t, []string{"b", "c"}, h.watched())
	assert.Equal(t, types.StatusOffline, h.state("a").Status)

	// a ranks first but both watched sessions are inside their dwell time.
	h.up("a")
	assert.ElementsMatch(t, []string{"b", "c"}, h.watched())
	assert.Equal(t, types.StatusOnlineUnwatched, h.state("a").Status)
	assert.Equal(t, []string{"a", "b", "c"}, usernames(h.e.order))
}

func usernames(order []types.Streamer) []string {
	out := make([]string, len(order))
	for i, s := range order {
		out[i] = s.Username
	}
	return out
}

func TestScheduler_PreemptionWaitsForDwell(t *testing.T) {
	opts := defaultOptions()
	opts.WatchLimit = 1
	opts.Priority = []types.PriorityMode{{Kind: types.PriorityOrder, By: types.OrderByConfig, Direction: types.Ascending}}
	h := newHarness(t, opts, streamer("a"), streamer("b"))

	h.up("b")
	require.Equal(t, []string{"b"}, h.watched())

	h.up("a")
	assert.Equal(t, []string{"b"}, h.watched(), "b is inside its dwell time")
	assert.Equal(t, types.StatusOnlineUnwatched, h.state("a").Status)

	h.tickAfter(2 * time.Minute)
	assert.Equal(t, []string{"b"}, h.watched())

	h.tickAfter(3 * time.Minute)
	assert.Equal(t, []string{"a"}, h.watched())
	assert.Equal(t, types.StatusOnlineUnwatched, h.state("b").Status)

	// Preemption keeps the watch time gathered toward the streak.
	assert.Equal(t, 5*time.Minute, h.state("b").WatchAccumulated)
}

func TestScheduler_GoalCompleteEvictedWithoutDwell(t *testing.T) {
	opts := defaultOptions()
	opts.WatchLimit = 1
	opts.Priority = []types.PriorityMode{{Kind: types.PriorityOrder, By: types.OrderByConfig, Direction: types.Ascending}}
	idle := streamerWith("b", func(s *types.Settings) {
		s.WatchStreak = false
		s.ClaimDrops = false
	})
	h := newHarness(t, opts, streamer("a"), idle)

	h.up("b")
	require.Equal(t, []string{"b"}, h.watched())

	h.up("a")
	assert.Equal(t, []string{"a"}, h.watched())
}

func TestScheduler_StreakCompletesOnce(t *testing.T) {
	opts := defaultOptions()
	opts.WatchLimit = 1
	h := newHarness(t, opts, streamer("a"))

	h.up("a")
	for range 6 {
		h.tickAfter(time.Minute)
	}
	assert.False(t, h.state("a").StreakDone)
	assert.Empty(t, h.notes.tagged(types.TagGainForWatchStreak))

	h.tickAfter(time.Minute)
	assert.True(t, h.state("a").StreakDone)
	h.tickAfter(time.Minute)

	events := h.notes.tagged(types.TagGainForWatchStreak)
	require.Len(t, events, 1)
	assert.Equal(t, 7, events[0].(notify.WatchStreak).Minutes)
	assert.Equal(t, 8, h.platform.heartbeats["a"])
}

func TestScheduler_StreakSurvivesShortOffline(t *testing.T) {
	h := newHarness(t, defaultOptions(), streamer("a"))

	h.up("a")
	h.tickAfter(time.Minute)
	h.tickAfter(time.Minute)
	h.tickAfter(time.Minute)
	h.down("a")
	require.Equal(t, 3*time.Minute, h.state("a").WatchAccumulated)

	h.clock.Advance(10 * time.Minute)
	h.up("a")
	assert.Equal(t, 3*time.Minute, h.state("a").WatchAccumulated)

	h.down("a")
	h.clock.Advance(31 * time.Minute)
	h.up("a")
	assert.Zero(t, h.state("a").WatchAccumulated)
	assert.False(t, h.state("a").StreakDone)
}

func TestScheduler_HeartbeatFailureMarksOffline(t *testing.T) {
	opts := defaultOptions()
	opts.Retry.InitialBackoff = time.Minute
	opts.Retry.MaxBackoff = time.Minute
	h := newAsyncHarness(t, opts, streamer("a"))
	h.platform.setHeartbeatErr(fmt.Errorf("connection reset"))

	h.up("a")
	h.tickAfter(time.Minute)
	h.runJobs(time.Minute)

	// Four backoffs between five attempts, all on the engine clock.
	assert.Equal(t, 5, h.platform.heartbeatCount("a"))
	assert.True(t, start.Add(5*time.Minute).Equal(h.clock.Now()))
	st := h.state("a")
	assert.False(t, st.Online)
	assert.True(t, st.SpeculativeOffline)
	assert.Equal(t, types.StatusOffline, st.Status)
	assert.Empty(t, h.e.sessions)

	offline := h.notes.tagged(types.TagStreamerOffline)
	require.Len(t, offline, 1)
	assert.True(t, offline[0].(notify.StreamerOffline).Speculative)

	// The next platform event corrects the speculative transition.
	h.platform.setHeartbeatErr(nil)
	h.up("a")
	h.settle()
	assert.True(t, h.state("a").Online)
	assert.False(t, h.state("a").SpeculativeOffline)
	assert.Equal(t, []string{"a"}, h.watched())
}

func TestScheduler_LiveEventRevertsSpeculativeOffline(t *testing.T) {
	h := newAsyncHarness(t, defaultOptions(), bettingStreamer("a"))
	h.platform.setHeartbeatErr(fmt.Errorf("connection reset"))

	h.up("a")
	h.tickAfter(time.Minute)
	h.runJobs(time.Millisecond)
	require.True(t, h.state("a").SpeculativeOffline)
	accumulated := h.state("a").WatchAccumulated
	require.Positive(t, accumulated)

	// Longer than StreakResetAfter, but the broadcast never ended.
	h.platform.setHeartbeatErr(nil)
	h.clock.Advance(31 * time.Minute)
	h.send(predictionEvent(types.EventPredictionCreated, "a", window("w1", time.Hour, outcome("A", 10, 100), outcome("B", 5, 50))))
	h.send(types.PlatformEvent{Type: types.EventPointsUpdated, Streamer: "a", Points: &types.PointsPayload{Balance: 1000}})
	h.settle()

	st := h.state("a")
	assert.True(t, st.Online)
	assert.False(t, st.SpeculativeOffline)
	assert.Equal(t, types.StatusWatched, st.Status)
	require.NotNil(t, st.ActivePrediction)
	assert.Equal(t, "w1", st.ActivePrediction.ID)
	assert.Equal(t, []string{"a"}, h.watched())
	assert.Equal(t, accumulated, st.WatchAccumulated)
	assert.Len(t, h.notes.tagged(types.TagStreamerOnline), 2)

	before := h.platform.heartbeatCount("a")
	h.tickAfter(time.Minute)
	h.settle()
	assert.Greater(t, h.platform.heartbeatCount("a"), before)
}

func TestScheduler_ConfirmedOfflineIgnoresLateEvents(t *testing.T) {
	h := newAsyncHarness(t, defaultOptions(), bettingStreamer("a"))
	h.platform.setHeartbeatErr(fmt.Errorf("connection reset"))

	h.up("a")
	h.tickAfter(time.Minute)
	h.runJobs(time.Millisecond)
	require.True(t, h.state("a").SpeculativeOffline)

	// A raid says nothing about this streamer's own broadcast.
	h.send(types.PlatformEvent{Type: types.EventRaid, Streamer: "a"})
	assert.False(t, h.state("a").Online)
	assert.True(t, h.state("a").SpeculativeOffline)

	h.down("a")
	assert.False(t, h.state("a").SpeculativeOffline)

	h.send(predictionEvent(types.EventPredictionCreated, "a", window("w1", time.Hour, outcome("A", 10, 100), outcome("B", 5, 50))))
	h.settle()
	assert.False(t, h.state("a").Online)
	assert.Nil(t, h.state("a").ActivePrediction)
	assert.Len(t, h.notes.tagged(types.TagStreamerOnline), 1)
}

func TestScheduler_PermanentHeartbeatErrorIsNotRetried(t *testing.T) {
	h := newHarness(t, defaultOptions(), streamer("a"))
	h.platform.heartbeatErr = permanentErr{}

	h.up("a")
	h.tickAfter(time.Minute)

	assert.Equal(t, 1, h.platform.heartbeats["a"])
	assert.False(t, h.state("a").Online)
}

type permanentErr struct{}

func (permanentErr) Error() string   { return "not found" }
func (permanentErr) Permanent() bool { return true }

func TestScheduler_StreamDownEmitsAndUnwatches(t *testing.T) {
	h := newHarness(t, defaultOptions(), streamer("a"))

	h.up("a")
	require.Len(t, h.notes.tagged(types.TagStreamerOnline), 1)
	h.down("a")

	assert.Empty(t, h.watched())
	assert.True(t, start.Equal(h.state("a").LastSeenOffline))
	require.Len(t, h.notes.tagged(types.TagStreamerOffline), 1)
	assert.False(t, h.notes.tagged(types.TagStreamerOffline)[0].(notify.StreamerOffline).Speculative)
}

func TestScheduler_RankCachedUntilDirty(t *testing.T) {
	opts := defaultOptions()
	opts.Priority = []types.PriorityMode{{Kind: types.PriorityOrder, By: types.OrderByPoints, Direction: types.Descending}}
	h := newHarness(t, opts, streamer("a"))

	h.up("a")
	assert.False(t, h.e.dirty)

	h.send(types.PlatformEvent{Type: types.EventPointsUpdated, Streamer: "a", Points: &types.PointsPayload{Balance: 500}})
	assert.True(t, h.e.dirty)
	assert.Equal(t, 500, h.state("a").Points)

	h.tickAfter(time.Minute)
	assert.False(t, h.e.dirty)
}

func TestScheduler_PointsDoNotDirtyConfigOrder(t *testing.T) {
	h := newHarness(t, defaultOptions(), streamer("a"))

	h.up("a")
	h.send(types.PlatformEvent{Type: types.EventPointsUpdated, Streamer: "a", Points: &types.PointsPayload{Balance: 500}})
	assert.False(t, h.e.dirty)
}
