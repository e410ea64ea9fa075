package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"points-miner/internal/betting"
	"points-miner/internal/notify"
	"points-miner/internal/types"
)

func bettingStreamer(name string) types.Streamer {
	return streamerWith(name, func(s *types.Settings) {
		s.Bet.Strategy = types.StrategyMostVoted
		s.Bet.Percentage = 10
		s.Bet.PercentageGap = 0
		s.Bet.DelayMode = types.DelayFromEnd
		s.Bet.Delay = 30
	})
}

func window(id string, closesIn time.Duration, a, b types.Outcome) types.PredictionWindow {
	return types.PredictionWindow{
		ID:       id,
		Title:    "Will they win?",
		Outcomes: []types.Outcome{a, b},
		OpensAt:  start,
		ClosesAt: start.Add(closesIn),
	}
}

func outcome(id string, users, points int) types.Outcome {
	return types.Outcome{ID: id, Title: "Outcome " + id, TotalUsers: users, TotalPoints: points, TopPoints: points / 2}
}

func predictionEvent(typ, name string, w types.PredictionWindow) types.PlatformEvent {
	return types.PlatformEvent{Type: typ, Streamer: name, Prediction: &types.PredictionPayload{Window: w}}
}

func newBettingHarness(t *testing.T) *harness {
	return startBetting(newHarness(t, defaultOptions(), bettingStreamer("a")))
}

func startBetting(h *harness) *harness {
	h.up("a")
	h.send(types.PlatformEvent{Type: types.EventPointsUpdated, Streamer: "a", Points: &types.PointsPayload{Balance: 1000}})
	return h
}

// waitForTimer lets the fake clock's AfterFunc callback reach the inbox, then runs it.
func (h *harness) waitForTimer() {
	require.Eventually(h.t, func() bool { return len(h.e.inbox) > 0 }, time.Second, time.Millisecond)
	h.drain()
}

func TestBets_FromEndUsesFreshMetrics(t *testing.T) {
	h := newBettingHarness(t)

	created := window("w1", 120*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
	h.send(predictionEvent(types.EventPredictionCreated, "a", created))

	starts := h.notes.tagged(types.TagBetStart)
	require.Len(t, starts, 1)
	assert.True(t, start.Add(90*time.Second).Equal(starts[0].(notify.BetStart).PlaceAt))

	h.clock.Advance(60 * time.Second)
	updated := window("w1", 120*time.Second, outcome("A", 10, 100), outcome("B", 50, 500))
	h.send(predictionEvent(types.EventPredictionUpdated, "a", updated))
	assert.Empty(t, h.platform.placed())

	h.clock.Advance(30 * time.Second)
	h.waitForTimer()

	bets := h.platform.placed()
	require.Len(t, bets, 1)
	assert.Equal(t, "B", bets[0].outcome.ID, "decision uses metrics sampled at placement time")
	assert.Equal(t, 50, bets[0].window.Outcomes[1].TotalUsers)
	assert.Equal(t, 100, bets[0].amount)
	assert.True(t, start.Add(90*time.Second).Equal(bets[0].at))

	assert.Equal(t, 900, h.state("a").Points)
	require.NotNil(t, h.state("a").ActivePrediction.Placed)
	placed := h.notes.tagged(types.TagBetPlaced)
	require.Len(t, placed, 1)
	assert.Equal(t, types.StrategyMostVoted, placed[0].(notify.BetPlaced).Strategy)
}

func TestBets_EarlyLockIsTooLate(t *testing.T) {
	h := newBettingHarness(t)

	w := window("w1", 120*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
	h.send(predictionEvent(types.EventPredictionCreated, "a", w))

	h.clock.Advance(80 * time.Second)
	w.Locked = true
	h.send(predictionEvent(types.EventPredictionUpdated, "a", w))

	general := h.notes.tagged(types.TagBetGeneral)
	require.Len(t, general, 1)
	assert.Equal(t, betting.ErrPlacementTooLate.Error(), general[0].(notify.BetGeneral).Reason)
	assert.Empty(t, h.e.pending)

	h.clock.Advance(20 * time.Second)
	time.Sleep(10 * time.Millisecond)
	h.drain()
	assert.Empty(t, h.platform.placed())
}

func TestBets_ResolvedWin(t *testing.T) {
	h := newBettingHarness(t)

	w := window("w1", 60*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
	h.send(predictionEvent(types.EventPredictionCreated, "a", w))
	h.clock.Advance(30 * time.Second)
	h.waitForTimer()
	require.Len(t, h.platform.placed(), 1)

	h.send(types.PlatformEvent{
		Type:       types.EventPredictionResolved,
		Streamer:   "a",
		Prediction: &types.PredictionPayload{Window: w, WinningOutcomeID: "A", PointsWon: 180},
	})

	wins := h.notes.tagged(types.TagBetWin)
	require.Len(t, wins, 1)
	win := wins[0].(notify.BetWin)
	assert.Equal(t, 180, win.Won)
	assert.Equal(t, 100, win.Amount)
	assert.Equal(t, "Outcome A", win.Outcome)
	assert.Nil(t, h.state("a").ActivePrediction)

	// Late updates for a closed window are ignored.
	h.send(predictionEvent(types.EventPredictionUpdated, "a", w))
	assert.Nil(t, h.state("a").ActivePrediction)
	assert.Len(t, h.notes.tagged(types.TagBetStart), 1)
}

func TestBets_ResolvedLoseAndRefund(t *testing.T) {
	tests := []struct {
		name    string
		payload types.PredictionPayload
		tag     types.Tag
	}{
		{"lose", types.PredictionPayload{WinningOutcomeID: "B"}, types.TagBetLose},
		{"refund", types.PredictionPayload{Refunded: true}, types.TagBetRefund},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newBettingHarness(t)
			w := window("w1", 60*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
			h.send(predictionEvent(types.EventPredictionCreated, "a", w))
			h.clock.Advance(30 * time.Second)
			h.waitForTimer()

			tt.payload.Window = w
			h.send(types.PlatformEvent{Type: types.EventPredictionResolved, Streamer: "a", Prediction: &tt.payload})
			assert.Len(t, h.notes.tagged(tt.tag), 1)
		})
	}
}

func TestBets_ResolvedBeforePlacementCancelsTimer(t *testing.T) {
	h := newBettingHarness(t)

	w := window("w1", 120*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
	h.send(predictionEvent(types.EventPredictionCreated, "a", w))
	h.send(types.PlatformEvent{
		Type:       types.EventPredictionResolved,
		Streamer:   "a",
		Prediction: &types.PredictionPayload{Window: w, Refunded: true},
	})

	assert.Empty(t, h.e.pending)
	assert.Len(t, h.notes.tagged(types.TagBetGeneral), 1)
	assert.Empty(t, h.notes.tagged(types.TagBetRefund))
}

func TestBets_FilterRejection(t *testing.T) {
	s := streamerWith("a", func(s *types.Settings) {
		s.Bet.Strategy = types.StrategyMostVoted
		s.Bet.DelayMode = types.DelayFromStart
		s.Bet.Delay = 10
		s.Bet.Filter = &types.FilterCondition{By: types.KeyTotalUsers, Where: types.ConditionLTE, Value: 800}
	})
	h := newHarness(t, defaultOptions(), s)
	h.up("a")
	h.send(types.PlatformEvent{Type: types.EventPointsUpdated, Streamer: "a", Points: &types.PointsPayload{Balance: 1000}})

	w := window("w1", 120*time.Second, outcome("A", 700, 1000), outcome("B", 101, 500))
	h.send(predictionEvent(types.EventPredictionCreated, "a", w))
	h.clock.Advance(10 * time.Second)
	h.waitForTimer()

	assert.Empty(t, h.platform.placed())
	filters := h.notes.tagged(types.TagBetFilters)
	require.Len(t, filters, 1)
	assert.Equal(t, types.KeyTotalUsers, filters[0].(notify.BetFilters).Filter.By)
}

func TestBets_PlacementFailureIsReported(t *testing.T) {
	h := startBetting(newAsyncHarness(t, defaultOptions(), bettingStreamer("a")))
	h.settle()
	h.platform.betErr = errors.New("gateway unavailable")

	w := window("w1", 60*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
	h.send(predictionEvent(types.EventPredictionCreated, "a", w))
	h.clock.Advance(30 * time.Second)
	h.waitForTimer()
	h.runJobs(time.Millisecond)

	failed := h.notes.tagged(types.TagBetFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].(notify.BetFailed).Error, "gateway unavailable")
	assert.Equal(t, 1000, h.state("a").Points)
	assert.Nil(t, h.state("a").ActivePrediction.Placed)
}

func TestBets_IgnoredWhenDisabledOrOffline(t *testing.T) {
	off := streamerWith("quiet", func(s *types.Settings) { s.MakePredictions = false })
	h := newHarness(t, defaultOptions(), off, streamer("offline"))
	h.up("quiet")

	w := window("w1", 60*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
	h.send(predictionEvent(types.EventPredictionCreated, "quiet", w))
	h.send(predictionEvent(types.EventPredictionCreated, "offline", w))

	assert.Nil(t, h.state("quiet").ActivePrediction)
	assert.Nil(t, h.state("offline").ActivePrediction)
	assert.Empty(t, h.e.pending)
}

func TestBets_StreamDownClearsPrediction(t *testing.T) {
	h := newBettingHarness(t)

	w := window("w1", 120*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
	h.send(predictionEvent(types.EventPredictionCreated, "a", w))
	require.NotNil(t, h.state("a").ActivePrediction)

	h.down("a")
	assert.Nil(t, h.state("a").ActivePrediction)
	assert.Empty(t, h.e.pending)
}

func TestBets_ReceiptAfterResolutionStillReportsOutcome(t *testing.T) {
	h := startBetting(newAsyncHarness(t, defaultOptions(), bettingStreamer("a")))
	h.settle()
	gate := make(chan struct{})
	h.platform.betGate = gate

	w := window("w1", 60*time.Second, outcome("A", 10, 100), outcome("B", 5, 50))
	h.send(predictionEvent(types.EventPredictionCreated, "a", w))
	h.clock.Advance(30 * time.Second)
	h.waitForTimer()

	// The window resolves while the placement is still in flight.
	h.send(types.PlatformEvent{
		Type:       types.EventPredictionResolved,
		Streamer:   "a",
		Prediction: &types.PredictionPayload{Window: w, WinningOutcomeID: "A", PointsWon: 180},
	})
	assert.Empty(t, h.notes.tagged(types.TagBetWin))
	assert.Nil(t, h.state("a").ActivePrediction)

	close(gate)
	h.settle()

	require.Len(t, h.notes.tagged(types.TagBetPlaced), 1)
	wins := h.notes.tagged(types.TagBetWin)
	require.Len(t, wins, 1)
	win := wins[0].(notify.BetWin)
	assert.Equal(t, 100, win.Amount)
	assert.Equal(t, 180, win.Won)
	assert.Equal(t, 900, h.state("a").Points)
	assert.Empty(t, h.notes.tagged(types.TagBetGeneral))
}
