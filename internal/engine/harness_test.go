package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"points-miner/internal/notify"
	"points-miner/internal/retry"
	"points-miner/internal/types"
	"points-miner/internal/worker"
)

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type placedBet struct {
	window  types.PredictionWindow
	outcome types.Outcome
	amount  int
	at      time.Time
}

type chatCall struct {
	streamer string
	joined   bool
}

type fakePlatform struct {
	clock clockwork.Clock

	mu           sync.Mutex
	heartbeatErr error
	betErr       error
	heartbeats   map[string]int
	bets         []placedBet
	drops        []string
	raids        []string
	moments      []string
	chat         []chatCall
	followers    []types.Follower

	claimable      []types.InventoryDrop
	claimableCalls int

	// betGate, when set, holds PlaceBet until it is closed.
	betGate chan struct{}
}

func (p *fakePlatform) SendWatchHeartbeat(_ context.Context, s types.Streamer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeats[s.Username]++
	return p.heartbeatErr
}

func (p *fakePlatform) setHeartbeatErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeatErr = err
}

func (p *fakePlatform) heartbeatCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heartbeats[name]
}

func (p *fakePlatform) PlaceBet(_ context.Context, w types.PredictionWindow, o types.Outcome, amount int) (types.BetReceipt, error) {
	p.mu.Lock()
	gate := p.betGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.betErr != nil {
		return types.BetReceipt{}, p.betErr
	}
	p.bets = append(p.bets, placedBet{window: w, outcome: o, amount: amount, at: p.clock.Now()})
	return types.BetReceipt{ID: "receipt-1", WindowID: w.ID, OutcomeID: o.ID, Amount: amount}, nil
}

func (p *fakePlatform) ClaimDrop(_ context.Context, _ types.Streamer, dropID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drops = append(p.drops, dropID)
	return nil
}

func (p *fakePlatform) JoinRaid(_ context.Context, _ types.Streamer, raidID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raids = append(p.raids, raidID)
	return nil
}

func (p *fakePlatform) ClaimMoment(_ context.Context, _ types.Streamer, momentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moments = append(p.moments, momentID)
	return nil
}

func (p *fakePlatform) SetChatPresence(_ context.Context, s types.Streamer, joined bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chat = append(p.chat, chatCall{streamer: s.Username, joined: joined})
	return nil
}

func (p *fakePlatform) Followers(context.Context) ([]types.Follower, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Follower(nil), p.followers...), nil
}

func (p *fakePlatform) ClaimableDrops(context.Context) ([]types.InventoryDrop, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimableCalls++
	return append([]types.InventoryDrop(nil), p.claimable...), nil
}

func (p *fakePlatform) claimed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.drops...)
}

func (p *fakePlatform) placed() []placedBet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]placedBet(nil), p.bets...)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Dispatch(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) tagged(tag types.Tag) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, ev := range r.events {
		if ev.Tag() == tag {
			out = append(out, ev)
		}
	}
	return out
}

// inlineJobs runs every job on the calling goroutine so tests stay deterministic.
type inlineJobs struct{}

func (inlineJobs) Enqueue(j worker.Job) error {
	_ = j.Process(context.Background())
	return nil
}

// asyncJobs runs each job on its own goroutine, like the worker pool, for
// tests where a platform call has to wait on the fake clock.
type asyncJobs struct {
	running atomic.Int32
}

func (a *asyncJobs) Enqueue(j worker.Job) error {
	a.running.Add(1)
	go func() {
		defer a.running.Add(-1)
		_ = j.Process(context.Background())
	}()
	return nil
}

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

type harness struct {
	t        *testing.T
	e        *Engine
	clock    fakeClock
	platform *fakePlatform
	notes    *recorder
	jobs     *asyncJobs
}

func defaultOptions() Options {
	return Options{
		TickInterval:     time.Minute,
		WatchLimit:       2,
		MinDwell:         5 * time.Minute,
		StreakMinutes:    7,
		StreakResetAfter: 30 * time.Minute,
		Priority: []types.PriorityMode{
			{Kind: types.PriorityStreak},
			{Kind: types.PriorityDrops},
			{Kind: types.PriorityOrder, By: types.OrderByConfig, Direction: types.Ascending},
		},
		Retry:       retry.Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond},
		CallTimeout: time.Second,
	}
}

func newHarness(t *testing.T, opts Options, streamers ...types.Streamer) *harness {
	t.Helper()
	return buildHarness(t, inlineJobs{}, nil, opts, streamers)
}

// newAsyncHarness runs platform calls off the control loop. Use runJobs or
// settle to wait for them.
func newAsyncHarness(t *testing.T, opts Options, streamers ...types.Streamer) *harness {
	t.Helper()
	jobs := &asyncJobs{}
	return buildHarness(t, jobs, jobs, opts, streamers)
}

func buildHarness(t *testing.T, enq Enqueuer, jobs *asyncJobs, opts Options, streamers []types.Streamer) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(start)
	platform := &fakePlatform{clock: clock, heartbeats: make(map[string]int)}
	notes := &recorder{}
	e := New(zap.NewNop(), clock, platform, notes, enq, opts)
	for _, s := range streamers {
		require.True(t, e.Register(s))
	}
	return &harness{t: t, e: e, clock: clock, platform: platform, notes: notes, jobs: jobs}
}

func streamer(name string) types.Streamer {
	return types.Streamer{Username: name, ChannelID: "id-" + name, Settings: types.DefaultSettings()}
}

func streamerWith(name string, mutate func(*types.Settings)) types.Streamer {
	s := streamer(name)
	mutate(&s.Settings)
	return s
}

// send applies ev on the control loop and runs everything it posted.
func (h *harness) send(ev types.PlatformEvent) {
	h.e.handle(ev)
	h.drain()
}

func (h *harness) up(name string) {
	h.send(types.PlatformEvent{Type: types.EventStreamUp, Streamer: name})
}

func (h *harness) down(name string) {
	h.send(types.PlatformEvent{Type: types.EventStreamDown, Streamer: name})
}

func (h *harness) tickAfter(d time.Duration) {
	h.clock.Advance(d)
	h.e.tick()
	h.drain()
}

func (h *harness) drain() {
	for {
		select {
		case fn := <-h.e.inbox:
			fn()
		default:
			return
		}
	}
}

// runJobs waits for every in-flight platform call, advancing the fake clock
// by step whenever something waits on it, and runs what the calls posted.
func (h *harness) runJobs(step time.Duration) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.drain()
		if h.jobs.running.Load() == 0 && len(h.e.inbox) == 0 {
			return
		}
		require.True(h.t, time.Now().Before(deadline), "platform calls did not finish")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		if h.clock.BlockUntilContext(ctx, 1) == nil {
			h.clock.Advance(step)
		}
		cancel()
	}
}

// settle waits for in-flight platform calls without moving the clock.
func (h *harness) settle() {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.drain()
		if h.jobs.running.Load() == 0 && len(h.e.inbox) == 0 {
			return
		}
		require.True(h.t, time.Now().Before(deadline), "platform calls did not finish")
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) state(name string) *types.StreamState {
	st, ok := h.e.store.get(name)
	require.True(h.t, ok, name)
	return st
}

func (h *harness) watched() []string {
	var out []string
	for _, st := range h.e.store.withStatus(types.StatusWatched) {
		out = append(out, st.Streamer.Username)
	}
	return out
}
