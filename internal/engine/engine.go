// Package engine runs the control loop that owns every streamer's state,
// picks which streams to watch and reacts to predictions, drops, raids and
// moments.
package engine

import (
	"context"
	"errors"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"points-miner/internal/betting"
	"points-miner/internal/metrics"
	"points-miner/internal/notify"
	"points-miner/internal/retry"
	"points-miner/internal/types"
)

var ErrStopped = errors.New("engine stopped")

type Options struct {
	TickInterval     time.Duration
	WatchLimit       int
	MinDwell         time.Duration
	StreakMinutes    int
	StreakResetAfter time.Duration
	Priority         []types.PriorityMode

	// Followers appends followed channels missing from the configured list at startup.
	Followers         bool
	FollowersOrder    types.Direction
	FollowersSettings types.Settings

	// ClaimDropsStartup claims every drop already in the inventory when Run starts.
	ClaimDropsStartup bool

	Retry       retry.Policy
	CallTimeout time.Duration
	InboxSize   int
}

// session is one WATCHED period of a streamer. Cancelling ctx aborts its
// in-flight heartbeats.
type session struct {
	id        uint64
	ctx       context.Context
	cancel    context.CancelFunc
	accruedAt time.Time
	beating   bool
}

type pendingBet struct {
	timer clockwork.Timer
}

type Engine struct {
	logger   *zap.Logger
	clock    clockwork.Clock
	platform Platform
	notifier Notifier
	jobs     Enqueuer
	opts     Options

	inbox chan func()
	done  chan struct{}
	ctx   context.Context

	// Owned by the control loop.
	store     *store
	bettors   map[string]*betting.Bettor
	sessions  map[string]*session
	nextID    uint64
	pending   map[string]*pendingBet
	closed    *lru.Cache[string, types.PredictionPayload]
	chat      map[string]bool
	claiming  map[string]bool
	order     []types.Streamer
	dirty     bool
	restoring []types.Progress
}

func New(logger *zap.Logger, clock clockwork.Clock, platform Platform, notifier Notifier, jobs Enqueuer, opts Options) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if opts.WatchLimit < 1 {
		opts.WatchLimit = 1
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	closed, _ := lru.New[string, types.PredictionPayload](512)

	return &Engine{
		logger:   logger,
		clock:    clock,
		platform: platform,
		notifier: notifier,
		jobs:     jobs,
		opts:     opts,
		inbox:    make(chan func(), opts.InboxSize),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		store:    newStore(),
		bettors:  make(map[string]*betting.Bettor),
		sessions: make(map[string]*session),
		pending:  make(map[string]*pendingBet),
		closed:   closed,
		chat:     make(map[string]bool),
		claiming: make(map[string]bool),
		dirty:    true,
	}
}

// Register adds a streamer before Run. Duplicate usernames are ignored.
func (e *Engine) Register(s types.Streamer) bool {
	s.Index = e.store.len()
	st := types.NewStreamState(s, e.opts.StreakMinutes)
	if !e.store.add(st) {
		e.logger.Warn("Streamer already registered", zap.String("streamer", s.Username))
		return false
	}
	e.bettors[key(s.Username)] = betting.NewBettor(s.Settings.Bet)
	return true
}

// Restore queues persisted progress to apply at the start of Run, after
// followers expansion.
func (e *Engine) Restore(progress []types.Progress) {
	e.restoring = append(e.restoring, progress...)
}

// Run drives ticks and processes every submitted event until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer close(e.done)

	if e.opts.Followers {
		e.expandFollowers(ctx)
	}
	for _, p := range e.restoring {
		if st, ok := e.store.get(p.Username); ok {
			st.Restore(p)
		}
	}
	e.restoring = nil
	for _, st := range e.store.all() {
		e.syncChat(st)
	}
	if e.opts.ClaimDropsStartup {
		e.claimInventory(ctx)
	}

	e.logger.Info("Engine started",
		zap.Int("streamers", e.store.len()),
		zap.Int("watch_limit", e.opts.WatchLimit),
		zap.Duration("tick_interval", e.opts.TickInterval))

	ticker := e.clock.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case <-ticker.Chan():
			e.tick()
		case fn := <-e.inbox:
			fn()
		}
	}
}

// Submit hands a platform event to the control loop. It blocks while the
// inbox is full, which applies back-pressure to the feed.
func (e *Engine) Submit(ctx context.Context, ev types.PlatformEvent) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.inbox <- func() { e.handle(ev) }:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post runs fn on the control loop. It is used by timers and worker jobs and
// gives up once the loop has exited.
func (e *Engine) post(fn func()) {
	select {
	case e.inbox <- fn:
	case <-e.done:
	}
}

// Snapshot returns the persisted view of every streamer, taken on the control loop.
func (e *Engine) Snapshot(ctx context.Context) ([]types.Progress, error) {
	reply := make(chan []types.Progress, 1)
	fn := func() {
		now := e.clock.Now()
		states := e.store.all()
		out := make([]types.Progress, 0, len(states))
		for _, st := range states {
			e.accrue(st, now)
			out = append(out, st.Progress(now))
		}
		reply <- out
	}
	select {
	case e.inbox <- fn:
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// States returns copies of every streamer's state, taken on the control loop.
func (e *Engine) States(ctx context.Context) ([]types.StreamState, error) {
	reply := make(chan []types.StreamState, 1)
	select {
	case e.inbox <- func() { reply <- e.store.snapshot() }:
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) expandFollowers(ctx context.Context) {
	followers, err := call(e, ctx, "followers", e.platform.Followers)
	if err != nil {
		e.logger.Error("Failed to load followers", zap.Error(err))
		return
	}

	slices.SortStableFunc(followers, func(a, b types.Follower) int {
		c := a.FollowedAt.Compare(b.FollowedAt)
		if e.opts.FollowersOrder == types.Descending {
			return -c
		}
		return c
	})

	added := 0
	for _, f := range followers {
		s := types.Streamer{
			Username:   f.Username,
			ChannelID:  f.ChannelID,
			FollowedAt: f.FollowedAt,
			Settings:   e.opts.FollowersSettings,
		}
		if _, ok := e.store.get(f.Username); ok {
			continue
		}
		if e.Register(s) {
			added++
		}
	}
	e.logger.Info("Loaded followed channels",
		zap.Int("followers", len(followers)),
		zap.Int("added", added))
}

// claimInventory claims the drops that were already claimable before the
// miner started, whatever the streamers' claim_drops setting.
func (e *Engine) claimInventory(ctx context.Context) {
	drops, err := call(e, ctx, "claimable drops", e.platform.ClaimableDrops)
	if err != nil {
		e.logger.Error("Failed to load claimable drops", zap.Error(err))
		return
	}
	for _, d := range drops {
		s := types.Streamer{Username: d.Streamer}
		if st, ok := e.store.get(d.Streamer); ok {
			s = st.Streamer
		}
		e.claimDrop(s, d.DropPayload)
	}
	e.logger.Info("Claiming inventory drops at startup", zap.Int("drops", len(drops)))
}

func (e *Engine) shutdown() {
	for _, p := range e.pending {
		p.timer.Stop()
	}
	e.pending = make(map[string]*pendingBet)
	for name, s := range e.sessions {
		s.cancel()
		delete(e.sessions, name)
	}
	metrics.WatchedStreamers.Set(0)
	e.logger.Info("Engine stopped")
}

func (e *Engine) notify(ev notify.Event) {
	if e.notifier != nil {
		e.notifier.Dispatch(ev)
	}
}

func (e *Engine) header(st *types.StreamState) notify.Header {
	return notify.NewHeader(st.Streamer.Username, e.clock.Now())
}

// retryPolicy is the configured policy running its backoff on the engine clock.
func (e *Engine) retryPolicy() retry.Policy {
	p := e.opts.Retry
	p.Clock = e.clock
	return p
}

func (e *Engine) callTimeout() time.Duration {
	if e.opts.CallTimeout > 0 {
		return e.opts.CallTimeout
	}
	return 10 * time.Second
}
