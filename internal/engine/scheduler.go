package engine

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"points-miner/internal/metrics"
	"points-miner/internal/notify"
	"points-miner/internal/priority"
	"points-miner/internal/types"
)

// tick accrues watch time, completes streaks, sends heartbeats and reconciles
// the watch set.
func (e *Engine) tick() {
	now := e.clock.Now()
	for _, st := range e.store.withStatus(types.StatusWatched) {
		e.accrue(st, now)
		e.checkStreak(st)
		e.heartbeat(st)
	}
	e.reconcile()
}

// accrue adds the time watched since the last accrual of the current session.
func (e *Engine) accrue(st *types.StreamState, now time.Time) {
	s, ok := e.sessions[key(st.Streamer.Username)]
	if !ok || st.Status != types.StatusWatched {
		return
	}
	if d := now.Sub(s.accruedAt); d > 0 {
		st.WatchAccumulated += d
	}
	s.accruedAt = now
}

func (e *Engine) checkStreak(st *types.StreamState) {
	if !st.Streamer.Settings.WatchStreak || st.StreakDone {
		return
	}
	if st.WatchAccumulated < st.StreakThreshold() {
		return
	}
	st.StreakDone = true
	e.dirty = true
	e.logger.Info("Watch streak completed",
		zap.String("streamer", st.Streamer.Username),
		zap.Duration("watched", st.WatchAccumulated))
	e.notify(notify.WatchStreak{Header: e.header(st), Minutes: int(st.WatchAccumulated / time.Minute)})
}

// rank returns the cached order, re-ranking only after a meaningful change.
func (e *Engine) rank() []types.Streamer {
	if e.dirty || e.order == nil {
		e.order = priority.Rank(e.store.snapshot(), e.opts.Priority)
		e.dirty = false
	}
	return e.order
}

// reconcile moves the watch set toward the top WatchLimit entries of the
// order. Slots are freed before they are filled, so the limit holds at every
// step. A watched streamer is only evicted once it has been watched for
// MinDwell, unless it has nothing left to gain.
func (e *Engine) reconcile() {
	order := e.rank()
	limit := e.opts.WatchLimit
	now := e.clock.Now()

	desired := make(map[string]bool, limit)
	var candidates []*types.StreamState
	for _, s := range order[:min(limit, len(order))] {
		st, ok := e.store.get(s.Username)
		if !ok || !st.Online {
			continue
		}
		desired[key(s.Username)] = true
		if st.Status != types.StatusWatched {
			candidates = append(candidates, st)
		}
	}

	watched := e.store.withStatus(types.StatusWatched)
	var victims []*types.StreamState
	for _, st := range watched {
		if !desired[key(st.Streamer.Username)] {
			victims = append(victims, st)
		}
	}
	// Lowest priority first.
	position := make(map[string]int, len(order))
	for i, s := range order {
		position[key(s.Username)] = i
	}
	slices.SortStableFunc(victims, func(a, b *types.StreamState) int {
		return position[key(b.Streamer.Username)] - position[key(a.Streamer.Username)]
	})

	free := limit - len(watched)
	for _, c := range candidates {
		if free <= 0 {
			idx := slices.IndexFunc(victims, func(v *types.StreamState) bool { return e.evictable(v, now) })
			if idx < 0 {
				break
			}
			victim := victims[idx]
			victims = slices.Delete(victims, idx, idx+1)
			e.logger.Info("Preempting watched streamer",
				zap.String("streamer", victim.Streamer.Username),
				zap.String("by", c.Streamer.Username))
			metrics.Preemptions.Inc()
			e.unwatch(victim, now)
			free++
		}
		e.watch(c, now)
		free--
	}

	e.updateGauges()
}

func (e *Engine) evictable(st *types.StreamState, now time.Time) bool {
	if st.GoalsComplete() {
		return true
	}
	return now.Sub(st.WatchedSince) >= e.opts.MinDwell
}

func (e *Engine) watch(st *types.StreamState, now time.Time) {
	ctx, cancel := context.WithCancel(e.ctx)
	e.nextID++
	e.sessions[key(st.Streamer.Username)] = &session{
		id:        e.nextID,
		ctx:       ctx,
		cancel:    cancel,
		accruedAt: now,
	}
	st.Status = types.StatusWatched
	st.WatchedSince = now
	e.logger.Info("Watching streamer",
		zap.String("streamer", st.Streamer.Username),
		zap.Duration("watched", st.WatchAccumulated))
}

// unwatch ends the watch session. Accumulated watch time is kept.
func (e *Engine) unwatch(st *types.StreamState, now time.Time) {
	k := key(st.Streamer.Username)
	if s, ok := e.sessions[k]; ok {
		e.accrue(st, now)
		s.cancel()
		delete(e.sessions, k)
	}
	if st.Online {
		st.Status = types.StatusOnlineUnwatched
	} else {
		st.Status = types.StatusOffline
	}
	st.WatchedSince = time.Time{}
	e.logger.Info("Stopped watching streamer", zap.String("streamer", st.Streamer.Username))
}

func (e *Engine) goOnline(st *types.StreamState, payload *types.StreamPayload) {
	if st.Online {
		return
	}
	now := e.clock.Now()

	// A broadcast that resumes within StreakResetAfter of going offline keeps its streak.
	off := st.LastSeenOffline
	if !off.IsZero() && !off.Before(st.LastSeenOnline) && now.Sub(off) >= e.opts.StreakResetAfter {
		st.WatchAccumulated = 0
		st.StreakDone = false
	}
	e.markOnline(st, payload, now)
}

// resume reverts a speculative offline. The broadcast never ended, so streak
// progress is kept however long the gap was.
func (e *Engine) resume(st *types.StreamState) {
	if st.Online {
		return
	}
	e.logger.Info("Live event for speculatively offline streamer",
		zap.String("streamer", st.Streamer.Username))
	e.markOnline(st, nil, e.clock.Now())
}

func (e *Engine) markOnline(st *types.StreamState, payload *types.StreamPayload, now time.Time) {
	st.Online = true
	st.SpeculativeOffline = false
	st.Status = types.StatusOnlineUnwatched
	st.LastSeenOnline = now
	e.dirty = true

	ev := notify.StreamerOnline{Header: e.header(st)}
	if payload != nil {
		for _, c := range payload.Campaigns {
			st.DropsRemaining[c] = struct{}{}
		}
		ev.Title, ev.Game = payload.Title, payload.Game
	}

	e.logger.Info("Streamer online",
		zap.String("streamer", st.Streamer.Username),
		zap.Int("drops", len(st.DropsRemaining)))
	e.notify(ev)
	e.syncChat(st)
}

// goOffline moves st to OFFLINE. speculative marks a transition decided by the
// engine after heartbeats kept failing; the next platform event corrects it.
func (e *Engine) goOffline(st *types.StreamState, speculative bool) {
	if !st.Online {
		if !speculative {
			// The platform confirmed what the engine guessed.
			st.SpeculativeOffline = false
		}
		return
	}
	now := e.clock.Now()
	if st.Status == types.StatusWatched {
		e.unwatch(st, now)
	}
	st.Online = false
	st.SpeculativeOffline = speculative
	st.Status = types.StatusOffline
	st.LastSeenOffline = now
	if w := st.ActivePrediction; w != nil {
		e.cancelBet(w.ID)
		st.ActivePrediction = nil
	}
	e.dirty = true

	e.logger.Info("Streamer offline",
		zap.String("streamer", st.Streamer.Username),
		zap.Bool("speculative", speculative))
	e.notify(notify.StreamerOffline{Header: e.header(st), Speculative: speculative})
	e.syncChat(st)
}

func (e *Engine) updateGauges() {
	metrics.WatchedStreamers.Set(float64(len(e.sessions)))
	online := 0
	for _, st := range e.store.all() {
		if st.Online {
			online++
		}
	}
	metrics.OnlineStreamers.Set(float64(online))
}
