package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"points-miner/internal/metrics"
	"points-miner/internal/notify"
	"points-miner/internal/retry"
	"points-miner/internal/types"
	"points-miner/internal/worker"
)

// classify maps platform errors onto retry actions. Errors may opt out of
// retries with Permanent() or ask for a longer backoff with RateLimited().
func classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	var p interface{ Permanent() bool }
	if errors.As(err, &p) && p.Permanent() {
		return retry.Stop
	}
	var r interface{ RateLimited() bool }
	if errors.As(err, &r) && r.RateLimited() {
		return retry.After
	}
	return retry.Retry
}

// call runs fn with a per-attempt timeout under the engine's retry policy.
func call[T any](e *Engine, ctx context.Context, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy := e.retryPolicy()
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		e.logger.Debug("Retrying platform call",
			zap.String("call", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
	}
	return retry.Do(ctx, policy, classify, func(ctx context.Context) (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout())
		defer cancel()
		return fn(callCtx)
	})
}

func callVoid(e *Engine, ctx context.Context, name string, fn func(ctx context.Context) error) error {
	_, err := call(e, ctx, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (e *Engine) enqueue(name string, fn func(ctx context.Context) error) error {
	err := e.jobs.Enqueue(worker.Func(name, fn))
	if err != nil {
		e.logger.Warn("Failed to enqueue platform call", zap.String("call", name), zap.Error(err))
	}
	return err
}

// heartbeat sends one watch heartbeat for the current session, unless the
// previous one is still retrying.
func (e *Engine) heartbeat(st *types.StreamState) {
	s, ok := e.sessions[key(st.Streamer.Username)]
	if !ok || s.beating {
		return
	}
	s.beating = true
	streamer := st.Streamer
	sessCtx, id := s.ctx, s.id

	err := e.enqueue("heartbeat", func(context.Context) error {
		err := callVoid(e, sessCtx, "heartbeat", func(ctx context.Context) error {
			return e.platform.SendWatchHeartbeat(ctx, streamer)
		})
		e.post(func() { e.heartbeatDone(streamer.Username, id, err) })
		return err
	})
	if err != nil {
		s.beating = false
	}
}

func (e *Engine) heartbeatDone(username string, id uint64, err error) {
	st, ok := e.store.get(username)
	if !ok {
		return
	}
	s, current := e.sessions[key(username)]
	current = current && s.id == id
	if current {
		s.beating = false
	}

	switch {
	case err == nil:
		metrics.Heartbeats.WithLabelValues(metrics.ResultOK).Inc()
	case !current || errors.Is(err, context.Canceled):
		// Session ended while the call was in flight.
	default:
		metrics.Heartbeats.WithLabelValues(metrics.ResultGaveUp).Inc()
		e.logger.Warn("Watch heartbeat failed, marking streamer offline",
			zap.String("streamer", username),
			zap.Error(err))
		e.goOffline(st, true)
		e.reconcile()
	}
}

// syncChat joins or leaves chat so that it matches the streamer's chat presence setting.
func (e *Engine) syncChat(st *types.StreamState) {
	k := key(st.Streamer.Username)
	want := st.Streamer.Settings.Chat.Joined(st.Online)
	if e.chat[k] == want {
		return
	}
	e.chat[k] = want
	streamer := st.Streamer

	_ = e.enqueue("chat", func(ctx context.Context) error {
		err := callVoid(e, ctx, "chat", func(ctx context.Context) error {
			return e.platform.SetChatPresence(ctx, streamer, want)
		})
		if err != nil {
			e.logger.Warn("Failed to update chat presence",
				zap.String("streamer", streamer.Username),
				zap.Bool("joined", want),
				zap.Error(err))
		}
		return err
	})
}

func (e *Engine) claimDrop(streamer types.Streamer, d types.DropPayload) {
	if e.claiming[d.DropID] {
		return
	}
	e.claiming[d.DropID] = true

	err := e.enqueue("claim drop", func(ctx context.Context) error {
		err := callVoid(e, ctx, "claim drop", func(ctx context.Context) error {
			return e.platform.ClaimDrop(ctx, streamer, d.DropID)
		})
		e.post(func() { e.dropClaimed(streamer.Username, d, err) })
		return err
	})
	if err != nil {
		delete(e.claiming, d.DropID)
	}
}

// dropClaimed records a finished claim. The campaign keeps its DROPS priority
// until the platform reports it complete.
func (e *Engine) dropClaimed(username string, d types.DropPayload, err error) {
	delete(e.claiming, d.DropID)
	if err != nil {
		e.logger.Warn("Failed to claim drop",
			zap.String("streamer", username),
			zap.String("drop", d.Name),
			zap.Error(err))
		return
	}

	h := notify.NewHeader(username, e.clock.Now())
	if st, ok := e.store.get(username); ok {
		h = e.header(st)
		e.finishCampaign(st, d)
	}
	e.logger.Info("Claimed drop", zap.String("streamer", username), zap.String("drop", d.Name))
	e.notify(notify.DropClaim{Header: h, DropID: d.DropID, Name: d.Name})
}

func (e *Engine) finishCampaign(st *types.StreamState, d types.DropPayload) {
	if !d.CampaignComplete {
		return
	}
	if _, ok := st.DropsRemaining[d.CampaignID]; ok {
		delete(st.DropsRemaining, d.CampaignID)
		e.dirty = true
	}
}

func (e *Engine) joinRaid(st *types.StreamState, r types.RaidPayload) {
	streamer := st.Streamer
	_ = e.enqueue("join raid", func(ctx context.Context) error {
		err := callVoid(e, ctx, "join raid", func(ctx context.Context) error {
			return e.platform.JoinRaid(ctx, streamer, r.RaidID)
		})
		e.post(func() {
			if err != nil {
				e.logger.Warn("Failed to join raid", zap.String("streamer", streamer.Username), zap.Error(err))
				return
			}
			e.logger.Info("Joined raid", zap.String("streamer", streamer.Username), zap.String("target", r.Target))
			e.notify(notify.JoinRaid{Header: notify.NewHeader(streamer.Username, e.clock.Now()), Target: r.Target})
		})
		return err
	})
}

func (e *Engine) claimMoment(st *types.StreamState, m types.MomentPayload) {
	streamer := st.Streamer
	_ = e.enqueue("claim moment", func(ctx context.Context) error {
		err := callVoid(e, ctx, "claim moment", func(ctx context.Context) error {
			return e.platform.ClaimMoment(ctx, streamer, m.MomentID)
		})
		e.post(func() {
			if err != nil {
				e.logger.Warn("Failed to claim moment", zap.String("streamer", streamer.Username), zap.Error(err))
				return
			}
			e.logger.Info("Claimed moment", zap.String("streamer", streamer.Username), zap.String("moment", m.MomentID))
			e.notify(notify.MomentClaim{Header: notify.NewHeader(streamer.Username, e.clock.Now()), MomentID: m.MomentID})
		})
		return err
	})
}
