package engine

import (
	"slices"

	"go.uber.org/zap"

	"points-miner/internal/metrics"
	"points-miner/internal/notify"
	"points-miner/internal/types"
)

// liveEvents only happen while a broadcast is running.
var liveEvents = []string{
	types.EventPredictionCreated,
	types.EventPredictionUpdated,
	types.EventDropProgress,
	types.EventPointsUpdated,
	types.EventMomentAvailable,
}

var knownEvents = []string{
	types.EventStreamUp,
	types.EventStreamDown,
	types.EventPredictionCreated,
	types.EventPredictionUpdated,
	types.EventPredictionResolved,
	types.EventDropProgress,
	types.EventPointsUpdated,
	types.EventRaid,
	types.EventMomentAvailable,
	types.EventChatMention,
}

// handle applies one platform event. It runs on the control loop.
func (e *Engine) handle(ev types.PlatformEvent) {
	label := ev.Type
	if !slices.Contains(knownEvents, label) {
		label = "unknown"
	}
	metrics.PlatformEvents.WithLabelValues(label).Inc()

	st, ok := e.store.get(ev.Streamer)
	if !ok {
		e.logger.Debug("Ignoring event for untracked streamer",
			zap.String("type", ev.Type),
			zap.String("streamer", ev.Streamer))
		return
	}

	resumed := st.SpeculativeOffline && slices.Contains(liveEvents, ev.Type)
	if resumed {
		e.resume(st)
	}

	switch ev.Type {
	case types.EventStreamUp:
		e.goOnline(st, ev.Stream)
		e.reconcile()
	case types.EventStreamDown:
		e.goOffline(st, false)
		e.reconcile()
	case types.EventPredictionCreated:
		if ev.Prediction != nil {
			e.predictionCreated(st, ev.Prediction.Window)
		}
	case types.EventPredictionUpdated:
		if ev.Prediction != nil {
			e.predictionUpdated(st, ev.Prediction.Window)
		}
	case types.EventPredictionResolved:
		if ev.Prediction != nil {
			e.predictionResolved(st, *ev.Prediction)
		}
	case types.EventDropProgress:
		if ev.Drop != nil {
			e.dropProgress(st, *ev.Drop)
		}
	case types.EventPointsUpdated:
		if ev.Points != nil {
			e.pointsUpdated(st, *ev.Points)
		}
	case types.EventRaid:
		if ev.Raid != nil && st.Streamer.Settings.FollowRaid {
			e.joinRaid(st, *ev.Raid)
		}
	case types.EventMomentAvailable:
		if ev.Moment != nil && st.Streamer.Settings.ClaimMoments {
			e.claimMoment(st, *ev.Moment)
		}
	case types.EventChatMention:
		if ev.Mention != nil {
			e.notify(notify.ChatMention{Header: e.header(st), Author: ev.Mention.Author, Message: ev.Mention.Message})
		}
	default:
		e.logger.Warn("Unknown platform event type",
			zap.String("type", ev.Type),
			zap.String("streamer", ev.Streamer))
	}

	if resumed {
		e.reconcile()
	}
}

func (e *Engine) dropProgress(st *types.StreamState, d types.DropPayload) {
	_, tracked := st.DropsRemaining[d.CampaignID]
	if d.Claimed {
		e.finishCampaign(st, d)
		return
	}
	if !tracked && d.CampaignID != "" {
		st.DropsRemaining[d.CampaignID] = struct{}{}
		e.dirty = true
	}

	e.notify(notify.DropStatus{
		Header:   e.header(st),
		DropID:   d.DropID,
		Name:     d.Name,
		Current:  d.CurrentMinutes,
		Required: d.RequiredMinutes,
	})

	if d.Claimable && st.Streamer.Settings.ClaimDrops {
		e.claimDrop(st.Streamer, d)
	}
}

func (e *Engine) pointsUpdated(st *types.StreamState, p types.PointsPayload) {
	if st.Points == p.Balance {
		return
	}
	st.Points = p.Balance
	for _, m := range e.opts.Priority {
		if m.Kind == types.PriorityOrder && m.By == types.OrderByPoints {
			e.dirty = true
		}
	}
}
