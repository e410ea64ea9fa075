package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"points-miner/internal/betting"
	"points-miner/internal/metrics"
	"points-miner/internal/notify"
	"points-miner/internal/types"
)

func (e *Engine) predictionCreated(st *types.StreamState, w types.PredictionWindow) {
	if _, closed := e.closed.Get(w.ID); closed {
		return
	}
	if !st.Online || !st.Streamer.Settings.MakePredictions {
		return
	}
	if cur := st.ActivePrediction; cur != nil {
		if cur.ID == w.ID {
			e.predictionUpdated(st, w)
			return
		}
		e.cancelBet(cur.ID)
	}

	w = w.Clone()
	w.Streamer = st.Streamer.Username
	w.Placed = nil
	w.Recalculate()
	st.ActivePrediction = &w

	now := e.clock.Now()
	at, err := e.bettors[key(st.Streamer.Username)].PlaceAt(w, now)
	if err != nil {
		e.skipBet(st, w, err)
		return
	}

	username, id := st.Streamer.Username, w.ID
	e.pending[id] = &pendingBet{
		timer: e.clock.AfterFunc(at.Sub(now), func() {
			e.post(func() { e.betDue(username, id) })
		}),
	}

	e.logger.Info("Prediction opened",
		zap.String("streamer", username),
		zap.String("window", id),
		zap.String("title", w.Title),
		zap.Time("place_at", at))
	e.notify(notify.BetStart{Header: e.header(st), WindowID: id, Title: w.Title, PlaceAt: at})
}

func (e *Engine) predictionUpdated(st *types.StreamState, w types.PredictionWindow) {
	if _, closed := e.closed.Get(w.ID); closed {
		return
	}
	cur := st.ActivePrediction
	if cur == nil || cur.ID != w.ID {
		// Joined mid-window, e.g. after a restart.
		e.predictionCreated(st, w)
		return
	}

	cur.Outcomes = append(cur.Outcomes[:0:0], w.Outcomes...)
	if w.Title != "" {
		cur.Title = w.Title
	}
	if !w.ClosesAt.IsZero() {
		cur.ClosesAt = w.ClosesAt
	}
	cur.Locked = cur.Locked || w.Locked
	cur.Recalculate()

	if cur.Locked && e.cancelBet(cur.ID) {
		e.skipBet(st, *cur, betting.ErrPlacementTooLate)
	}
}

func (e *Engine) predictionResolved(st *types.StreamState, p types.PredictionPayload) {
	id := p.Window.ID
	e.closed.Add(id, p)

	cur := st.ActivePrediction
	if cur == nil || cur.ID != id {
		return
	}
	st.ActivePrediction = nil
	if e.cancelBet(id) {
		e.skipBet(st, *cur, betting.ErrPlacementTooLate)
		return
	}
	if cur.Placed == nil {
		return
	}

	e.reportOutcome(st, *cur, *cur.Placed, p)
}

// reportOutcome announces how a placed bet ended.
func (e *Engine) reportOutcome(st *types.StreamState, w types.PredictionWindow, receipt types.BetReceipt, p types.PredictionPayload) {
	outcome, _, _ := w.Outcome(receipt.OutcomeID)
	h := e.header(st)
	switch {
	case p.Refunded:
		e.notify(notify.BetRefund{Header: h, WindowID: w.ID, Title: w.Title, Amount: receipt.Amount})
	case p.WinningOutcomeID == receipt.OutcomeID:
		e.notify(notify.BetWin{Header: h, WindowID: w.ID, Title: w.Title, Outcome: outcome.Title, Amount: receipt.Amount, Won: p.PointsWon})
	default:
		e.notify(notify.BetLose{Header: h, WindowID: w.ID, Title: w.Title, Outcome: outcome.Title, Amount: receipt.Amount})
	}
	e.logger.Info("Prediction resolved",
		zap.String("streamer", st.Streamer.Username),
		zap.String("window", w.ID),
		zap.String("winner", p.WinningOutcomeID),
		zap.Bool("refunded", p.Refunded))
}

// betDue re-decides on the freshest snapshot of the window and places the bet.
func (e *Engine) betDue(username, windowID string) {
	if _, ok := e.pending[windowID]; !ok {
		// Cancelled after the timer fired.
		return
	}
	delete(e.pending, windowID)
	st, ok := e.store.get(username)
	if !ok {
		return
	}
	cur := st.ActivePrediction
	if cur == nil || cur.ID != windowID || cur.Placed != nil {
		return
	}

	snapshot := cur.Clone()
	bettor := e.bettors[key(username)]
	d := bettor.Decide(snapshot, st.Points, e.clock.Now())
	if !d.Place {
		e.skipBet(st, snapshot, d.Reason)
		return
	}

	outcome := snapshot.Outcomes[d.OutcomeIndex]
	e.logger.Info("Placing bet",
		zap.String("streamer", username),
		zap.String("window", windowID),
		zap.String("outcome", outcome.Title),
		zap.Int("amount", d.Amount),
		zap.String("strategy", string(bettor.Strategy().Name())))

	err := e.enqueue("place bet", func(ctx context.Context) error {
		receipt, err := call(e, ctx, "place bet", func(ctx context.Context) (types.BetReceipt, error) {
			return e.platform.PlaceBet(ctx, snapshot, outcome, d.Amount)
		})
		e.post(func() { e.betPlaced(username, snapshot, outcome, d.Amount, receipt, err) })
		return err
	})
	if err != nil {
		e.betPlaced(username, snapshot, outcome, d.Amount, types.BetReceipt{}, err)
	}
}

func (e *Engine) betPlaced(username string, w types.PredictionWindow, outcome types.Outcome, amount int, receipt types.BetReceipt, err error) {
	st, ok := e.store.get(username)
	if !ok {
		return
	}
	if err != nil {
		metrics.Bets.WithLabelValues(metrics.ResultError).Inc()
		e.logger.Warn("Failed to place bet",
			zap.String("streamer", username),
			zap.String("window", w.ID),
			zap.Error(err))
		e.notify(notify.BetFailed{Header: e.header(st), WindowID: w.ID, Title: w.Title, Error: err.Error()})
		return
	}

	if receipt.WindowID == "" {
		receipt.WindowID = w.ID
	}
	if receipt.OutcomeID == "" {
		receipt.OutcomeID = outcome.ID
	}
	if receipt.Amount == 0 {
		receipt.Amount = amount
	}
	if receipt.PlacedAt.IsZero() {
		receipt.PlacedAt = e.clock.Now()
	}
	resolution, resolved := e.closed.Get(w.ID)
	if cur := st.ActivePrediction; cur != nil && cur.ID == w.ID {
		cur.Placed = &receipt
		resolved = false
	}
	st.Points = max(st.Points-receipt.Amount, 0)

	metrics.Bets.WithLabelValues(metrics.ResultOK).Inc()
	e.notify(notify.BetPlaced{
		Header:   e.header(st),
		WindowID: w.ID,
		Title:    w.Title,
		Outcome:  outcome.Title,
		Amount:   receipt.Amount,
		Strategy: e.bettors[key(username)].Strategy().Name(),
	})

	// The window resolved while the placement was in flight.
	if resolved {
		e.reportOutcome(st, w, receipt, resolution)
	}
}

func (e *Engine) skipBet(st *types.StreamState, w types.PredictionWindow, reason error) {
	metrics.Bets.WithLabelValues(metrics.ResultSkipped).Inc()
	e.logger.Info("Skipping prediction",
		zap.String("streamer", st.Streamer.Username),
		zap.String("window", w.ID),
		zap.Error(reason))

	h := e.header(st)
	f := st.Streamer.Settings.Bet.Filter
	if errors.Is(reason, betting.ErrFilterRejected) && f != nil {
		e.notify(notify.BetFilters{Header: h, WindowID: w.ID, Title: w.Title, Filter: *f})
		return
	}
	e.notify(notify.BetGeneral{Header: h, WindowID: w.ID, Title: w.Title, Reason: reason.Error()})
}

// cancelBet stops a scheduled placement and reports whether one was pending.
func (e *Engine) cancelBet(windowID string) bool {
	p, ok := e.pending[windowID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(e.pending, windowID)
	return true
}
