// Package betting decides whether, on what and how much to bet on a prediction window.
package betting

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"points-miner/internal/types"
)

var (
	ErrPlacementTooLate    = errors.New("window closed before decision")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrFilterRejected      = errors.New("filter condition not met")
	ErrStrategyDeclined    = errors.New("strategy declined")
	ErrNoOutcomes          = errors.New("prediction has fewer than two outcomes")
)

// LockMargin keeps scheduled placements strictly ahead of the window lock.
const LockMargin = time.Second

// Decision is the result of evaluating one window. Amount > 0 iff Place.
type Decision struct {
	Place        bool
	OutcomeIndex int
	Amount       int
	PlaceAt      time.Time
	Reason       error
}

func skip(reason error, at time.Time) Decision {
	return Decision{OutcomeIndex: -1, PlaceAt: at, Reason: reason}
}

// Bettor holds one streamer's bet settings with its strategy selected once.
type Bettor struct {
	settings types.BetSettings
	strategy Strategy

	// stealthOffset returns how far below the top bettor a stealth bet lands.
	stealthOffset func() int
}

func NewBettor(settings types.BetSettings) *Bettor {
	return &Bettor{
		settings:      settings,
		strategy:      NewStrategy(settings),
		stealthOffset: func() int { return rand.IntN(5) + 1 },
	}
}

func (b *Bettor) Settings() types.BetSettings { return b.settings }

func (b *Bettor) Strategy() Strategy { return b.strategy }

// Decide evaluates w as of now. Call it with the freshest snapshot available.
func (b *Bettor) Decide(w types.PredictionWindow, balance int, now time.Time) Decision {
	if w.Locked || !now.Before(w.ClosesAt) {
		return skip(ErrPlacementTooLate, now)
	}
	if len(w.Outcomes) < 2 {
		return skip(ErrNoOutcomes, now)
	}
	if balance <= 0 || balance < b.settings.MinimumPoints {
		return skip(ErrInsufficientBalance, now)
	}

	f := b.settings.Filter
	if f != nil && aggregate(f.By) && !passes(f, w, -1) {
		return skip(ErrFilterRejected, now)
	}

	idx, ok := b.strategy.Evaluate(w)
	if !ok {
		return skip(ErrStrategyDeclined, now)
	}

	if f != nil && !aggregate(f.By) && !passes(f, w, idx) {
		return skip(ErrFilterRejected, now)
	}

	amount := b.amount(w, idx, balance)
	if amount <= 0 {
		return skip(ErrInsufficientBalance, now)
	}

	return Decision{Place: true, OutcomeIndex: idx, Amount: amount, PlaceAt: now}
}

// amount is percentage of balance, scaled by the gap factor, capped by
// max_points and balance, then capped below the top bettor in stealth mode.
func (b *Bettor) amount(w types.PredictionWindow, idx, balance int) int {
	s := b.settings
	raw := decimal.NewFromInt(int64(balance)).
		Mul(decimal.NewFromInt(int64(s.Percentage))).
		Div(decimal.NewFromInt(100))
	if s.PercentageGap > 0 {
		raw = raw.Mul(gapFactor(w, idx, s.PercentageGap))
	}

	amount := int(raw.Floor().IntPart())
	amount = min(amount, s.MaxPoints, balance)

	if s.StealthMode {
		top := w.Outcomes[idx].TopPoints
		if top > 0 && top < amount {
			offset := min(b.stealthOffset(), top-1)
			amount = top - max(offset, 0)
		}
	}
	return amount
}

var (
	minGapFactor = decimal.NewFromFloat(0.5)
	maxGapFactor = decimal.NewFromFloat(1.5)
)

// gapFactor compares the implied-probability gap between the chosen outcome and
// its strongest rival against the configured gap: a wider market gap sizes the
// bet up, a narrower one sizes it down, within [0.5, 1.5].
func gapFactor(w types.PredictionWindow, idx, configured int) decimal.Decimal {
	chosen := w.Outcomes[idx].OddsPercentage
	rival := 0.0
	for i, o := range w.Outcomes {
		if i != idx && o.OddsPercentage > rival {
			rival = o.OddsPercentage
		}
	}
	gap := decimal.NewFromFloat(chosen - rival).Abs()
	factor := gap.Div(decimal.NewFromInt(int64(configured)))
	if factor.LessThan(minGapFactor) {
		return minGapFactor
	}
	if factor.GreaterThan(maxGapFactor) {
		return maxGapFactor
	}
	return factor
}

// PlaceAt computes when a bet on w should be placed. The instant is clamped to
// at least LockMargin before the window closes and never earlier than now.
func (b *Bettor) PlaceAt(w types.PredictionWindow, now time.Time) (time.Time, error) {
	var at time.Time
	switch b.settings.DelayMode {
	case types.DelayFromStart:
		at = w.OpensAt.Add(b.settings.DelayDuration())
	case types.DelayPercentage:
		length := w.ClosesAt.Sub(w.OpensAt)
		at = w.OpensAt.Add(time.Duration(float64(length) * b.settings.Delay))
	default:
		at = w.ClosesAt.Add(-b.settings.DelayDuration())
	}

	if latest := w.ClosesAt.Add(-LockMargin); at.After(latest) {
		at = latest
	}
	if at.Before(now) {
		at = now
	}
	if w.Locked || !at.Before(w.ClosesAt) {
		return now, ErrPlacementTooLate
	}
	return at, nil
}

// Decide is the one-shot form of Bettor.Decide.
func Decide(w types.PredictionWindow, settings types.BetSettings, balance int, now time.Time) Decision {
	return NewBettor(settings).Decide(w, balance, now)
}
