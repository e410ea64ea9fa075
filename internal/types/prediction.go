package types

import "time"

type Outcome struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Color       string `json:"color,omitempty"`
	TotalPoints int    `json:"total_points"`
	TotalUsers  int    `json:"total_users"`
	TopPoints   int    `json:"top_points"`

	// Derived by PredictionWindow.Recalculate.
	Odds            float64 `json:"odds"`
	OddsPercentage  float64 `json:"odds_percentage"`
	PercentageUsers float64 `json:"percentage_users"`
}

type PredictionWindow struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Streamer  string    `json:"streamer"`
	Title     string    `json:"title"`
	Outcomes  []Outcome `json:"outcomes"`
	OpensAt   time.Time `json:"opens_at"`
	ClosesAt  time.Time `json:"closes_at"`
	Locked    bool      `json:"locked"`

	// Set once a bet was accepted by the platform.
	Placed *BetReceipt `json:"placed,omitempty"`
}

func (w PredictionWindow) TotalUsers() int {
	n := 0
	for _, o := range w.Outcomes {
		n += o.TotalUsers
	}
	return n
}

func (w PredictionWindow) TotalPoints() int {
	n := 0
	for _, o := range w.Outcomes {
		n += o.TotalPoints
	}
	return n
}

// Recalculate refreshes the derived per-outcome metrics from raw points and users.
// Odds are the payout multiplier total/outcome; an outcome without points has zero odds.
func (w *PredictionWindow) Recalculate() {
	totalPoints := float64(w.TotalPoints())
	totalUsers := float64(w.TotalUsers())
	for i := range w.Outcomes {
		o := &w.Outcomes[i]
		o.Odds, o.OddsPercentage, o.PercentageUsers = 0, 0, 0
		if o.TotalPoints > 0 {
			o.Odds = totalPoints / float64(o.TotalPoints)
			o.OddsPercentage = 100 / o.Odds
		}
		if totalUsers > 0 {
			o.PercentageUsers = float64(o.TotalUsers) / totalUsers * 100
		}
	}
}

func (w PredictionWindow) Outcome(id string) (Outcome, int, bool) {
	for i, o := range w.Outcomes {
		if o.ID == id {
			return o, i, true
		}
	}
	return Outcome{}, -1, false
}

func (w PredictionWindow) Clone() PredictionWindow {
	c := w
	c.Outcomes = append([]Outcome(nil), w.Outcomes...)
	if w.Placed != nil {
		r := *w.Placed
		c.Placed = &r
	}
	return c
}
