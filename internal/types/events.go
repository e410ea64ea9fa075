package types

import "time"

// PlatformEvent is one message from the platform client feed. Exactly one of
// the payload pointers is set, matching Type.
type PlatformEvent struct {
	Type      string    `json:"event_type"`
	Streamer  string    `json:"streamer"`
	Timestamp time.Time `json:"timestamp"`

	Stream     *StreamPayload     `json:"stream,omitempty"`
	Prediction *PredictionPayload `json:"prediction,omitempty"`
	Drop       *DropPayload       `json:"drop,omitempty"`
	Points     *PointsPayload     `json:"points,omitempty"`
	Raid       *RaidPayload       `json:"raid,omitempty"`
	Moment     *MomentPayload     `json:"moment,omitempty"`
	Mention    *MentionPayload    `json:"mention,omitempty"`
}

const (
	EventStreamUp           = "STREAM_UP"
	EventStreamDown         = "STREAM_DOWN"
	EventPredictionCreated  = "PREDICTION_CREATED"
	EventPredictionUpdated  = "PREDICTION_UPDATED"
	EventPredictionResolved = "PREDICTION_RESOLVED"
	EventDropProgress       = "DROP_PROGRESS"
	EventPointsUpdated      = "POINTS_UPDATED"
	EventRaid               = "RAID"
	EventMomentAvailable    = "MOMENT_AVAILABLE"
	EventChatMention        = "CHAT_MENTION"
)

type StreamPayload struct {
	Title     string   `json:"title,omitempty"`
	Game      string   `json:"game,omitempty"`
	Viewers   int      `json:"viewers,omitempty"`
	Campaigns []string `json:"campaigns,omitempty"`
}

type PredictionPayload struct {
	Window PredictionWindow `json:"window"`
	// Resolution fields, PREDICTION_RESOLVED only.
	WinningOutcomeID string `json:"winning_outcome_id,omitempty"`
	Refunded         bool   `json:"refunded,omitempty"`
	PointsWon        int    `json:"points_won,omitempty"`
}

type DropPayload struct {
	CampaignID      string `json:"campaign_id"`
	DropID          string `json:"drop_id"`
	Name            string `json:"name"`
	CurrentMinutes  int    `json:"current_minutes"`
	RequiredMinutes int    `json:"required_minutes"`
	Claimable       bool   `json:"claimable"`
	Claimed         bool   `json:"claimed"`

	// CampaignComplete is set on the claim that finishes the campaign.
	CampaignComplete bool `json:"campaign_complete,omitempty"`
}

// InventoryDrop is a drop already waiting to be claimed when the miner starts.
type InventoryDrop struct {
	Streamer string `json:"streamer"`
	DropPayload
}

type PointsPayload struct {
	Balance int    `json:"balance"`
	Gained  int    `json:"gained,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type RaidPayload struct {
	RaidID string `json:"raid_id"`
	Target string `json:"target"`
}

type MomentPayload struct {
	MomentID string `json:"moment_id"`
}

type MentionPayload struct {
	Author  string `json:"author"`
	Message string `json:"message"`
}
