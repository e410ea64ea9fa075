package engine

import (
	"context"

	"points-miner/internal/notify"
	"points-miner/internal/types"
	"points-miner/internal/worker"
)

// Platform is the outbound side of the streaming-platform client.
type Platform interface {
	SendWatchHeartbeat(ctx context.Context, streamer types.Streamer) error
	PlaceBet(ctx context.Context, window types.PredictionWindow, outcome types.Outcome, amount int) (types.BetReceipt, error)
	ClaimDrop(ctx context.Context, streamer types.Streamer, dropID string) error
	JoinRaid(ctx context.Context, streamer types.Streamer, raidID string) error
	ClaimMoment(ctx context.Context, streamer types.Streamer, momentID string) error
	SetChatPresence(ctx context.Context, streamer types.Streamer, joined bool) error
	Followers(ctx context.Context) ([]types.Follower, error)
	ClaimableDrops(ctx context.Context) ([]types.InventoryDrop, error)
}

// Notifier receives domain events. Dispatch must not block.
type Notifier interface {
	Dispatch(ev notify.Event)
}

// Enqueuer runs outbound jobs off the control loop. *worker.Pool satisfies it.
type Enqueuer interface {
	Enqueue(job worker.Job) error
}
