package notify

import (
	"time"

	"github.com/google/uuid"

	"points-miner/internal/types"
)

// Event is the closed set of notification variants. Only types in this file
// implement it.
type Event interface {
	Tag() types.Tag
	Meta() Header
	sealed()
}

type Header struct {
	ID       string
	At       time.Time
	Username string
}

func NewHeader(username string, at time.Time) Header {
	return Header{ID: uuid.NewString(), At: at, Username: username}
}

func (h Header) Meta() Header { return h }
func (Header) sealed()        {}

type StreamerOnline struct {
	Header
	Title string
	Game  string
}

type StreamerOffline struct {
	Header
	// Speculative is set when the engine gave up on heartbeats rather than
	// the platform reporting the stream end.
	Speculative bool
}

type WatchStreak struct {
	Header
	Minutes int
}

type BetStart struct {
	Header
	WindowID string
	Title    string
	PlaceAt  time.Time
}

type BetPlaced struct {
	Header
	WindowID string
	Title    string
	Outcome  string
	Amount   int
	Strategy types.Strategy
}

type BetWin struct {
	Header
	WindowID string
	Title    string
	Outcome  string
	Amount   int
	Won      int
}

type BetLose struct {
	Header
	WindowID string
	Title    string
	Outcome  string
	Amount   int
}

type BetRefund struct {
	Header
	WindowID string
	Title    string
	Amount   int
}

type BetFilters struct {
	Header
	WindowID string
	Title    string
	Filter   types.FilterCondition
}

// BetGeneral reports a window that was skipped without an error, e.g. placement too late.
type BetGeneral struct {
	Header
	WindowID string
	Title    string
	Reason   string
}

type BetFailed struct {
	Header
	WindowID string
	Title    string
	Error    string
}

type DropClaim struct {
	Header
	DropID string
	Name   string
}

type DropStatus struct {
	Header
	DropID   string
	Name     string
	Current  int
	Required int
}

type ChatMention struct {
	Header
	Author  string
	Message string
}

type JoinRaid struct {
	Header
	Target string
}

type MomentClaim struct {
	Header
	MomentID string
}

func (StreamerOnline) Tag() types.Tag  { return types.TagStreamerOnline }
func (StreamerOffline) Tag() types.Tag { return types.TagStreamerOffline }
func (WatchStreak) Tag() types.Tag     { return types.TagGainForWatchStreak }
func (BetStart) Tag() types.Tag        { return types.TagBetStart }
func (BetPlaced) Tag() types.Tag       { return types.TagBetPlaced }
func (BetWin) Tag() types.Tag          { return types.TagBetWin }
func (BetLose) Tag() types.Tag         { return types.TagBetLose }
func (BetRefund) Tag() types.Tag       { return types.TagBetRefund }
func (BetFilters) Tag() types.Tag      { return types.TagBetFilters }
func (BetGeneral) Tag() types.Tag      { return types.TagBetGeneral }
func (BetFailed) Tag() types.Tag       { return types.TagBetFailed }
func (DropClaim) Tag() types.Tag       { return types.TagDropClaim }
func (DropStatus) Tag() types.Tag      { return types.TagDropStatus }
func (ChatMention) Tag() types.Tag     { return types.TagChatMention }
func (JoinRaid) Tag() types.Tag        { return types.TagJoinRaid }
func (MomentClaim) Tag() types.Tag     { return types.TagMomentClaim }
