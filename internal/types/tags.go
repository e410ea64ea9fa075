package types

// Tag names a notification event variant. Backends filter on it.
type Tag string

const (
	TagStreamerOnline     Tag = "STREAMER_ONLINE"
	TagStreamerOffline    Tag = "STREAMER_OFFLINE"
	TagGainForWatchStreak Tag = "GAIN_FOR_WATCH_STREAK"
	TagBetStart           Tag = "BET_START"
	TagBetPlaced          Tag = "BET_PLACED"
	TagBetWin             Tag = "BET_WIN"
	TagBetLose            Tag = "BET_LOSE"
	TagBetRefund          Tag = "BET_REFUND"
	TagBetFilters         Tag = "BET_FILTERS"
	TagBetGeneral         Tag = "BET_GENERAL"
	TagBetFailed          Tag = "BET_FAILED"
	TagDropClaim          Tag = "DROP_CLAIM"
	TagDropStatus         Tag = "DROP_STATUS"
	TagChatMention        Tag = "CHAT_MENTION"
	TagJoinRaid           Tag = "JOIN_RAID"
	TagMomentClaim        Tag = "MOMENT_CLAIM"
)

var AllTags = []Tag{
	TagStreamerOnline,
	TagStreamerOffline,
	TagGainForWatchStreak,
	TagBetStart,
	TagBetPlaced,
	TagBetWin,
	TagBetLose,
	TagBetRefund,
	TagBetFilters,
	TagBetGeneral,
	TagBetFailed,
	TagDropClaim,
	TagDropStatus,
	TagChatMention,
	TagJoinRaid,
	TagMomentClaim,
}

func IsTag(s string) bool {
	for _, t := range AllTags {
		if string(t) == s {
			return true
		}
	}
	return false
}
