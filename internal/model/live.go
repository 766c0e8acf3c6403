package model

import "time"

// LiveStatus is the server-side broadcast status of a podcast.
type LiveStatus string

const (
	LiveScheduled LiveStatus = "scheduled"
	LiveOn        LiveStatus = "live"
	LiveEnded     LiveStatus = "ended"
)

// LiveSession mirrors a server-owned live broadcast.
type LiveSession struct {
	SessionID string     `json:"sessionId"`
	PodcastID string     `json:"podcastId"`
	Listeners int        `json:"listeners"`
	Status    LiveStatus `json:"status"`
	Sequence  int64      `json:"-"` // local chunk counter
	StartedAt time.Time  `json:"startedAt"`
}

// LiveFlagKey is the storage key remembering that this profile is broadcasting podcastID.
func LiveFlagKey(podcastID string) string { return "podcast_live_" + podcastID }
