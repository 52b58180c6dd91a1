package session

import (
	"github.com/osa030/19voice/internal/app/session/state"
	"github.com/osa030/19voice/internal/domain/track"
)

// TrackEnqueuedResult describes where a requested track landed.
type TrackEnqueuedResult struct {
	Track              track.Track
	Position           int  // 1-based pending position, 0 when it started right away
	StartedImmediately bool // The queue was idle and the track is now playing
}

// SkipResult describes the outcome of a skip.
type SkipResult struct {
	Skipped        track.Track
	Next           *track.Track // Nil when the queue ran dry
	Autoplay       bool         // Next was injected by autoplay
	AutoplayFailed bool         // Autoplay found nothing and was disabled
}

// Status is a snapshot of a session for the queue view and admin API.
type Status struct {
	Info         state.Info
	Current      *track.Track
	Pending      []track.Track // First n pending tracks
	PendingTotal int
	Volume       int
	Playing      bool
	Paused       bool
	Autoplay     bool
}
