package playback

import "github.com/osa030/19voice/internal/domain/track"

// EventType represents a transport lifecycle event type.
type EventType int

const (
	EventReady                  EventType = iota // Transport session is ready
	EventTrackStarted                            // Transport began playing a track
	EventTrackEnded                              // Track stopped playing, for any reason
	EventTrackException                          // Track failed while loading or playing
	EventConnectionClosed                        // Voice websocket closed on the transport side
	EventConnectionDisconnected                  // Bot was removed from the voice channel
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventReady:
		return "ready"
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackException:
		return "track_exception"
	case EventConnectionClosed:
		return "connection_closed"
	case EventConnectionDisconnected:
		return "connection_disconnected"
	default:
		return "unknown"
	}
}

// EndReason represents why a track ended.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "load_failed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// Natural reports whether the track ended on its own rather than by a command.
func (r EndReason) Natural() bool {
	return r == EndFinished || r == EndLoadFailed
}

// Event represents a transport event.
type Event struct {
	Type    EventType
	GuildID string
	Track   *track.Track // Track the event refers to (nil for connection events)
	Reason  EndReason    // EventTrackEnded only
	Code    int          // EventConnectionClosed close code
	Message string       // Exception message or close reason
}

// TrackURI returns the URI of the event's track, or "" when unknown.
func (e Event) TrackURI() string {
	if e.Track == nil {
		return ""
	}
	return e.Track.URI
}
