// Package state provides session state management.
package state

// State represents the advance coordinator state of a session.
type State int

const (
	StateIdle                State = iota // Nothing playing, idle timer armed
	StatePlaying                          // A track is current and started
	StateAdvancingByUser                  // A skip is moving the queue
	StateAdvancingByAutoplay              // The autoplay extender is picking a track
	StateAdvancingBySystem                // A natural track end is moving the queue
	StateDestroyed                        // Terminal
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateAdvancingByUser:
		return "advancing_by_user"
	case StateAdvancingByAutoplay:
		return "advancing_by_autoplay"
	case StateAdvancingBySystem:
		return "advancing_by_system"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// IsAdvancing reports whether an advance is in flight.
func (s State) IsAdvancing() bool {
	return s == StateAdvancingByUser || s == StateAdvancingByAutoplay || s == StateAdvancingBySystem
}

// Intent represents the reason the queue is being advanced.
type Intent int

const (
	IntentNone             Intent = iota // No advance in flight
	IntentTrackEnded                     // Transport reported a natural end
	IntentUserSkip                       // A user skipped
	IntentAutoplayInjected               // Autoplay appended a track
)

// String returns the string representation of the intent.
func (i Intent) String() string {
	switch i {
	case IntentNone:
		return "none"
	case IntentTrackEnded:
		return "track_ended"
	case IntentUserSkip:
		return "user_skip"
	case IntentAutoplayInjected:
		return "autoplay_injected"
	default:
		return "unknown"
	}
}
