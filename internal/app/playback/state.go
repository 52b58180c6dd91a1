// Package playback provides the queue and the transport-facing playback controller.
package playback

// State represents what the transport is doing from the controller's point of view.
type State int

const (
	StateIdle    State = iota // Nothing loaded in the transport
	StatePlaying              // Track is playing
	StatePaused               // Track is loaded but paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
