package playback

import (
	"context"

	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/domain/voice"
)

// EventHandler receives transport events. Implementations must not block.
type EventHandler func(Event)

// Transport establishes voice connections.
type Transport interface {
	// Connect joins the voice channel and returns a connection that reports
	// its events to handler.
	Connect(ctx context.Context, ref voice.ChannelRef, handler EventHandler) (Connection, error)
}

// Connection is a live voice connection owned by exactly one session.
type Connection interface {
	// ChannelID returns the voice channel the connection is bound to.
	ChannelID() string
	// Connected returns false once the voice connection has been severed.
	Connected() bool
	// VolumeScale returns the native volume range of the transport.
	VolumeScale() VolumeScale

	Move(ctx context.Context, ref voice.ChannelRef) error
	Start(ctx context.Context, t track.Track) error
	Stop(ctx context.Context) error
	Pause(ctx context.Context, paused bool) error
	SetVolume(ctx context.Context, native int) error
	Disconnect(ctx context.Context) error
}
