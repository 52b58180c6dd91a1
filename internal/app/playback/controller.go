package playback

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/domain/track"
)

// Errors
var (
	ErrNoConnection  = errors.New("no transport connection")
	ErrNotPlaying    = errors.New("not playing")
	ErrNotPaused     = errors.New("not paused")
	ErrAlreadyPaused = errors.New("already paused")
)

// Controller is a thin proxy over a transport connection. It remembers what
// it told the transport so the coordinator can ask isPlaying/isPaused without
// a round trip.
type Controller struct {
	mu sync.RWMutex

	conn   Connection
	state  State
	track  *track.Track
	volume int
	synced bool // volume has been sent over conn
}

// NewController creates a controller with the given user-facing volume.
func NewController(volume int) *Controller {
	return &Controller{
		state:  StateIdle,
		volume: ClampVolume(volume),
	}
}

// Bind attaches the transport connection.
func (c *Controller) Bind(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.synced = false
}

// Connection returns the bound connection, or nil.
func (c *Controller) Connection() Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Start tells the transport to play t, replacing whatever is loaded.
func (c *Controller) Start(ctx context.Context, t track.Track) error {
	conn := c.Connection()
	if conn == nil {
		return ErrNoConnection
	}
	c.syncVolume(ctx, conn)

	if err := conn.Start(ctx, t); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.track = nil
		c.mu.Unlock()
		return errors.Wrapf(err, "failed to start %s", t.URI)
	}

	c.mu.Lock()
	c.state = StatePlaying
	c.track = &t
	c.mu.Unlock()
	return nil
}

// Stop unloads the current track. The controller is idle afterwards even if
// the transport call failed.
func (c *Controller) Stop(ctx context.Context) error {
	conn := c.Connection()

	c.mu.Lock()
	c.state = StateIdle
	c.track = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Stop(ctx); err != nil {
		return errors.Wrap(err, "failed to stop playback")
	}
	return nil
}

// Pause pauses the current track.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.RLock()
	conn, state := c.conn, c.state
	c.mu.RUnlock()

	switch state {
	case StatePaused:
		return ErrAlreadyPaused
	case StateIdle:
		return ErrNotPlaying
	}
	if conn == nil {
		return ErrNoConnection
	}

	if err := conn.Pause(ctx, true); err != nil {
		return errors.Wrap(err, "failed to pause")
	}

	c.mu.Lock()
	c.state = StatePaused
	c.mu.Unlock()
	return nil
}

// Resume resumes a paused track.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.RLock()
	conn, state := c.conn, c.state
	c.mu.RUnlock()

	switch state {
	case StatePlaying:
		return ErrNotPaused
	case StateIdle:
		return ErrNotPlaying
	}
	if conn == nil {
		return ErrNoConnection
	}

	if err := conn.Pause(ctx, false); err != nil {
		return errors.Wrap(err, "failed to resume")
	}

	c.mu.Lock()
	c.state = StatePlaying
	c.mu.Unlock()
	return nil
}

// SetVolume clamps percent to 0-200, rescales it to the transport range and
// returns the user-facing value that was applied.
func (c *Controller) SetVolume(ctx context.Context, percent int) (int, error) {
	applied := ClampVolume(percent)

	conn := c.Connection()
	if conn == nil {
		return 0, ErrNoConnection
	}

	native := conn.VolumeScale().Native(applied)
	if err := conn.SetVolume(ctx, native); err != nil {
		return 0, errors.Wrap(err, "failed to set volume")
	}
	zlog.Debug().Msgf("volume set: percent=%d applied=%d native=%d scale=%s", percent, applied, native, conn.VolumeScale().Name)

	c.mu.Lock()
	c.volume = applied
	c.synced = c.conn == conn
	c.mu.Unlock()
	return applied, nil
}

// syncVolume sends the remembered volume before the first track on a new
// connection, since the transport starts at its own default. A failure is
// retried on the next Start.
func (c *Controller) syncVolume(ctx context.Context, conn Connection) {
	c.mu.RLock()
	synced, volume := c.synced, c.volume
	c.mu.RUnlock()
	if synced {
		return
	}

	native := conn.VolumeScale().Native(volume)
	if err := conn.SetVolume(ctx, native); err != nil {
		zlog.Warn().Msgf("failed to apply initial volume: volume=%d native=%d error=%v", volume, native, err)
		return
	}
	c.mu.Lock()
	c.synced = c.conn == conn
	c.mu.Unlock()
}

// MarkEnded records that the transport finished the loaded track on its own.
func (c *Controller) MarkEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.track = nil
}

// State returns the controller state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsPlaying reports whether a track is actively playing.
func (c *Controller) IsPlaying() bool {
	return c.State() == StatePlaying
}

// IsPaused reports whether a track is loaded and paused.
func (c *Controller) IsPaused() bool {
	return c.State() == StatePaused
}

// Volume returns the last applied user-facing volume.
func (c *Controller) Volume() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// Loaded returns the track the transport was last told to play.
func (c *Controller) Loaded() (track.Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.track == nil {
		return track.Track{}, false
	}
	return *c.track, true
}
