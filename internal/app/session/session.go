package session

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/session/state"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/domain/voice"
)

// Extender finds a related track when the queue runs dry.
type Extender interface {
	Enabled() bool
	SetEnabled(enabled bool, current *track.Track)
	Extend(ctx context.Context, finished *track.Track) (track.Track, error)
}

// Notifier broadcasts session events.
type Notifier interface {
	Broadcast(n *notification.Notification) error
}

// Session is one voice channel's playback queue. Every trigger (user call,
// transport event, timer) runs as a task on the session's own goroutine.
type Session struct {
	id       string
	opts     Options
	state    *state.Manager
	queue    *playback.Queue
	player   *playback.Controller
	autoplay Extender
	notifier Notifier

	onDestroyed func(*Session)

	box  *mailbox
	done chan struct{}

	// Owned by the loop goroutine.
	expect    *expectation
	live      bool // transport confirmed the current start; consumed by its end
	idleTimer Timer
	idleGen   uint64
}

func newSession(ref voice.ChannelRef, opts Options, ext Extender, notifier Notifier, volume int) *Session {
	id := uuid.New().String()
	return &Session{
		id:       id,
		opts:     opts.withDefaults(),
		state:    state.New(id, ref),
		queue:    playback.NewQueue(),
		player:   playback.NewController(volume),
		autoplay: ext,
		notifier: notifier,
		box:      newMailbox(),
		done:     make(chan struct{}),
	}
}

// start launches the session loop.
func (s *Session) start() {
	go func() {
		defer close(s.done)
		s.box.run()
	}()
}

// bind attaches the transport connection.
func (s *Session) bind(conn playback.Connection) {
	s.player.Bind(conn)
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// GuildID returns the guild the session plays in.
func (s *Session) GuildID() string {
	return s.state.GetChannel().GuildID
}

// Channel returns the bound voice channel.
func (s *Session) Channel() voice.ChannelRef {
	return s.state.GetChannel()
}

// Connected reports whether the transport connection is still usable.
func (s *Session) Connected() bool {
	conn := s.player.Connection()
	return conn != nil && conn.Connected()
}

// IsDestroyed reports whether the session reached its terminal state.
func (s *Session) IsDestroyed() bool {
	return s.state.IsDestroyed()
}

// Done is closed when the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// HandleEvent queues a transport event. It never blocks.
func (s *Session) HandleEvent(ev playback.Event) {
	if !s.box.post(func() { s.handleEvent(ev) }) {
		zlog.Debug().Msgf("event dropped, session closed: session=%s type=%s", s.id, ev.Type)
	}
}

// do runs fn on the session loop and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	posted := s.box.post(func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				zlog.Error().Msgf("session task panicked: session=%s panic=%v", s.id, r)
			}
		}()
		fn()
	})
	if !posted {
		return ErrNotInSession
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return classify(ctx.Err())
	case <-s.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrNotInSession
		}
	}
}

// taskContext detaches a caller's context from its cancellation so an
// accepted task always runs to completion, bounded by CommandTimeout.
func (s *Session) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.CommandTimeout)
}

// Enqueue appends t and starts it when the session is idle.
func (s *Session) Enqueue(ctx context.Context, t track.Track) (TrackEnqueuedResult, error) {
	var res TrackEnqueuedResult
	var err error
	if derr := s.do(ctx, func() {
		tctx, cancel := s.taskContext(ctx)
		defer cancel()
		res, err = s.enqueue(tctx, t)
	}); derr != nil {
		return TrackEnqueuedResult{}, derr
	}
	return res, err
}

// Skip skips the track that is current when the call is made. If that track
// already ended on its own, the already-advanced state is returned.
func (s *Session) Skip(ctx context.Context) (SkipResult, error) {
	target, hasTarget := s.queue.Current()

	var res SkipResult
	var err error
	if derr := s.do(ctx, func() {
		tctx, cancel := s.taskContext(ctx)
		defer cancel()
		res, err = s.skip(tctx, target, hasTarget)
	}); derr != nil {
		return SkipResult{}, derr
	}
	return res, err
}

// Pause pauses the current track.
func (s *Session) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true)
}

// Resume resumes a paused track.
func (s *Session) Resume(ctx context.Context) error {
	return s.setPaused(ctx, false)
}

func (s *Session) setPaused(ctx context.Context, paused bool) error {
	var err error
	if derr := s.do(ctx, func() {
		if s.state.IsDestroyed() {
			err = ErrNotInSession
			return
		}
		if _, ok := s.queue.Current(); !ok {
			err = ErrNothingPlaying
			return
		}

		tctx, cancel := s.taskContext(ctx)
		defer cancel()
		if paused {
			err = controllerError(s.player.Pause(tctx))
		} else {
			err = controllerError(s.player.Resume(tctx))
		}
		if err == nil {
			s.notify(notification.New(notification.TypeStateChanged, s.GuildID(), s.id).
				WithMessage(s.player.State().String()))
		}
	}); derr != nil {
		return derr
	}
	return err
}

// SetVolume clamps percent to 0-200 and returns the applied value.
func (s *Session) SetVolume(ctx context.Context, percent int) (int, error) {
	var applied int
	var err error
	if derr := s.do(ctx, func() {
		if s.state.IsDestroyed() {
			err = ErrNotInSession
			return
		}
		tctx, cancel := s.taskContext(ctx)
		defer cancel()

		applied, err = s.player.SetVolume(tctx, percent)
		if err != nil {
			err = classify(err)
			return
		}
		n := notification.New(notification.TypeVolumeChanged, s.GuildID(), s.id)
		n.Volume = applied
		s.notify(n)
	}); derr != nil {
		return 0, derr
	}
	return applied, err
}

// SetAutoplay turns autoplay on or off. Enabling it seeds autoplay with the
// current track.
func (s *Session) SetAutoplay(ctx context.Context, enabled bool) error {
	var err error
	if derr := s.do(ctx, func() {
		if s.state.IsDestroyed() {
			err = ErrNotInSession
			return
		}
		var current *track.Track
		if cur, ok := s.queue.Current(); ok {
			current = &cur
		}
		s.autoplay.SetEnabled(enabled, current)
		zlog.Info().Msgf("autoplay set: session=%s guild=%s enabled=%t", s.id, s.GuildID(), enabled)
	}); derr != nil {
		return derr
	}
	return err
}

// Move re-binds the session to another voice channel in the same guild.
func (s *Session) Move(ctx context.Context, ref voice.ChannelRef) error {
	var err error
	if derr := s.do(ctx, func() {
		if s.state.IsDestroyed() {
			err = ErrNotInSession
			return
		}
		conn := s.player.Connection()
		if conn == nil {
			err = errors.Mark(playback.ErrNoConnection, ErrConnection)
			return
		}
		tctx, cancel := s.taskContext(ctx)
		defer cancel()
		if merr := conn.Move(tctx, ref); merr != nil {
			err = classify(merr)
			return
		}
		s.state.SetChannel(ref)
		zlog.Info().Msgf("session moved: session=%s guild=%s channel=%s", s.id, ref.GuildID, ref.ChannelID)
	}); derr != nil {
		return derr
	}
	return err
}

// Status returns a snapshot with the first n pending tracks (n <= 0: all).
// It waits for every previously queued task to finish.
func (s *Session) Status(ctx context.Context, n int) (Status, error) {
	var st Status
	if err := s.do(ctx, func() { st = s.Snapshot(n) }); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Snapshot returns a status without going through the session loop.
func (s *Session) Snapshot(n int) Status {
	st := Status{
		Info:         s.state.BuildInfo(),
		Pending:      s.queue.PeekPending(n),
		PendingTotal: s.queue.Len(),
		Volume:       s.player.Volume(),
		Playing:      s.player.IsPlaying(),
		Paused:       s.player.IsPaused(),
		Autoplay:     s.autoplay.Enabled(),
	}
	if cur, ok := s.queue.Current(); ok {
		st.Current = &cur
	}
	return st
}

// Destroy tears the session down. Later calls return nil.
func (s *Session) Destroy(ctx context.Context) error {
	err := s.do(ctx, func() {
		tctx, cancel := s.taskContext(ctx)
		defer cancel()
		s.destroy(tctx, "stopped")
	})
	if errors.Is(err, ErrNotInSession) {
		return nil
	}
	return err
}

func (s *Session) notify(n *notification.Notification) {
	if s.notifier == nil {
		return
	}
	n.TextChannelID = s.state.GetChannel().TextChannelID
	if n.State == "" {
		n.State = s.state.GetState().String()
	}
	if err := s.notifier.Broadcast(n); err != nil {
		zlog.Error().Msgf("failed to broadcast %s: session=%s error=%v", n.Type, s.id, err)
	}
}
