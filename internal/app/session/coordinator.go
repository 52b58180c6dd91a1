package session

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/session/state"
	"github.com/osa030/19voice/internal/domain/track"
)

// closeCodeDisconnected is the Discord voice close code sent when the bot
// was disconnected from the channel.
const closeCodeDisconnected = 4014

// expectation records an outstanding user skip so its own trackEnded echo
// can be recognised and dropped.
type expectation struct {
	skippedURI  string
	expectedURI string
	at          time.Time
}

// Everything below runs on the session loop.

func (s *Session) handleEvent(ev playback.Event) {
	if s.state.IsDestroyed() {
		return
	}
	zlog.Debug().Msgf("transport event: session=%s type=%s uri=%s reason=%s", s.id, ev.Type, ev.TrackURI(), ev.Reason)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CommandTimeout)
	defer cancel()

	switch ev.Type {
	case playback.EventReady:
		zlog.Info().Msgf("transport ready: session=%s guild=%s", s.id, s.GuildID())

	case playback.EventTrackStarted:
		s.cancelIdle()
		s.handleTrackStarted(ev)

	case playback.EventTrackEnded:
		s.handleTrackEnded(ctx, ev)

	case playback.EventTrackException:
		n := notification.New(notification.TypeTrackError, s.GuildID(), s.id).WithMessage(ev.Message)
		if ev.Track != nil {
			n.WithTrack(*ev.Track)
		}
		zlog.Warn().Msgf("track error: session=%s uri=%s message=%s", s.id, ev.TrackURI(), ev.Message)
		s.notify(n)

	case playback.EventConnectionClosed:
		if ev.Code == closeCodeDisconnected {
			zlog.Info().Msgf("voice connection closed by discord: session=%s code=%d", s.id, ev.Code)
			s.destroy(ctx, "disconnected")
			return
		}
		zlog.Warn().Msgf("voice connection closed: session=%s code=%d reason=%s", s.id, ev.Code, ev.Message)

	case playback.EventConnectionDisconnected:
		s.destroy(ctx, "disconnected")
	}
}

// handleTrackStarted arms the end of the loaded track. A start for a track
// that is no longer loaded is stale and arms nothing.
func (s *Session) handleTrackStarted(ev playback.Event) {
	loaded, ok := s.player.Loaded()
	if !ok || (ev.TrackURI() != "" && ev.TrackURI() != loaded.URI) {
		zlog.Debug().Msgf("stale track start ignored: session=%s uri=%s", s.id, ev.TrackURI())
		return
	}
	s.live = true
}

// handleTrackEnded advances the queue once per depletion. Ends caused by
// our own commands, echoes of a user skip, late duplicates and ends with
// nothing current are dropped. Only the first natural end after a
// confirmed start is accepted, so a repeated URI cannot advance twice.
func (s *Session) handleTrackEnded(ctx context.Context, ev playback.Event) {
	cur, ok := s.queue.Current()
	if !ok {
		zlog.Debug().Msgf("track end ignored, nothing current: session=%s uri=%s", s.id, ev.TrackURI())
		return
	}

	if ev.Reason != "" && !ev.Reason.Natural() {
		s.expect = nil
		zlog.Debug().Msgf("command track end dropped: session=%s uri=%s reason=%s", s.id, ev.TrackURI(), ev.Reason)
		return
	}

	if exp := s.expect; exp != nil {
		s.expect = nil
		recent := s.opts.Now().Sub(exp.at) <= s.opts.EchoWindow
		if recent && cur.URI == exp.expectedURI && ev.TrackURI() != cur.URI {
			zlog.Debug().Msgf("skip echo dropped: session=%s skipped=%s", s.id, exp.skippedURI)
			return
		}
	}

	if uri := ev.TrackURI(); uri != "" && uri != cur.URI {
		zlog.Debug().Msgf("late track end dropped: session=%s ended=%s current=%s", s.id, uri, cur.URI)
		return
	}

	if !s.live {
		zlog.Debug().Msgf("track end before start dropped: session=%s uri=%s", s.id, ev.TrackURI())
		return
	}

	if s.state.GetState() != state.StatePlaying {
		zlog.Debug().Msgf("track end ignored: session=%s state=%s", s.id, s.state.GetState())
		return
	}

	s.live = false
	s.systemAdvance(ctx, cur)
}

func (s *Session) systemAdvance(ctx context.Context, ended track.Track) {
	s.state.Begin(state.StateAdvancingBySystem, state.IntentTrackEnded)
	s.player.MarkEnded()
	s.notify(notification.New(notification.TypeTrackEnded, s.GuildID(), s.id).WithTrack(ended))

	if s.queue.Len() > 0 {
		_, _ = s.advanceAndStart(ctx)
		return
	}

	if s.autoplay.Enabled() {
		_, _ = s.runAutoplay(ctx, &ended)
		return
	}

	s.queue.Advance()
	s.settleIdle()
}

func (s *Session) enqueue(ctx context.Context, t track.Track) (TrackEnqueuedResult, error) {
	if s.state.IsDestroyed() {
		return TrackEnqueuedResult{}, ErrNotInSession
	}

	pos := s.queue.Append(t)
	res := TrackEnqueuedResult{Track: t, Position: pos}
	zlog.Info().Msgf("track enqueued: session=%s uri=%s position=%d requester=%s", s.id, t.URI, pos, t.Requester.Name)
	s.notify(notification.New(notification.TypeTrackEnqueued, s.GuildID(), s.id).WithTrack(t))

	if s.state.GetState() != state.StateIdle {
		return res, nil
	}

	// Idle: the head of pending becomes current. A current track left over
	// from a failed start is discarded.
	res.Position = pos - 1
	res.StartedImmediately = res.Position == 0
	if _, err := s.advanceAndStart(ctx); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Session) skip(ctx context.Context, target track.Track, hasTarget bool) (SkipResult, error) {
	if s.state.IsDestroyed() {
		return SkipResult{}, ErrNotInSession
	}
	if !hasTarget {
		return SkipResult{}, ErrNothingPlaying
	}

	cur, ok := s.queue.Current()
	if !ok || !cur.SameAs(target) {
		// A natural end already moved past the track the user saw.
		res := SkipResult{Skipped: target}
		if ok {
			res.Next = &cur
		}
		zlog.Info().Msgf("skip already satisfied: session=%s target=%s", s.id, target.URI)
		return res, nil
	}

	s.state.Begin(state.StateAdvancingByUser, state.IntentUserSkip)
	s.notify(notification.New(notification.TypeTrackSkipped, s.GuildID(), s.id).WithTrack(cur))
	res := SkipResult{Skipped: cur}

	if next := s.queue.PeekPending(1); len(next) > 0 {
		s.expect = &expectation{skippedURI: cur.URI, expectedURI: next[0].URI, at: s.opts.Now()}
		s.stopPlayer(ctx)
		started, err := s.advanceAndStart(ctx)
		res.Next = &started
		return res, err
	}

	if s.autoplay.Enabled() {
		exp := &expectation{skippedURI: cur.URI, at: s.opts.Now()}
		s.expect = exp
		s.stopPlayer(ctx)
		injected, err := s.runAutoplay(ctx, &cur)
		if err != nil {
			if injected.URI == "" {
				res.AutoplayFailed = true
				return res, nil
			}
			res.Next, res.Autoplay = &injected, true
			return res, err
		}
		exp.expectedURI = injected.URI
		res.Next, res.Autoplay = &injected, true
		return res, nil
	}

	s.expect = nil
	s.stopPlayer(ctx)
	s.queue.Advance()
	s.settleIdle()
	return res, nil
}

// runAutoplay asks the extender for one track. On failure autoplay is
// disabled and the session goes idle; the returned track is empty.
// A picked track that fails to start is returned together with the error.
func (s *Session) runAutoplay(ctx context.Context, finished *track.Track) (track.Track, error) {
	s.state.Begin(state.StateAdvancingByAutoplay, state.IntentAutoplayInjected)

	actx, cancel := context.WithTimeout(ctx, s.opts.AutoplayTimeout)
	defer cancel()

	t, err := s.autoplay.Extend(actx, finished)
	if err != nil {
		zlog.Warn().Msgf("autoplay failed, disabling: session=%s error=%v", s.id, err)
		s.autoplay.SetEnabled(false, nil)
		s.notify(notification.New(notification.TypeAutoplayFailed, s.GuildID(), s.id).WithMessage(err.Error()))
		s.queue.Advance()
		s.settleIdle()
		return track.Track{}, err
	}

	s.queue.Append(t)
	s.notify(notification.New(notification.TypeAutoplayInjected, s.GuildID(), s.id).WithTrack(t))
	return s.advanceAndStart(ctx)
}

// advanceAndStart pops the head of pending into current and starts it.
func (s *Session) advanceAndStart(ctx context.Context) (track.Track, error) {
	next, ok := s.queue.Advance()
	if !ok {
		s.settleIdle()
		return track.Track{}, nil
	}
	return next, s.startCurrent(ctx, next)
}

// startCurrent starts t. A failed start is broadcast once and leaves the
// session idle with the failed track still current.
func (s *Session) startCurrent(ctx context.Context, t track.Track) error {
	s.cancelIdle()
	s.live = false

	if err := s.player.Start(ctx, t); err != nil {
		zlog.Error().Msgf("failed to start track: session=%s uri=%s error=%v", s.id, t.URI, err)
		s.state.SetState(state.StateIdle)
		s.notify(notification.New(notification.TypePlaybackFailed, s.GuildID(), s.id).
			WithTrack(t).WithMessage(err.Error()))
		s.armIdle()
		return classify(err)
	}

	s.state.SetState(state.StatePlaying)
	zlog.Info().Msgf("now playing: session=%s uri=%s title=%q", s.id, t.URI, t.Title)
	s.notify(notification.New(notification.TypeNowPlaying, s.GuildID(), s.id).WithTrack(t))
	return nil
}

func (s *Session) stopPlayer(ctx context.Context) {
	s.live = false
	if err := s.player.Stop(ctx); err != nil {
		zlog.Warn().Msgf("failed to stop player: session=%s error=%v", s.id, err)
	}
}

// settleIdle parks an exhausted session and arms the idle timer.
func (s *Session) settleIdle() {
	s.state.SetState(state.StateIdle)
	s.armIdle()
	s.notify(notification.New(notification.TypeQueueEmpty, s.GuildID(), s.id))
}

func (s *Session) armIdle() {
	s.cancelIdle()
	gen := s.idleGen
	s.idleTimer = s.opts.AfterFunc(s.opts.IdleTimeout, func() {
		s.box.post(func() { s.onIdleTimeout(gen) })
	})
}

func (s *Session) cancelIdle() {
	s.idleGen++
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *Session) onIdleTimeout(gen uint64) {
	if gen != s.idleGen || s.state.GetState() != state.StateIdle || s.player.IsPlaying() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CommandTimeout)
	defer cancel()
	s.destroy(ctx, "idle timeout")
}

// destroy is idempotent. It releases the transport, removes the session
// from its registry and closes the mailbox.
func (s *Session) destroy(ctx context.Context, reason string) {
	if s.state.IsDestroyed() {
		return
	}
	s.state.SetState(state.StateDestroyed)
	s.cancelIdle()
	s.expect = nil
	removed := s.queue.Clear()

	if conn := s.player.Connection(); conn != nil {
		s.stopPlayer(ctx)
		if err := conn.Disconnect(ctx); err != nil {
			zlog.Warn().Msgf("failed to disconnect: session=%s error=%v", s.id, err)
		}
	}

	zlog.Info().Msgf("session destroyed: session=%s guild=%s reason=%s dropped=%d", s.id, s.GuildID(), reason, len(removed))
	s.notify(notification.New(notification.TypeSessionDestroyed, s.GuildID(), s.id).WithMessage(reason))

	if s.onDestroyed != nil {
		s.onDestroyed(s)
	}
	s.box.close()
}
