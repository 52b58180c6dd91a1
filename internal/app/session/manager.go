// Package session runs one playback session per guild and routes commands
// to it.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/session/registry"
	"github.com/osa030/19voice/internal/domain/guild"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/domain/voice"
)

// Searcher resolves a play query to tracks, best match first.
type Searcher interface {
	Search(ctx context.Context, query string, requester track.Requester) ([]track.Track, error)
}

// SettingsStore persists per-guild preferences.
type SettingsStore interface {
	Get(ctx context.Context, guildID string) (guild.Settings, bool, error)
	SaveVolume(ctx context.Context, guildID string, volume int) error
	SaveAutoplay(ctx context.Context, guildID string, enabled bool) error
}

// Dependencies are the collaborators a Manager hands to its sessions.
type Dependencies struct {
	Transport   playback.Transport
	Searcher    Searcher
	NewExtender func() Extender
	Notifier    Notifier
	Settings    SettingsStore // Optional
}

// Manager owns the guild registry. Session creation and repair are
// serialized per guild; everything else is delegated to the session loop.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	opts     Options
	deps     Dependencies
	sessions *registry.Registry[*Session]
}

// NewManager creates a session manager.
func NewManager(opts Options, deps Dependencies) *Manager {
	return &Manager{
		locks:    make(map[string]*sync.Mutex),
		opts:     opts.withDefaults(),
		deps:     deps,
		sessions: registry.New[*Session](),
	}
}

func (m *Manager) guildLock(guildID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[guildID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[guildID] = l
	}
	return l
}

// Play searches query and enqueues the best match in the caller's voice
// channel, creating or repairing the guild's session as needed.
func (m *Manager) Play(ctx context.Context, ref voice.ChannelRef, query string, requester track.Requester) (TrackEnqueuedResult, error) {
	if ref.IsZero() {
		return TrackEnqueuedResult{}, ErrChannelMismatch
	}

	tracks, err := m.deps.Searcher.Search(ctx, query, requester)
	if err != nil {
		zlog.Warn().Msgf("search failed: guild=%s query=%q error=%v", ref.GuildID, query, err)
		return TrackEnqueuedResult{}, classify(err)
	}
	if len(tracks) == 0 {
		return TrackEnqueuedResult{}, errors.Wrapf(ErrNoResults, "query %q", query)
	}
	t := tracks[0].WithRequester(requester)

	// The session may be destroyed between acquire and enqueue; one retry
	// gets a fresh one.
	for attempt := 0; ; attempt++ {
		s, err := m.acquireOrRepair(ctx, ref)
		if err != nil {
			return TrackEnqueuedResult{}, err
		}
		res, err := s.Enqueue(ctx, t)
		if errors.Is(err, ErrNotInSession) && attempt == 0 {
			zlog.Debug().Msgf("session vanished during play, retrying: guild=%s", ref.GuildID)
			continue
		}
		return res, err
	}
}

// acquireOrRepair returns a live session bound to ref, replacing orphaned
// sessions and moving sessions bound to another channel.
func (m *Manager) acquireOrRepair(ctx context.Context, ref voice.ChannelRef) (*Session, error) {
	l := m.guildLock(ref.GuildID)
	l.Lock()
	defer l.Unlock()

	s, ok := m.sessions.Get(ref.GuildID)
	if !ok || s.IsDestroyed() {
		return m.create(ctx, ref)
	}

	if !s.Connected() {
		zlog.Warn().Msgf("replacing orphaned session: session=%s guild=%s", s.ID(), ref.GuildID)
		_ = s.Destroy(ctx)
		return m.create(ctx, ref)
	}

	if s.Channel().ChannelID != ref.ChannelID {
		if err := s.Move(ctx, ref); err != nil {
			zlog.Warn().Msgf("move failed, recreating session: session=%s guild=%s error=%v", s.ID(), ref.GuildID, err)
			_ = s.Destroy(ctx)
			return m.create(ctx, ref)
		}
	}
	return s, nil
}

func (m *Manager) create(ctx context.Context, ref voice.ChannelRef) (*Session, error) {
	settings := m.loadSettings(ctx, ref.GuildID)

	var ext Extender = disabledExtender{}
	if m.deps.NewExtender != nil {
		ext = m.deps.NewExtender()
	}

	s := newSession(ref, m.opts, ext, m.deps.Notifier, settings.Volume)
	s.onDestroyed = func(s *Session) {
		m.sessions.CompareAndDelete(s.GuildID(), s)
	}
	s.start()

	conn, err := m.deps.Transport.Connect(ctx, ref, s.HandleEvent)
	if err != nil {
		s.box.close()
		zlog.Error().Msgf("failed to connect: guild=%s channel=%s error=%v", ref.GuildID, ref.ChannelID, err)
		if IsTransient(err) {
			return nil, errors.Mark(err, ErrTransientBackend)
		}
		return nil, errors.Mark(err, ErrConnection)
	}
	s.bind(conn)
	m.sessions.Put(ref.GuildID, s)
	zlog.Info().Msgf("session created: session=%s guild=%s channel=%s", s.ID(), ref.GuildID, ref.ChannelID)

	// The stored volume reaches the transport with the first track.
	if settings.Autoplay {
		if err := s.SetAutoplay(ctx, true); err != nil {
			zlog.Warn().Msgf("failed to restore autoplay: session=%s error=%v", s.ID(), err)
		}
	}
	return s, nil
}

func (m *Manager) loadSettings(ctx context.Context, guildID string) guild.Settings {
	settings := guild.Settings{GuildID: guildID, Volume: m.opts.DefaultVolume}
	if m.deps.Settings == nil {
		return settings
	}
	stored, ok, err := m.deps.Settings.Get(ctx, guildID)
	if err != nil {
		zlog.Warn().Msgf("failed to load guild settings: guild=%s error=%v", guildID, err)
		return settings
	}
	if ok {
		return stored
	}
	return settings
}

// lookup returns the guild's session when the caller shares its channel.
func (m *Manager) lookup(ref voice.ChannelRef) (*Session, error) {
	s, ok := m.sessions.Get(ref.GuildID)
	if !ok || s.IsDestroyed() {
		return nil, ErrNotInSession
	}
	if ref.ChannelID != s.Channel().ChannelID {
		return nil, ErrChannelMismatch
	}
	return s, nil
}

// Skip skips the current track of the caller's session.
func (m *Manager) Skip(ctx context.Context, ref voice.ChannelRef) (SkipResult, error) {
	s, err := m.lookup(ref)
	if err != nil {
		return SkipResult{}, err
	}
	return s.Skip(ctx)
}

// Pause pauses the caller's session.
func (m *Manager) Pause(ctx context.Context, ref voice.ChannelRef) error {
	s, err := m.lookup(ref)
	if err != nil {
		return err
	}
	return s.Pause(ctx)
}

// Resume resumes the caller's session.
func (m *Manager) Resume(ctx context.Context, ref voice.ChannelRef) error {
	s, err := m.lookup(ref)
	if err != nil {
		return err
	}
	return s.Resume(ctx)
}

// Stop destroys the caller's session.
func (m *Manager) Stop(ctx context.Context, ref voice.ChannelRef) error {
	s, err := m.lookup(ref)
	if err != nil {
		return err
	}
	return s.Destroy(ctx)
}

// SetAutoplay toggles autoplay and remembers the choice for the guild.
func (m *Manager) SetAutoplay(ctx context.Context, ref voice.ChannelRef, enabled bool) error {
	s, err := m.lookup(ref)
	if err != nil {
		return err
	}
	if err := s.SetAutoplay(ctx, enabled); err != nil {
		return err
	}
	if m.deps.Settings != nil {
		if err := m.deps.Settings.SaveAutoplay(ctx, ref.GuildID, enabled); err != nil {
			zlog.Warn().Msgf("failed to save autoplay: guild=%s error=%v", ref.GuildID, err)
		}
	}
	return nil
}

// SetVolume sets the volume and remembers it for the guild.
func (m *Manager) SetVolume(ctx context.Context, ref voice.ChannelRef, percent int) (int, error) {
	s, err := m.lookup(ref)
	if err != nil {
		return 0, err
	}
	applied, err := s.SetVolume(ctx, percent)
	if err != nil {
		return 0, err
	}
	if m.deps.Settings != nil {
		if err := m.deps.Settings.SaveVolume(ctx, ref.GuildID, applied); err != nil {
			zlog.Warn().Msgf("failed to save volume: guild=%s error=%v", ref.GuildID, err)
		}
	}
	return applied, nil
}

// Queue returns the guild's status with up to n pending tracks. Any member
// of the guild may look.
func (m *Manager) Queue(ctx context.Context, guildID string, n int) (Status, error) {
	s, ok := m.sessions.Get(guildID)
	if !ok || s.IsDestroyed() {
		return Status{}, ErrNotInSession
	}
	return s.Status(ctx, n)
}

// Statuses returns a snapshot of every live session with up to n pending
// tracks each.
func (m *Manager) Statuses(ctx context.Context, n int) []Status {
	live := m.Sessions()
	out := make([]Status, 0, len(live))
	for _, s := range live {
		st, err := s.Status(ctx, n)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out
}

// Channel returns the voice channel the guild's live session is bound to.
func (m *Manager) Channel(guildID string) (voice.ChannelRef, error) {
	s, ok := m.Get(guildID)
	if !ok {
		return voice.ChannelRef{}, ErrNotInSession
	}
	return s.Channel(), nil
}

// HandleDisconnected destroys the guild's session after the bot was
// removed from voice outside of a transport event. A session whose
// connection is still up was created after the leave and is kept.
func (m *Manager) HandleDisconnected(guildID string) {
	s, ok := m.sessions.Get(guildID)
	if !ok || s.IsDestroyed() {
		return
	}
	if s.Connected() {
		zlog.Debug().Msgf("ignoring stale voice leave: session=%s guild=%s", s.ID(), guildID)
		return
	}
	s.HandleEvent(playback.Event{Type: playback.EventConnectionDisconnected, GuildID: guildID})
}

// Get returns the guild's live session.
func (m *Manager) Get(guildID string) (*Session, bool) {
	s, ok := m.sessions.Get(guildID)
	if !ok || s.IsDestroyed() {
		return nil, false
	}
	return s, true
}

// Sessions returns all live sessions.
func (m *Manager) Sessions() []*Session {
	all := m.sessions.All()
	live := make([]*Session, 0, len(all))
	for _, s := range all {
		if !s.IsDestroyed() {
			live = append(live, s)
		}
	}
	return live
}

// Close destroys every session and waits for their loops to exit.
func (m *Manager) Close(ctx context.Context) {
	for _, s := range m.sessions.All() {
		if err := s.Destroy(ctx); err != nil {
			zlog.Warn().Msgf("failed to destroy session: session=%s error=%v", s.ID(), err)
			continue
		}
		select {
		case <-s.Done():
		case <-ctx.Done():
			return
		}
	}
}

// disabledExtender is used when no autoplay backend is configured.
type disabledExtender struct{}

func (disabledExtender) Enabled() bool                 { return false }
func (disabledExtender) SetEnabled(bool, *track.Track) {}
func (disabledExtender) Extend(context.Context, *track.Track) (track.Track, error) {
	return track.Track{}, errors.New("autoplay is not configured")
}
