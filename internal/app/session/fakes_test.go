package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/domain/guild"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/domain/voice"
)

var (
	voice1 = voice.ChannelRef{GuildID: "guild-1", ChannelID: "voice-1", TextChannelID: "text-1"}
	voice2 = voice.ChannelRef{GuildID: "guild-1", ChannelID: "voice-2", TextChannelID: "text-1"}
)

func newTrack(uri string) track.Track {
	return track.Track{URI: uri, Title: "Title " + uri, Duration: 3 * time.Minute}
}

// fakeConn records commands. Start reports a track start the way Lavalink
// does. With echoStop set, Stop reports a stopped track end for the loaded
// track; echoUntagged leaves the end reason empty.
type fakeConn struct {
	mu        sync.Mutex
	handler   playback.EventHandler
	channelID string
	connected bool
	loaded    *track.Track

	started      []string
	stops        int
	volumes      []int
	moves        []string
	disconnected bool

	startErr     error
	moveErr      error
	echoStop     bool
	echoNilURI   bool
	echoUntagged bool
}

func (c *fakeConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) VolumeScale() playback.VolumeScale { return playback.FineScale }

func (c *fakeConn) Move(_ context.Context, ref voice.ChannelRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.moveErr != nil {
		return c.moveErr
	}
	c.moves = append(c.moves, ref.ChannelID)
	c.channelID = ref.ChannelID
	return nil
}

func (c *fakeConn) Start(_ context.Context, t track.Track) error {
	c.mu.Lock()
	if c.startErr != nil {
		c.mu.Unlock()
		return c.startErr
	}
	c.started = append(c.started, t.URI)
	c.loaded = &t
	c.mu.Unlock()

	c.handler(playback.Event{Type: playback.EventTrackStarted, GuildID: voice1.GuildID, Track: &t})
	return nil
}

func (c *fakeConn) Stop(context.Context) error {
	c.mu.Lock()
	c.stops++
	loaded := c.loaded
	c.loaded = nil
	echo, nilURI, untagged := c.echoStop, c.echoNilURI, c.echoUntagged
	c.mu.Unlock()

	if echo && loaded != nil {
		ev := playback.Event{Type: playback.EventTrackEnded, GuildID: voice1.GuildID, Track: loaded, Reason: playback.EndStopped}
		if nilURI {
			ev.Track = nil
		}
		if untagged {
			ev.Reason = ""
		}
		c.handler(ev)
	}
	return nil
}

func (c *fakeConn) Pause(context.Context, bool) error { return nil }

func (c *fakeConn) SetVolume(_ context.Context, native int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumes = append(c.volumes, native)
	return nil
}

func (c *fakeConn) Disconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.connected = false
	return nil
}

// end reports a natural end of uri.
func (c *fakeConn) end(uri string) {
	t := newTrack(uri)
	c.handler(playback.Event{Type: playback.EventTrackEnded, GuildID: voice1.GuildID, Track: &t, Reason: playback.EndFinished})
}

// endBurst reports n natural ends of uri that reach the session loop back to
// back, before any start those ends trigger is confirmed.
func (c *fakeConn) endBurst(t *testing.T, s *Session, uri string, n int) {
	t.Helper()
	gate := make(chan struct{})
	require.True(t, s.box.post(func() { <-gate }))
	for i := 0; i < n; i++ {
		c.end(uri)
	}
	close(gate)
}

func (c *fakeConn) startedURIs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.started...)
}

func (c *fakeConn) dropVoice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeConn) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error

	// configure is applied to every new connection.
	configure func(*fakeConn)
}

func (f *fakeTransport) Connect(_ context.Context, ref voice.ChannelRef, handler playback.EventHandler) (playback.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{handler: handler, channelID: ref.ChannelID, connected: true}
	if f.configure != nil {
		f.configure(c)
	}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeTransport) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[len(f.conns)-1]
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

type fakeSearcher struct {
	err     error
	results map[string][]track.Track
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ track.Requester) ([]track.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	if tracks, ok := f.results[query]; ok {
		return tracks, nil
	}
	return []track.Track{newTrack(query)}, nil
}

type fakeExtender struct {
	mu      sync.Mutex
	enabled bool
	next    []track.Track
	err     error
	calls   int
}

func (e *fakeExtender) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

func (e *fakeExtender) SetEnabled(enabled bool, _ *track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

func (e *fakeExtender) Extend(context.Context, *track.Track) (track.Track, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return track.Track{}, e.err
	}
	if len(e.next) == 0 {
		return track.Track{}, errors.New("no candidates")
	}
	t := e.next[0]
	e.next = e.next[1:]
	t.Requester = track.AutoplayRequester()
	return t, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notification.Notification
}

func (r *recordingNotifier) Broadcast(n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count(typ notification.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Type == typ {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	clock   *fakeClock
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeClock drives Options.Now and Options.AfterFunc.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs the most recently armed timer, even if it was stopped, to
// model a timer that fired just before being cancelled.
func (c *fakeClock) fire() {
	c.mu.Lock()
	t := c.timers[len(c.timers)-1]
	c.mu.Unlock()
	t.f()
}

func (c *fakeClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeStore struct {
	mu       sync.Mutex
	settings map[string]guild.Settings
	err      error
}

func (f *fakeStore) Get(_ context.Context, guildID string) (guild.Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return guild.Settings{}, false, f.err
	}
	s, ok := f.settings[guildID]
	return s, ok, nil
}

func (f *fakeStore) SaveVolume(_ context.Context, guildID string, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settings[guildID]
	s.GuildID, s.Volume = guildID, volume
	f.settings[guildID] = s
	return nil
}

func (f *fakeStore) SaveAutoplay(_ context.Context, guildID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settings[guildID]
	s.GuildID, s.Autoplay = guildID, enabled
	f.settings[guildID] = s
	return nil
}

type harness struct {
	manager   *Manager
	transport *fakeTransport
	searcher  *fakeSearcher
	extender  *fakeExtender
	notifier  *recordingNotifier
	clock     *fakeClock
	store     *fakeStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{},
		searcher:  &fakeSearcher{},
		extender:  &fakeExtender{},
		notifier:  &recordingNotifier{},
		clock:     newFakeClock(),
		store:     &fakeStore{settings: map[string]guild.Settings{}},
	}
	h.manager = NewManager(Options{
		Now:       h.clock.Now,
		AfterFunc: h.clock.AfterFunc,
	}, Dependencies{
		Transport:   h.transport,
		Searcher:    h.searcher,
		NewExtender: func() Extender { return h.extender },
		Notifier:    h.notifier,
		Settings:    h.store,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.manager.Close(ctx)
	})
	return h
}

func (h *harness) play(t *testing.T, uris ...string) TrackEnqueuedResult {
	t.Helper()
	var res TrackEnqueuedResult
	for _, uri := range uris {
		var err error
		res, err = h.manager.Play(context.Background(), voice1, uri, track.UserRequester("user-1", "alice"))
		require.NoError(t, err)
	}
	return res
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	s, ok := h.manager.Get(voice1.GuildID)
	require.True(t, ok)
	return s
}

// status waits until every task queued so far has run.
func (h *harness) status(t *testing.T) Status {
	t.Helper()
	st, err := h.session(t).Status(context.Background(), 0)
	require.NoError(t, err)
	return st
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session loop did not exit")
	}
}

func pendingURIs(st Status) []string {
	uris := make([]string, 0, len(st.Pending))
	for _, p := range st.Pending {
		uris = append(uris, p.URI)
	}
	return uris
}
