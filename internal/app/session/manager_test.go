package session

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19voice/internal/domain/guild"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/domain/voice"
)

var alice = track.UserRequester("user-1", "alice")

func TestManager_PlayErrors(t *testing.T) {
	tests := []struct {
		name     string
		ref      voice.ChannelRef
		setup    func(h *harness)
		wantCode Code
	}{
		{
			name:     "caller not in voice",
			ref:      voice.ChannelRef{GuildID: voice1.GuildID},
			wantCode: CodeChannelMismatch,
		},
		{
			name: "no results",
			ref:  voice1,
			setup: func(h *harness) {
				h.searcher.results = map[string][]track.Track{"query": {}}
			},
			wantCode: CodeNoResults,
		},
		{
			name:     "search rate limited",
			ref:      voice1,
			setup:    func(h *harness) { h.searcher.err = context.DeadlineExceeded },
			wantCode: CodeTransient,
		},
		{
			name:     "connect failure",
			ref:      voice1,
			setup:    func(h *harness) { h.transport.err = errors.New("voice gateway refused") },
			wantCode: CodeConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h)
			}

			_, err := h.manager.Play(context.Background(), tt.ref, "query", alice)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, CodeOf(err))

			_, ok := h.manager.Get(voice1.GuildID)
			assert.False(t, ok)
			assert.Equal(t, 0, h.transport.connectCount())
		})
	}
}

func TestManager_ReplacesOrphanedSession(t *testing.T) {
	h := newHarness(t)
	h.play(t, "a")
	old := h.session(t)
	oldConn := h.transport.last()

	oldConn.mu.Lock()
	oldConn.connected = false
	oldConn.mu.Unlock()

	res := h.play(t, "b")
	assert.True(t, res.StartedImmediately)
	waitDone(t, old)

	assert.Equal(t, 2, h.transport.connectCount())
	assert.True(t, oldConn.isDisconnected())
	assert.NotEqual(t, old.ID(), h.session(t).ID())
	assert.Len(t, h.manager.Sessions(), 1)
}

func TestManager_MovesToCallerChannel(t *testing.T) {
	h := newHarness(t)
	h.play(t, "a")
	s := h.session(t)

	res, err := h.manager.Play(context.Background(), voice2, "b", alice)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Position)

	assert.Equal(t, 1, h.transport.connectCount())
	assert.Equal(t, []string{"voice-2"}, h.transport.last().moves)
	assert.Equal(t, s.ID(), h.session(t).ID())
	assert.Equal(t, "voice-2", s.Channel().ChannelID)
	assert.Equal(t, "text-1", s.Channel().TextChannelID)
}

func TestManager_MoveFailureRecreates(t *testing.T) {
	h := newHarness(t)
	h.transport.configure = func(c *fakeConn) { c.moveErr = errors.New("missing permissions") }
	h.play(t, "a")
	old := h.session(t)

	res, err := h.manager.Play(context.Background(), voice2, "b", alice)
	require.NoError(t, err)
	assert.True(t, res.StartedImmediately)
	waitDone(t, old)

	assert.Equal(t, 2, h.transport.connectCount())
	assert.Equal(t, "voice-2", h.session(t).Channel().ChannelID)
}

func TestManager_ReplacesStoppedSession(t *testing.T) {
	h := newHarness(t)
	h.play(t, "a")
	require.NoError(t, h.manager.Stop(context.Background(), voice1))

	res := h.play(t, "b")
	assert.True(t, res.StartedImmediately)
	assert.Equal(t, 2, h.transport.connectCount())
}

func TestManager_Lookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.manager.Skip(ctx, voice1)
	assert.Equal(t, CodeNotInSession, CodeOf(err))
	_, err = h.manager.Queue(ctx, voice1.GuildID, 10)
	assert.Equal(t, CodeNotInSession, CodeOf(err))

	h.play(t, "a", "b")

	_, err = h.manager.Skip(ctx, voice2)
	assert.Equal(t, CodeChannelMismatch, CodeOf(err))
	_, err = h.manager.Skip(ctx, voice.ChannelRef{GuildID: voice1.GuildID})
	assert.Equal(t, CodeChannelMismatch, CodeOf(err))
	assert.Equal(t, CodeChannelMismatch, CodeOf(h.manager.Stop(ctx, voice2)))

	// Anyone in the guild may read the queue.
	st, err := h.manager.Queue(ctx, voice1.GuildID, 10)
	require.NoError(t, err)
	require.NotNil(t, st.Current)
	assert.Equal(t, "a", st.Current.URI)
	assert.Equal(t, 1, st.PendingTotal)
}

func TestManager_StatusesAndChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Empty(t, h.manager.Statuses(ctx, 5))
	_, err := h.manager.Channel(voice1.GuildID)
	assert.Equal(t, CodeNotInSession, CodeOf(err))

	h.play(t, "a", "b", "c")

	statuses := h.manager.Statuses(ctx, 1)
	require.Len(t, statuses, 1)
	assert.Equal(t, voice1.GuildID, statuses[0].Info.GuildID)
	assert.Len(t, statuses[0].Pending, 1)
	assert.Equal(t, 2, statuses[0].PendingTotal)

	ref, err := h.manager.Channel(voice1.GuildID)
	require.NoError(t, err)
	assert.Equal(t, voice1, ref)
}

func TestManager_RestoresGuildSettings(t *testing.T) {
	h := newHarness(t)
	h.store.settings[voice1.GuildID] = guild.Settings{GuildID: voice1.GuildID, Volume: 50, Autoplay: true}

	h.play(t, "a")
	st := h.status(t)
	assert.Equal(t, 50, st.Volume)
	assert.True(t, st.Autoplay)
	assert.Equal(t, []int{250}, h.transport.last().volumes)
}

func TestManager_SettingsLoadFailureUsesDefaults(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("database is locked")

	h.play(t, "a")
	st := h.status(t)
	assert.Equal(t, 100, st.Volume)
	assert.False(t, st.Autoplay)
}

func TestManager_SetAutoplayPersists(t *testing.T) {
	h := newHarness(t)
	h.play(t, "a")

	require.NoError(t, h.manager.SetAutoplay(context.Background(), voice1, true))
	assert.True(t, h.status(t).Autoplay)
	assert.True(t, h.store.settings[voice1.GuildID].Autoplay)
}

func TestManager_HandleDisconnected(t *testing.T) {
	h := newHarness(t)
	h.play(t, "a")
	s := h.session(t)

	// Still connected: the leave belongs to an older connection.
	h.manager.HandleDisconnected(voice1.GuildID)
	_, ok := h.manager.Get(voice1.GuildID)
	require.True(t, ok)

	h.transport.last().dropVoice()
	h.manager.HandleDisconnected(voice1.GuildID)
	waitDone(t, s)

	_, ok = h.manager.Get(voice1.GuildID)
	assert.False(t, ok)
	assert.Empty(t, h.manager.Sessions())
}

func TestManager_Close(t *testing.T) {
	h := newHarness(t)
	h.play(t, "a")
	conn := h.transport.last()

	h.manager.Close(context.Background())
	assert.Empty(t, h.manager.Sessions())
	assert.True(t, conn.isDisconnected())
}
