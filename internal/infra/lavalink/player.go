package lavalink

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/domain/voice"
)

// Player is a guild's Lavalink player. It implements playback.Connection.
type Player struct {
	transport *Transport
	guildID   string
	handler   playback.EventHandler

	mu        sync.Mutex
	ref       voice.ChannelRef
	voice     voiceState
	changed   chan struct{} // Closed and replaced on every voice update
	connected bool
}

func newPlayer(t *Transport, ref voice.ChannelRef, handler playback.EventHandler) *Player {
	return &Player{
		transport: t,
		guildID:   ref.GuildID,
		handler:   handler,
		ref:       ref,
		changed:   make(chan struct{}),
	}
}

// ChannelID returns the voice channel the player is bound to.
func (p *Player) ChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ref.ChannelID
}

// Connected reports whether the voice connection is still up.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// VolumeScale returns the native volume range.
func (p *Player) VolumeScale() playback.VolumeScale {
	return p.transport.opts.VolumeScale
}

func (p *Player) setConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
}

func (p *Player) markDisconnected() {
	p.setConnected(false)
}

func (p *Player) updateVoice(fn func(v *voiceState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.voice)
	close(p.changed)
	p.changed = make(chan struct{})
}

// awaitAndSendVoice waits until Discord reported a complete voice session
// in channelID, then forwards it to Lavalink.
func (p *Player) awaitAndSendVoice(ctx context.Context, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.transport.opts.VoiceTimeout)
	defer cancel()

	for {
		p.mu.Lock()
		v := p.voice
		changed := p.changed
		p.mu.Unlock()

		if v.ChannelID == channelID && v.SessionID != "" && v.Token != "" && v.Endpoint != "" {
			break
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "timed out waiting for discord voice update")
		}
	}
	return p.sendVoice(ctx)
}

func (p *Player) sendVoice(ctx context.Context) error {
	p.mu.Lock()
	v := p.voice
	p.mu.Unlock()

	if err := p.transport.node.updatePlayer(ctx, p.guildID, playerUpdate{Voice: &v}); err != nil {
		return errors.Wrap(err, "failed to send voice update")
	}
	return nil
}

// Move switches the bot to another voice channel in the same guild.
func (p *Player) Move(ctx context.Context, ref voice.ChannelRef) error {
	if err := p.transport.gateway.JoinVoice(p.guildID, ref.ChannelID); err != nil {
		return errors.Wrapf(err, "failed to move to voice channel %s", ref.ChannelID)
	}
	if err := p.awaitAndSendVoice(ctx, ref.ChannelID); err != nil {
		return err
	}

	p.mu.Lock()
	p.ref.ChannelID = ref.ChannelID
	p.mu.Unlock()
	return nil
}

// Start plays t, replacing whatever is loaded.
func (p *Player) Start(ctx context.Context, t track.Track) error {
	ut := &updateTrack{}
	if t.Handle != "" {
		encoded, err := json.Marshal(t.Handle)
		if err != nil {
			return errors.Wrap(err, "failed to encode track")
		}
		ut.Encoded = encoded
	} else {
		ut.Identifier = t.URI
	}
	paused := false
	return p.transport.node.updatePlayer(ctx, p.guildID, playerUpdate{Track: ut, Paused: &paused})
}

// Stop unloads the current track.
func (p *Player) Stop(ctx context.Context) error {
	return p.transport.node.updatePlayer(ctx, p.guildID, playerUpdate{
		Track: &updateTrack{Encoded: json.RawMessage("null")},
	})
}

// Pause pauses or resumes playback.
func (p *Player) Pause(ctx context.Context, paused bool) error {
	return p.transport.node.updatePlayer(ctx, p.guildID, playerUpdate{Paused: &paused})
}

// SetVolume sets the native player volume.
func (p *Player) SetVolume(ctx context.Context, native int) error {
	return p.transport.node.updatePlayer(ctx, p.guildID, playerUpdate{Volume: &native})
}

// Disconnect destroys the Lavalink player and leaves the voice channel.
func (p *Player) Disconnect(ctx context.Context) error {
	p.markDisconnected()
	p.transport.remove(p)

	var errs error
	if err := p.transport.node.destroyPlayer(ctx, p.guildID); err != nil && !errors.Is(err, ErrNodeNotReady) {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "failed to destroy player"))
	}
	if err := p.transport.gateway.LeaveVoice(p.guildID); err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "failed to leave voice"))
	}
	return errs
}
