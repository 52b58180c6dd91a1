package lavalink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/domain/voice"
)

// closeCodeDisconnected is the Discord voice close code for a bot that was
// removed from the channel.
const closeCodeDisconnected = 4014

// VoiceGateway joins and leaves voice channels on the Discord gateway.
// The resulting voice state and server updates must be forwarded to
// Transport.OnVoiceStateUpdate and Transport.OnVoiceServerUpdate.
type VoiceGateway interface {
	JoinVoice(guildID, channelID string) error
	LeaveVoice(guildID string) error
}

// TransportOptions tunes a Transport.
type TransportOptions struct {
	VolumeScale  playback.VolumeScale
	VoiceTimeout time.Duration // How long to wait for Discord voice updates
}

// Transport implements playback.Transport on a Lavalink node.
type Transport struct {
	node    *Node
	gateway VoiceGateway
	opts    TransportOptions

	mu      sync.RWMutex
	players map[string]*Player
}

// NewTransport creates a transport and subscribes it to node events.
func NewTransport(node *Node, gateway VoiceGateway, opts TransportOptions) *Transport {
	if opts.VolumeScale.Max == 0 {
		opts.VolumeScale = playback.FineScale
	}
	if opts.VoiceTimeout <= 0 {
		opts.VoiceTimeout = 10 * time.Second
	}
	t := &Transport{
		node:    node,
		gateway: gateway,
		opts:    opts,
		players: make(map[string]*Player),
	}
	node.setHandlers(t.dispatch, t.dropAll)
	return t
}

// Connect joins the voice channel and hands the voice session to Lavalink.
func (t *Transport) Connect(ctx context.Context, ref voice.ChannelRef, handler playback.EventHandler) (playback.Connection, error) {
	p := newPlayer(t, ref, handler)

	t.mu.Lock()
	if old, ok := t.players[ref.GuildID]; ok {
		old.markDisconnected()
	}
	t.players[ref.GuildID] = p
	t.mu.Unlock()

	if err := t.gateway.JoinVoice(ref.GuildID, ref.ChannelID); err != nil {
		t.remove(p)
		return nil, errors.Wrapf(err, "failed to join voice channel %s", ref.ChannelID)
	}

	if err := p.awaitAndSendVoice(ctx, ref.ChannelID); err != nil {
		t.remove(p)
		if lerr := t.gateway.LeaveVoice(ref.GuildID); lerr != nil {
			zlog.Warn().Msgf("failed to leave voice after connect failure: guild=%s error=%v", ref.GuildID, lerr)
		}
		return nil, err
	}

	p.setConnected(true)
	zlog.Info().Msgf("voice connected: guild=%s channel=%s", ref.GuildID, ref.ChannelID)
	return p, nil
}

// OnVoiceStateUpdate records the bot's own voice state. An empty channelID
// means the bot left voice.
func (t *Transport) OnVoiceStateUpdate(guildID, channelID, sessionID string) {
	p := t.player(guildID)
	if p == nil {
		return
	}
	p.updateVoice(func(v *voiceState) {
		v.ChannelID = channelID
		v.SessionID = sessionID
	})
	if channelID == "" {
		p.markDisconnected()
	}
}

// OnVoiceServerUpdate records the voice server Discord assigned. A change
// while connected is forwarded to Lavalink right away.
func (t *Transport) OnVoiceServerUpdate(guildID, token, endpoint string) {
	p := t.player(guildID)
	if p == nil {
		return
	}
	p.updateVoice(func(v *voiceState) {
		v.Token = token
		v.Endpoint = endpoint
	})
	if p.Connected() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), t.opts.VoiceTimeout)
			defer cancel()
			if err := p.sendVoice(ctx); err != nil {
				zlog.Error().Msgf("failed to forward voice server update: guild=%s error=%v", guildID, err)
			}
		}()
	}
}

func (t *Transport) player(guildID string) *Player {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.players[guildID]
}

func (t *Transport) remove(p *Player) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.players[p.guildID]; ok && cur == p {
		delete(t.players, p.guildID)
	}
}

// dispatch converts node events to playback events for the owning player.
func (t *Transport) dispatch(msg message) {
	p := t.player(msg.GuildID)
	if p == nil {
		zlog.Debug().Msgf("lavalink %s for unknown guild %s", msg.Op, msg.GuildID)
		return
	}
	if msg.Op == "playerUpdate" {
		return
	}

	ev := playback.Event{GuildID: msg.GuildID}
	if msg.Track != nil {
		tr := msg.Track.ToTrack()
		ev.Track = &tr
	}

	switch msg.Type {
	case "TrackStartEvent":
		ev.Type = playback.EventTrackStarted
	case "TrackEndEvent":
		ev.Type = playback.EventTrackEnded
		ev.Reason = endReason(msg.Reason)
	case "TrackExceptionEvent":
		ev.Type = playback.EventTrackException
		if msg.Exception != nil {
			ev.Message = msg.Exception.Message
		}
	case "TrackStuckEvent":
		ev.Type = playback.EventTrackException
		ev.Message = fmt.Sprintf("track stuck for %dms", msg.ThresholdMs)
	case "WebSocketClosedEvent":
		ev.Type = playback.EventConnectionClosed
		ev.Code = msg.Code
		ev.Message = msg.Reason
		if msg.Code == closeCodeDisconnected {
			p.markDisconnected()
		}
	default:
		zlog.Debug().Msgf("unhandled lavalink event: %s", msg.Type)
		return
	}

	p.handler(ev)
}

// dropAll reports every player as disconnected after the node websocket
// closed. Lavalink discards players of a lost session.
func (t *Transport) dropAll() {
	t.mu.Lock()
	players := make([]*Player, 0, len(t.players))
	for _, p := range t.players {
		players = append(players, p)
	}
	t.players = make(map[string]*Player)
	t.mu.Unlock()

	for _, p := range players {
		p.markDisconnected()
		p.handler(playback.Event{Type: playback.EventConnectionDisconnected, GuildID: p.guildID})
	}
}
