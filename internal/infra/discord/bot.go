// Package discord connects the bot to the Discord gateway: slash commands,
// the voice bridge for the audio node and channel announcements.
package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/infra/config"
)

// VoiceSink receives the bot's own voice credentials from the gateway.
type VoiceSink interface {
	OnVoiceStateUpdate(guildID, channelID, sessionID string)
	OnVoiceServerUpdate(guildID, token, endpoint string)
}

// Bot owns the Discord gateway session.
type Bot struct {
	dg  *discordgo.Session
	cfg config.DiscordConfig

	mu       sync.RWMutex
	sink     VoiceSink
	commands *Commands
	onReady  []func(userID string)
}

// New creates a bot. The gateway is not opened until Open.
func New(cfg config.DiscordConfig) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	dg.LogLevel = discordgo.LogWarning
	discordgo.Logger = gatewayLog

	b := &Bot{dg: dg, cfg: cfg}
	dg.AddHandler(b.handleReady)
	dg.AddHandler(b.handleInteraction)
	dg.AddHandler(b.handleVoiceStateUpdate)
	dg.AddHandler(b.handleVoiceServerUpdate)
	return b, nil
}

// SetVoiceSink routes voice credentials to sink.
func (b *Bot) SetVoiceSink(sink VoiceSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

// SetCommands installs the slash command handler.
func (b *Bot) SetCommands(c *Commands) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = c
}

// OnReady registers fn to run with the bot's user ID once the gateway is ready.
func (b *Bot) OnReady(fn func(userID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReady = append(b.onReady, fn)
}

// Session returns the underlying gateway session.
func (b *Bot) Session() *discordgo.Session {
	return b.dg
}

// Open connects to the gateway.
func (b *Bot) Open() error {
	if err := b.dg.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.dg.Close()
}

// JoinVoice asks the gateway to move the bot into a voice channel. The
// resulting credentials arrive through the VoiceSink.
func (b *Bot) JoinVoice(guildID, channelID string) error {
	if err := b.dg.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		return errors.Wrapf(err, "failed to join voice: guild=%s channel=%s", guildID, channelID)
	}
	return nil
}

// LeaveVoice removes the bot from voice in guildID.
func (b *Bot) LeaveVoice(guildID string) error {
	if err := b.dg.ChannelVoiceJoinManual(guildID, "", false, false); err != nil {
		return errors.Wrapf(err, "failed to leave voice: guild=%s", guildID)
	}
	return nil
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("discord ready: user=%s guilds=%d", r.User.Username, len(r.Guilds))

	b.mu.RLock()
	hooks := append([]func(string){}, b.onReady...)
	commands := b.commands
	b.mu.RUnlock()

	for _, fn := range hooks {
		fn(r.User.ID)
	}

	if commands == nil {
		return
	}
	appID := b.cfg.ApplicationID
	if appID == "" {
		appID = r.User.ID
	}
	guilds := b.cfg.GuildIDs
	if len(guilds) == 0 {
		guilds = []string{""}
	}
	for _, guildID := range guilds {
		if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, Definitions()); err != nil {
			zlog.Error().Msgf("failed to register commands: guild=%q error=%v", guildID, err)
			continue
		}
		zlog.Debug().Msgf("commands registered: guild=%q", guildID)
	}
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	b.mu.RLock()
	commands := b.commands
	b.mu.RUnlock()
	if commands == nil {
		return
	}
	commands.Handle(s, i)
}

func (b *Bot) handleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State == nil || s.State.User == nil || v.VoiceState == nil || v.UserID != s.State.User.ID {
		return
	}

	b.mu.RLock()
	sink := b.sink
	commands := b.commands
	b.mu.RUnlock()

	if sink != nil {
		sink.OnVoiceStateUpdate(v.GuildID, v.ChannelID, v.SessionID)
	}
	// Kicked or disconnected from voice by someone else.
	if v.ChannelID == "" && commands != nil {
		zlog.Info().Msgf("bot left voice: guild=%s", v.GuildID)
		commands.ctrl.HandleDisconnected(v.GuildID)
	}
}

func (b *Bot) handleVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	b.mu.RLock()
	sink := b.sink
	b.mu.RUnlock()
	if sink != nil {
		sink.OnVoiceServerUpdate(v.GuildID, v.Token, v.Endpoint)
	}
}

// gatewayLog routes discordgo's internal logging to zerolog.
func gatewayLog(level, _ int, format string, a ...interface{}) {
	ev := zlog.Debug()
	switch level {
	case discordgo.LogError:
		ev = zlog.Error()
	case discordgo.LogWarning:
		ev = zlog.Warn()
	}
	ev.Msgf("discordgo: "+format, a...)
}

// callerVoiceChannel returns the voice channel userID is connected to.
func callerVoiceChannel(s *discordgo.Session, guildID, userID string) (string, bool) {
	g, err := s.State.Guild(guildID)
	if err != nil || g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}
