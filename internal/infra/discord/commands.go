package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/domain/voice"
	"github.com/osa030/19voice/internal/infra/config"
)

// Controller is the session manager surface driven by slash commands.
type Controller interface {
	Play(ctx context.Context, ref voice.ChannelRef, query string, requester track.Requester) (session.TrackEnqueuedResult, error)
	Skip(ctx context.Context, ref voice.ChannelRef) (session.SkipResult, error)
	Pause(ctx context.Context, ref voice.ChannelRef) error
	Resume(ctx context.Context, ref voice.ChannelRef) error
	Stop(ctx context.Context, ref voice.ChannelRef) error
	SetAutoplay(ctx context.Context, ref voice.ChannelRef, enabled bool) error
	SetVolume(ctx context.Context, ref voice.ChannelRef, percent int) (int, error)
	Queue(ctx context.Context, guildID string, n int) (session.Status, error)
	HandleDisconnected(guildID string)
}

const (
	queuePreview   = 10
	commandTimeout = 30 * time.Second
	ephemeralFlag  = discordgo.MessageFlagsEphemeral
)

var (
	minVolume = 0.0
	maxVolume = 200.0
)

// Definitions returns the slash commands the bot registers.
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song or add it to the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Search words, a video URL or a Spotify track link",
					Required:    true,
				},
			},
		},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume playback"},
		{Name: "skip", Description: "Skip the current song"},
		{Name: "stop", Description: "Stop playback and leave the voice channel"},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Volume in percent (0-200)",
					Required:    true,
					MinValue:    &minVolume,
					MaxValue:    maxVolume,
				},
			},
		},
		{
			Name:        "autoplay",
			Description: "Keep playing related songs when the queue runs out",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "on or off",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "on", Value: "on"},
						{Name: "off", Value: "off"},
					},
				},
			},
		},
		{Name: "queue", Description: "Show the current queue"},
	}
}

// request is a parsed slash command invocation.
type request struct {
	name      string
	ref       voice.ChannelRef // ChannelID is empty when the caller is not in voice
	requester track.Requester
	query     string
	level     int
	mode      string
}

// response is what the bot sends back for a request.
type response struct {
	content   string
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

// Commands executes slash commands against a Controller.
type Commands struct {
	ctrl Controller
	cfg  *config.Config
}

// NewCommands creates a command handler.
func NewCommands(ctrl Controller, cfg *config.Config) *Commands {
	return &Commands{ctrl: ctrl, cfg: cfg}
}

// Handle answers one interaction. The reply is deferred first since
// searching and joining voice can outlast the interaction deadline.
func (c *Commands) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		return
	}
	req := parseRequest(i)
	if channelID, ok := callerVoiceChannel(s, i.GuildID, req.requester.ID); ok {
		req.ref.ChannelID = channelID
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		zlog.Warn().Msgf("defer reply failed: guild=%s command=%s error=%v", i.GuildID, req.name, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	resp := c.execute(ctx, req)

	// A deferred reply is public; errors go to the caller alone.
	if resp.ephemeral {
		if err := s.InteractionResponseDelete(i.Interaction); err != nil {
			zlog.Debug().Msgf("delete deferred reply failed: guild=%s error=%v", i.GuildID, err)
		}
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: resp.content,
			Flags:   ephemeralFlag,
		}); err != nil {
			zlog.Warn().Msgf("followup failed: guild=%s command=%s error=%v", i.GuildID, req.name, err)
		}
		return
	}

	edit := &discordgo.WebhookEdit{}
	if resp.content != "" {
		edit.Content = &resp.content
	}
	if resp.embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{resp.embed}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		zlog.Warn().Msgf("edit reply failed: guild=%s command=%s error=%v", i.GuildID, req.name, err)
	}
}

func parseRequest(i *discordgo.InteractionCreate) request {
	data := i.ApplicationCommandData()
	req := request{
		name: data.Name,
		ref:  voice.ChannelRef{GuildID: i.GuildID, TextChannelID: i.ChannelID},
	}
	if i.Member != nil && i.Member.User != nil {
		name := i.Member.Nick
		if name == "" {
			name = i.Member.User.GlobalName
		}
		if name == "" {
			name = i.Member.User.Username
		}
		req.requester = track.UserRequester(i.Member.User.ID, name)
	}
	for _, o := range data.Options {
		switch o.Name {
		case "query":
			req.query = o.StringValue()
		case "level":
			req.level = int(o.IntValue())
		case "mode":
			req.mode = o.StringValue()
		}
	}
	return req
}

func (c *Commands) execute(ctx context.Context, req request) response {
	// The queue view is open to the whole guild.
	if req.name == "queue" {
		status, err := c.ctrl.Queue(ctx, req.ref.GuildID, queuePreview)
		if err != nil {
			return c.failure(req, err)
		}
		return response{embed: queueEmbed(status)}
	}

	if req.ref.ChannelID == "" {
		return response{content: c.cfg.GetMessage(codeNotInVoice), ephemeral: true}
	}

	zlog.Info().Msgf("command: name=%s guild=%s user=%s", req.name, req.ref.GuildID, req.requester.ID)

	switch req.name {
	case "play":
		res, err := c.ctrl.Play(ctx, req.ref, req.query, req.requester)
		if err != nil {
			return c.failure(req, err)
		}
		return response{content: enqueuedMessage(res)}
	case "skip":
		res, err := c.ctrl.Skip(ctx, req.ref)
		if err != nil {
			return c.failure(req, err)
		}
		return response{content: skipMessage(res)}
	case "pause":
		if err := c.ctrl.Pause(ctx, req.ref); err != nil {
			return c.failure(req, err)
		}
		return response{content: "⏸️ Paused."}
	case "resume":
		if err := c.ctrl.Resume(ctx, req.ref); err != nil {
			return c.failure(req, err)
		}
		return response{content: "▶️ Resumed."}
	case "stop":
		if err := c.ctrl.Stop(ctx, req.ref); err != nil {
			return c.failure(req, err)
		}
		return response{content: "⏹️ Stopped and left the voice channel."}
	case "volume":
		applied, err := c.ctrl.SetVolume(ctx, req.ref, req.level)
		if err != nil {
			return c.failure(req, err)
		}
		return response{content: volumeMessage(applied)}
	case "autoplay":
		enabled := req.mode == "on"
		if err := c.ctrl.SetAutoplay(ctx, req.ref, enabled); err != nil {
			return c.failure(req, err)
		}
		if enabled {
			return response{content: "🔁 Autoplay is on."}
		}
		return response{content: "Autoplay is off."}
	default:
		zlog.Debug().Msgf("unknown command: name=%s guild=%s", req.name, req.ref.GuildID)
		return response{content: c.cfg.GetMessage(""), ephemeral: true}
	}
}

func (c *Commands) failure(req request, err error) response {
	code := messageCode(req.name, err)
	if code == string(session.CodeUnknown) {
		zlog.Error().Msgf("command failed: name=%s guild=%s error=%v", req.name, req.ref.GuildID, err)
	} else {
		zlog.Debug().Msgf("command rejected: name=%s guild=%s code=%s error=%v", req.name, req.ref.GuildID, code, err)
	}
	return response{content: c.cfg.GetMessage(code), ephemeral: true}
}
