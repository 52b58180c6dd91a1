package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/osa030/19voice/internal/app/notification"
)

// embedSender is the part of *discordgo.Session the announcer uses.
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer posts session notifications to the text channel each session
// was started from. Subscribe it to a notification.Manager.
type Announcer struct {
	sender embedSender
}

// NewAnnouncer creates an announcer posting through sender.
func NewAnnouncer(sender embedSender) *Announcer {
	return &Announcer{sender: sender}
}

// Send implements notification.Stream.
func (a *Announcer) Send(n *notification.Notification) error {
	if n.TextChannelID == "" {
		return nil
	}
	embed := announcement(n)
	if embed == nil {
		return nil
	}
	if _, err := a.sender.ChannelMessageSendEmbed(n.TextChannelID, embed); err != nil {
		return errors.Wrapf(err, "failed to announce %s", n.Type)
	}
	return nil
}

// announcement returns the embed for n, or nil for notifications that are
// not announced in chat.
func announcement(n *notification.Notification) *discordgo.MessageEmbed {
	switch n.Type {
	case notification.TypeNowPlaying:
		if n.Track == nil {
			return nil
		}
		return nowPlayingEmbed(*n.Track)
	case notification.TypePlaybackFailed:
		desc := "Could not play this song."
		if n.Track != nil {
			desc = "Could not play " + trackLine(*n.Track) + "."
		}
		return warnEmbed("Playback failed", desc)
	case notification.TypeAutoplayFailed:
		return warnEmbed("Autoplay stopped", "No related songs were found, so autoplay was turned off.")
	case notification.TypeSessionDestroyed:
		switch n.Message {
		case "idle timeout":
			return warnEmbed("Left the voice channel", "Nothing was played for a while.")
		case "disconnected":
			return warnEmbed("Left the voice channel", "I was disconnected from voice.")
		}
	}
	return nil
}
