package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/domain/track"
)

// Message codes that exist only at the chat surface.
const (
	codeNotInVoice      = "not_in_voice"
	codeAlreadyPaused   = "already_paused"
	codeNotPaused       = "not_paused"
	codeTimeout         = "timeout"
	codeTooManyRequests = "too_many_requests"
)

const (
	colorPlaying = 0x1DB954
	colorInfo    = 0x5865F2
	colorWarn    = 0xFAA61A
)

// messageCode picks the configured message for a failed command.
func messageCode(command string, err error) string {
	code := session.CodeOf(err)
	switch code {
	case session.CodeAlreadyInState:
		if command == "resume" {
			return codeNotPaused
		}
		return codeAlreadyPaused
	case session.CodeTransient:
		if errors.Is(err, context.DeadlineExceeded) {
			return codeTimeout
		}
		return codeTooManyRequests
	case session.CodeConnection:
		if errors.Is(err, context.DeadlineExceeded) {
			return codeTimeout
		}
	}
	return string(code)
}

func trackLine(t track.Track) string {
	title := t.Title
	if title == "" {
		title = t.URI
	}
	if t.URI != "" && strings.HasPrefix(t.URI, "http") {
		title = fmt.Sprintf("[%s](%s)", title, t.URI)
	}
	return fmt.Sprintf("**%s** (%s)", title, t.FormatDuration())
}

func enqueuedMessage(res session.TrackEnqueuedResult) string {
	if res.StartedImmediately {
		return "🎶 Now playing: " + trackLine(res.Track)
	}
	return fmt.Sprintf("➕ Added to the queue at #%d: %s", res.Position, trackLine(res.Track))
}

func skipMessage(res session.SkipResult) string {
	msg := "⏭️ Skipped " + trackLine(res.Skipped)
	switch {
	case res.AutoplayFailed:
		msg += "\nAutoplay found nothing to play and was turned off."
	case res.Next == nil:
		msg += "\nThe queue is empty."
	case res.Autoplay:
		msg += "\n🔁 Autoplay: " + trackLine(*res.Next)
	default:
		msg += "\nUp next: " + trackLine(*res.Next)
	}
	return msg
}

func volumeMessage(percent int) string {
	return fmt.Sprintf("🔊 Volume set to %d%%.", percent)
}

// queueEmbed renders the current track and the first pending tracks.
func queueEmbed(st session.Status) *discordgo.MessageEmbed {
	var b strings.Builder
	if st.Current != nil {
		state := "Now playing"
		if st.Paused {
			state = "Paused"
		}
		fmt.Fprintf(&b, "%s: %s\n", state, trackLine(*st.Current))
	} else {
		b.WriteString("Nothing is playing.\n")
	}
	if len(st.Pending) > 0 {
		b.WriteString("\n")
		for i, t := range st.Pending {
			fmt.Fprintf(&b, "%d. %s", i+1, trackLine(t))
			if t.Requester.Name != "" {
				fmt.Fprintf(&b, " · %s", t.Requester.Name)
			}
			b.WriteString("\n")
		}
		if rest := st.PendingTotal - len(st.Pending); rest > 0 {
			fmt.Fprintf(&b, "…and %d more\n", rest)
		}
	}

	autoplay := "off"
	if st.Autoplay {
		autoplay = "on"
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       colorInfo,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d queued · volume %d%% · autoplay %s", st.PendingTotal, st.Volume, autoplay),
		},
	}
	if st.Current != nil && st.Current.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: st.Current.ThumbnailURL}
	}
	return embed
}

// nowPlayingEmbed announces a started track.
func nowPlayingEmbed(t track.Track) *discordgo.MessageEmbed {
	title := "Now playing"
	if t.Requester.IsAutoplay() {
		title = "Now playing (autoplay)"
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: trackLine(t),
		Color:       colorPlaying,
	}
	if t.Author != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Artist", Value: t.Author, Inline: true})
	}
	if t.Requester.Name != "" && !t.Requester.IsAutoplay() {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + t.Requester.Name}
	}
	if t.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ThumbnailURL}
	}
	return embed
}

func warnEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       colorWarn,
	}
}
