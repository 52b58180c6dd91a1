// Package voice provides voice channel references.
package voice

import "fmt"

// ChannelRef identifies a voice channel within a guild.
type ChannelRef struct {
	GuildID       string
	ChannelID     string // Voice channel
	TextChannelID string // Where announcements are posted (optional)
}

// IsZero reports whether the reference has no voice channel.
func (r ChannelRef) IsZero() bool {
	return r.GuildID == "" || r.ChannelID == ""
}

// String returns a log-friendly form.
func (r ChannelRef) String() string {
	return fmt.Sprintf("%s/%s", r.GuildID, r.ChannelID)
}
