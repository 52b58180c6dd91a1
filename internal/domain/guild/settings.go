// Package guild provides per-guild persisted preferences.
package guild

import "time"

// Settings are the preferences a new session in a guild starts with.
type Settings struct {
	GuildID   string
	Volume    int
	Autoplay  bool
	UpdatedAt time.Time
}
