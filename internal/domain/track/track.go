// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"time"
)

// Track represents a playable item resolved by the search backend.
// A Track is never mutated after creation.
type Track struct {
	URI          string        // Canonical identity (source URL)
	Title        string        // Track title as reported by the source
	Author       string        // Uploader / artist as reported by the source
	Duration     time.Duration // Zero or negative means live/unknown
	ThumbnailURL string        // Artwork URL (optional)
	Handle       string        // Opaque transport token (Lavalink encoded track)
	Requester    Requester     // Who queued it
}

// RequesterType represents the type of requester.
type RequesterType string

const (
	RequesterTypeUser     RequesterType = "USER"
	RequesterTypeAutoplay RequesterType = "AUTOPLAY"
)

// AutoplayRequesterID is the sentinel requester ID for system-injected tracks.
const AutoplayRequesterID = "autoplay"

// Requester represents the person who requested the track.
type Requester struct {
	ID   string        // Chat user ID, or AutoplayRequesterID
	Name string        // Display name
	Type RequesterType // Type of requester
}

// AutoplayRequester returns the sentinel requester used for autoplay tracks.
func AutoplayRequester() Requester {
	return Requester{
		ID:   AutoplayRequesterID,
		Name: "Autoplay",
		Type: RequesterTypeAutoplay,
	}
}

// UserRequester returns a requester for a chat user.
func UserRequester(id, name string) Requester {
	return Requester{ID: id, Name: name, Type: RequesterTypeUser}
}

// IsAutoplay reports whether the requester is the autoplay sentinel.
func (r Requester) IsAutoplay() bool {
	return r.Type == RequesterTypeAutoplay || r.ID == AutoplayRequesterID
}

// IsLive reports whether the track has no known length.
func (t Track) IsLive() bool {
	return t.Duration <= 0
}

// SameAs reports whether both tracks refer to the same source.
// URI is the only identity key; titles are never compared here.
func (t Track) SameAs(other Track) bool {
	return t.URI != "" && t.URI == other.URI
}

// WithRequester returns a copy of the track attributed to r.
func (t Track) WithRequester(r Requester) Track {
	t.Requester = r
	return t
}

// FormatDuration renders the length as m:ss, or "Live" for streams.
func (t Track) FormatDuration() string {
	if t.IsLive() {
		return "Live"
	}
	seconds := int(t.Duration / time.Second)
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
