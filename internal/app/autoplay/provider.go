// Package autoplay extends an exhausted queue with a related track.
package autoplay

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/19voice/internal/domain/track"
)

// Searcher resolves a free-text query to candidate tracks.
type Searcher interface {
	Search(ctx context.Context, query string, requester track.Requester) ([]track.Track, error)
}

// QueryProvider is the interface for autoplay query providers.
// Different implementations derive search queries from the seed track
// through various strategies (title parsing, similarity services, etc.).
type QueryProvider interface {
	// Queries returns search queries for tracks related to seed, best first.
	Queries(ctx context.Context, seed track.Track) ([]string, error)

	// Name returns the provider name (used in config).
	Name() string
}

// artistPattern captures the leading "Artist" of "Artist - Title" or "Artist | Title".
var artistPattern = regexp.MustCompile(`^([^-|]+)`)

// SplitTitle splits "Artist - Title" into its parts. ok is false when the
// title carries no separator.
func SplitTitle(title string) (artist, name string, ok bool) {
	idx := strings.IndexAny(title, "-|")
	if idx < 0 {
		return "", strings.TrimSpace(title), false
	}
	artist = strings.TrimSpace(title[:idx])
	name = strings.TrimSpace(title[idx+1:])
	return artist, name, artist != "" && name != ""
}

// ArtistQueryProvider searches for more tracks by the seed's artist.
type ArtistQueryProvider struct{}

// NewArtistQueryProvider creates a new ArtistQueryProvider.
func NewArtistQueryProvider() *ArtistQueryProvider {
	return &ArtistQueryProvider{}
}

// Queries returns the artist token of the seed title, or "radio <title>"
// when the title has no separator.
func (p *ArtistQueryProvider) Queries(ctx context.Context, seed track.Track) ([]string, error) {
	return []string{ArtistQuery(seed.Title)}, nil
}

// Name returns the provider name.
func (p *ArtistQueryProvider) Name() string {
	return "artist"
}

// ArtistQuery builds the artist search query for a title.
func ArtistQuery(title string) string {
	title = strings.TrimSpace(title)
	if strings.ContainsAny(title, "-|") {
		if m := artistPattern.FindStringSubmatch(title); m != nil {
			if artist := strings.TrimSpace(m[1]); artist != "" {
				return artist
			}
		}
	}
	return "radio " + title
}
