// Package search turns play queries into playable tracks.
package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/infra/config"
	"github.com/osa030/19voice/internal/infra/spotify"
)

type rateLimitError struct{}

func (rateLimitError) Error() string   { return "search rate limit exceeded" }
func (rateLimitError) Temporary() bool { return true }

// ErrRateLimited is returned when searches arrive faster than the limiter allows.
var ErrRateLimited error = rateLimitError{}

// Loader loads tracks for a transport identifier (URL or prefixed search).
type Loader interface {
	LoadTracks(ctx context.Context, identifier string) ([]track.Track, error)
}

// TrackResolver looks up Spotify track metadata.
type TrackResolver interface {
	ResolveTrack(ctx context.Context, input string) (spotify.TrackInfo, error)
}

// Resolver maps user queries to transport identifiers and loads them.
type Resolver struct {
	loader  Loader
	spotify TrackResolver // nil when Spotify is not configured
	prefix  string
	limiter *rate.Limiter
}

// Config configures a Resolver.
type Config struct {
	Prefix    string     // Prepended to plain-text queries, e.g. "ytsearch:"
	RateLimit rate.Limit // Searches per second
	Burst     int
}

// ConfigFrom derives resolver settings from the application config.
func ConfigFrom(cfg config.SearchConfig) Config {
	return Config{
		Prefix:    cfg.Prefix,
		RateLimit: rate.Limit(cfg.RateLimit),
		Burst:     cfg.Burst,
	}
}

// NewResolver creates a resolver. spotifyResolver may be nil.
func NewResolver(loader Loader, spotifyResolver TrackResolver, cfg Config) *Resolver {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Inf
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Resolver{
		loader:  loader,
		spotify: spotifyResolver,
		prefix:  cfg.Prefix,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.Burst),
	}
}

// Search resolves query and returns matching tracks, best first, attributed
// to requester. An empty result means nothing was found.
func (r *Resolver) Search(ctx context.Context, query string, requester track.Requester) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if !r.limiter.Allow() {
		return nil, ErrRateLimited
	}

	identifier, err := r.identifier(ctx, query)
	if err != nil {
		return nil, err
	}
	if identifier == "" {
		return nil, nil
	}

	tracks, err := r.loader.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %q", identifier)
	}
	zlog.Debug().Msgf("search resolved: query=%q identifier=%q results=%d", query, identifier, len(tracks))

	for i := range tracks {
		tracks[i] = tracks[i].WithRequester(requester)
	}
	return tracks, nil
}

func (r *Resolver) identifier(ctx context.Context, query string) (string, error) {
	if spotify.IsTrackLink(query) {
		if r.spotify == nil {
			zlog.Warn().Msgf("spotify link ignored, spotify is not configured: %s", query)
			return "", nil
		}
		info, err := r.spotify.ResolveTrack(ctx, query)
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve spotify track")
		}
		return r.prefix + info.Query(), nil
	}

	if isURL(query) {
		return query, nil
	}
	return r.prefix + query, nil
}

func isURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
