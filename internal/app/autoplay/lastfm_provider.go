package autoplay

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/infra/lastfm"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
}

type LastFmProviderConfig struct {
	APIKey        string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	SimilarCount  int    `yaml:"similar_count" mapstructure:"similar_count" default:"5" validate:"gte=1,lte=50"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours" default:"24" validate:"gte=0"`
	// MinMatch drops similar tracks whose Last.fm match score is lower.
	MinMatch float64 `yaml:"min_match" mapstructure:"min_match" validate:"gte=0,lte=1"`
}

// LastFmQueryProvider turns Last.fm similar tracks of the seed into
// "<artist> - <name>" queries.
type LastFmQueryProvider struct {
	lastfm LastFmClient
	config *LastFmProviderConfig
}

// NewLastFmQueryProvider creates a new LastFmQueryProvider.
func NewLastFmQueryProvider(settings map[string]any) (*LastFmQueryProvider, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := lastfm.New(lastfm.Config{
		APIKey:   config.APIKey,
		CacheTTL: hours(config.CacheTTLHours),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return &LastFmQueryProvider{lastfm: client, config: &config}, nil
}

// Queries returns similar tracks of the seed as search queries.
// The seed's artist comes from "Artist - Title" or, failing that, its author.
func (p *LastFmQueryProvider) Queries(ctx context.Context, seed track.Track) ([]string, error) {
	artist, name, ok := SplitTitle(seed.Title)
	if !ok {
		artist = seed.Author
		name = seed.Title
	}
	if artist == "" || name == "" {
		return nil, errors.Newf("cannot derive artist from seed: %s", seed.Title)
	}

	similar, err := p.lastfm.GetSimilarTracks(ctx, name, artist, p.config.SimilarCount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get similar tracks")
	}

	queries := make([]string, 0, len(similar))
	for _, s := range similar {
		if s.Artist == "" || s.Name == "" || s.Match < p.config.MinMatch {
			continue
		}
		queries = append(queries, fmt.Sprintf("%s - %s", s.Artist, s.Name))
	}
	return queries, nil
}

// Name returns the provider name.
func (p *LastFmQueryProvider) Name() string {
	return "lastfm"
}

func hours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}
