// Package lastfm is a small Last.fm API client used to find tracks similar
// to the one playing.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// Last.fm asks clients to stay under five requests per second.
	defaultRequestsPerSecond = 5

	maxSimilarLimit = 100

	errorRateLimited = 29
)

// Config holds the client settings.
type Config struct {
	APIKey            string
	CacheTTL          time.Duration // Zero disables expiry
	RequestsPerSecond float64       // Zero uses the Last.fm guideline
}

// SimilarTrack is one entry of track.getSimilar.
type SimilarTrack struct {
	Name   string
	Artist string
	Match  float64 // 0..1, higher is closer to the seed
}

// LastFMError is an error document returned by the API.
type LastFMError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *LastFMError) Error() string {
	return fmt.Sprintf("last.fm API error %d: %s", e.Code, e.Message)
}

// Temporary reports whether the request may succeed when retried later.
func (e *LastFMError) Temporary() bool {
	return e.Code == errorRateLimited
}

// Client calls the Last.fm REST API. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	similar    *ttlCache[[]SimilarTrack]
}

// New creates a client. The API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		similar:    newTTLCache[[]SimilarTrack](cfg.CacheTTL),
	}, nil
}

type similarResponse struct {
	SimilarTracks struct {
		Track []struct {
			Name   string      `json:"name"`
			Match  json.Number `json:"match"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"similartracks"`
}

// GetSimilarTracks returns up to limit tracks similar to trackName by
// artistName, best match first. Results are cached per artist, track and
// limit, ignoring case.
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]SimilarTrack, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = min(max(limit, 1), maxSimilarLimit)

	key := strings.ToLower(artistName) + "|" + strings.ToLower(trackName) + "|" + strconv.Itoa(limit)
	if tracks, ok := c.similar.get(key); ok {
		zlog.Debug().Msgf("last.fm similar cache hit: artist=%s track=%s", artistName, trackName)
		return tracks, nil
	}

	params := url.Values{
		"method":      {"track.getSimilar"},
		"artist":      {artistName},
		"track":       {trackName},
		"limit":       {strconv.Itoa(limit)},
		"autocorrect": {"1"},
	}
	var resp similarResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return nil, err
	}

	tracks := make([]SimilarTrack, 0, len(resp.SimilarTracks.Track))
	for _, t := range resp.SimilarTracks.Track {
		match, _ := t.Match.Float64()
		tracks = append(tracks, SimilarTrack{Name: t.Name, Artist: t.Artist.Name, Match: match})
	}
	c.similar.put(key, tracks)
	return tracks, nil
}

// call waits for the rate limiter, performs a GET against the API root and
// decodes the body into out. Error documents are returned as *LastFMError
// regardless of the HTTP status.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "last.fm rate limiter")
	}

	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "last.fm %s", params.Get("method"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr LastFMError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
		return &apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("last.fm returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}
