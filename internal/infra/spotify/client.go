// Package spotify resolves Spotify track links through the Web API.
package spotify

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotTrackLink is returned for inputs that are not Spotify track links.
var ErrNotTrackLink = errors.New("not a spotify track link")

// Client is a Spotify API client authenticated with client credentials.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// TrackInfo is the metadata needed to search a Spotify track elsewhere.
type TrackInfo struct {
	ID         string
	Title      string
	Artists    []string
	Duration   time.Duration
	URL        string
	ArtworkURL string
}

// Query returns "<artists> - <title>", the form other sources index by.
func (t TrackInfo) Query() string {
	if len(t.Artists) == 0 {
		return t.Title
	}
	return strings.Join(t.Artists, ", ") + " - " + t.Title
}

// TemporaryError wraps a failure that persisted through every retry but
// may succeed later (rate limit, 5xx).
type TemporaryError struct {
	Err error
}

func (e *TemporaryError) Error() string   { return e.Err.Error() }
func (e *TemporaryError) Unwrap() error   { return e.Err }
func (e *TemporaryError) Temporary() bool { return true }

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := creds.Client(ctx)

	return &Client{
		client:     spotify.New(httpClient),
		market:     cfg.Market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// IsTrackLink reports whether input is a Spotify track URL or URI.
func IsTrackLink(input string) bool {
	_, err := extractTrackID(input)
	return err == nil
}

// ResolveTrack fetches the title and artists of a track URL, URI or ID.
func (c *Client) ResolveTrack(ctx context.Context, input string) (TrackInfo, error) {
	id, err := extractTrackID(input)
	if err != nil {
		return TrackInfo{}, err
	}

	var opts []spotify.RequestOption
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}

	var result *spotify.FullTrack
	err = c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), opts...)
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return TrackInfo{}, errors.Wrapf(err, "failed to get track %s", id)
	}

	return convertTrack(result), nil
}

func convertTrack(t *spotify.FullTrack) TrackInfo {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var artwork string
	if len(t.Album.Images) > 0 {
		artwork = t.Album.Images[0].URL
	}

	return TrackInfo{
		ID:         string(t.ID),
		Title:      t.Name,
		Artists:    artists,
		Duration:   time.Duration(t.Duration) * time.Millisecond,
		URL:        "https://open.spotify.com/track/" + string(t.ID),
		ArtworkURL: artwork,
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &TemporaryError{Err: errors.Wrap(lastErr, "max retries exceeded")}
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) (string, error) {
	input = strings.TrimSpace(input)

	// spotify:track:TRACK_ID
	if strings.HasPrefix(input, "spotify:") {
		parts := strings.Split(input, ":")
		if len(parts) == 3 && parts[1] == "track" && parts[2] != "" {
			return parts[2], nil
		}
		return "", ErrNotTrackLink
	}

	// https://open.spotify.com/track/TRACK_ID or https://open.spotify.com/intl-XX/track/TRACK_ID
	u, err := url.Parse(input)
	if err != nil || (u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com") {
		return "", ErrNotTrackLink
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[0] != "track" || parts[1] == "" {
		return "", ErrNotTrackLink
	}
	return parts[1], nil
}
