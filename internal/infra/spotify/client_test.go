package spotify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:    "Playlist URL",
			input:   "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			wantErr: true,
		},
		{
			name:    "Playlist URI",
			input:   "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			wantErr: true,
		},
		{
			name:    "Other host",
			input:   "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantErr: true,
		},
		{
			name:    "Plain text",
			input:   "kasabian underdog",
			wantErr: true,
		},
		{
			name:    "Empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := extractTrackID(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotTrackLink)
				assert.False(t, IsTrackLink(tt.input))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
			assert.True(t, IsTrackLink(tt.input))
		})
	}
}

func TestTrackInfo_Query(t *testing.T) {
	info := TrackInfo{Title: "Underdog", Artists: []string{"Kasabian"}}
	assert.Equal(t, "Kasabian - Underdog", info.Query())

	info.Artists = []string{"Daft Punk", "Pharrell Williams"}
	info.Title = "Get Lucky"
	assert.Equal(t, "Daft Punk, Pharrell Williams - Get Lucky", info.Query())

	assert.Equal(t, "Untitled", TrackInfo{Title: "Untitled"}.Query())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "api rate limit",
			err:      spotify.Error{Message: "API rate limit exceeded", Status: 429},
			expected: true,
		},
		{
			name:     "api not found",
			err:      spotify.Error{Message: "non existing id", Status: 404},
			expected: false,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestTemporaryError(t *testing.T) {
	cause := errors.New("503 Service Unavailable")
	err := &TemporaryError{Err: cause}
	assert.True(t, err.Temporary())
	assert.ErrorIs(t, err, cause)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	assert.Error(t, err)
}
