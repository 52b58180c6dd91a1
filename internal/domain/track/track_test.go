package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrack_SameAs(t *testing.T) {
	tests := []struct {
		name     string
		a        Track
		b        Track
		expected bool
	}{
		{
			name:     "same uri",
			a:        Track{URI: "https://youtu.be/a", Title: "Song"},
			b:        Track{URI: "https://youtu.be/a", Title: "Song (Live)"},
			expected: true,
		},
		{
			name:     "different uri same title",
			a:        Track{URI: "https://youtu.be/a", Title: "Song"},
			b:        Track{URI: "https://youtu.be/b", Title: "Song"},
			expected: false,
		},
		{
			name:     "empty uri never matches",
			a:        Track{Title: "Song"},
			b:        Track{Title: "Song"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.SameAs(tt.b))
		})
	}
}

func TestTrack_FormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "live stream", duration: 0, expected: "Live"},
		{name: "negative is live", duration: -time.Second, expected: "Live"},
		{name: "under a minute", duration: 42 * time.Second, expected: "0:42"},
		{name: "minutes and seconds", duration: 3*time.Minute + 5*time.Second, expected: "3:05"},
		{name: "over an hour", duration: 61*time.Minute + 30*time.Second, expected: "61:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Track{Duration: tt.duration}
			assert.Equal(t, tt.expected, tr.FormatDuration())
			assert.Equal(t, tt.duration <= 0, tr.IsLive())
		})
	}
}

func TestRequester(t *testing.T) {
	auto := AutoplayRequester()
	assert.Equal(t, AutoplayRequesterID, auto.ID)
	assert.True(t, auto.IsAutoplay())

	user := UserRequester("1234", "alice")
	assert.Equal(t, RequesterTypeUser, user.Type)
	assert.False(t, user.IsAutoplay())

	tr := Track{URI: "u"}.WithRequester(user)
	assert.Equal(t, "alice", tr.Requester.Name)
}
