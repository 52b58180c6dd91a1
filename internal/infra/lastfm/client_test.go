package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimilarTracks(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "track.getSimilar", r.URL.Query().Get("method"))
		assert.Equal(t, "Kasabian", r.URL.Query().Get("artist"))
		assert.Equal(t, "Underdog", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		response := `{
			"similartracks": {
				"track": [
					{"name": "Fire", "match": 1, "artist": {"name": "Kasabian"}},
					{"name": "Shoot Speed", "match": "0.42", "artist": {"name": "Primal Scream"}}
				]
			}
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	ctx := context.Background()
	tracks, err := client.GetSimilarTracks(ctx, "Underdog", "Kasabian", 5)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, SimilarTrack{Name: "Fire", Artist: "Kasabian", Match: 1}, tracks[0])
	assert.Equal(t, "Primal Scream", tracks[1].Artist)
	assert.InDelta(t, 0.42, tracks[1].Match, 1e-9)

	// Test Caching
	cached, err := client.GetSimilarTracks(ctx, "underdog", "KASABIAN", 5)
	require.NoError(t, err)
	assert.Equal(t, tracks, cached)
	assert.Equal(t, 1, calls, "second lookup should be served from cache")
}

func TestGetSimilarTracks_APIError(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		wantTemporary bool
	}{
		{"rate limited", 29, true},
		{"invalid parameters", 6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"error": %d, "message": "nope"}`, tt.code)
			}))
			defer server.Close()

			client, err := New(Config{APIKey: "test_key"})
			require.NoError(t, err)
			client.baseURL = server.URL + "/"

			_, err = client.GetSimilarTracks(context.Background(), "Underdog", "Kasabian", 5)
			require.Error(t, err)

			var apiErr *LastFMError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.wantTemporary, apiErr.Temporary())
		})
	}
}

func TestGetSimilarTracks_Validation(t *testing.T) {
	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)

	_, err = client.GetSimilarTracks(context.Background(), "", "Kasabian", 5)
	assert.Error(t, err)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestTTLCache_Expiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTTLCache[int](time.Minute)
	c.now = func() time.Time { return now }

	c.put("k", 7)
	v, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.get("k")
	assert.False(t, ok)

	forever := newTTLCache[int](0)
	forever.put("k", 1)
	forever.now = func() time.Time { return now.Add(24 * time.Hour) }
	_, ok = forever.get("k")
	assert.True(t, ok)
}

func TestGetSimilarTracks_CanceledContext(t *testing.T) {
	client, err := New(Config{APIKey: "test_key", RequestsPerSecond: 0.001})
	require.NoError(t, err)
	client.baseURL = "http://127.0.0.1:0/"

	// Drain the single burst token so the next call must wait.
	require.True(t, client.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.GetSimilarTracks(ctx, "Underdog", "Kasabian", 5)
	assert.Error(t, err)
}
