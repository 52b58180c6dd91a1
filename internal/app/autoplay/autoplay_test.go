package autoplay

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19voice/internal/app/filter"
	"github.com/osa030/19voice/internal/domain/track"
	"github.com/osa030/19voice/internal/infra/config"
	"github.com/osa030/19voice/internal/infra/lastfm"
)

type fakeSearcher struct {
	results   map[string][]track.Track
	errs      map[string]error
	queries   []string
	requester []track.Requester
}

func (f *fakeSearcher) Search(_ context.Context, query string, requester track.Requester) ([]track.Track, error) {
	f.queries = append(f.queries, query)
	f.requester = append(f.requester, requester)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

type fakeLastFm struct {
	similar []lastfm.SimilarTrack
	err     error
	gotName string
	gotArt  string
}

func (f *fakeLastFm) GetSimilarTracks(_ context.Context, trackName, artistName string, _ int) ([]lastfm.SimilarTrack, error) {
	f.gotName, f.gotArt = trackName, artistName
	return f.similar, f.err
}

func song(uri, title string) track.Track {
	return track.Track{URI: uri, Title: title}
}

func newTestExtender(t *testing.T, s Searcher, providers ...ProviderWithMetadata) *Extender {
	t.Helper()
	if len(providers) == 0 {
		providers = []ProviderWithMetadata{{Provider: NewArtistQueryProvider(), DisplayName: "artist"}}
	}
	cfg := &config.Config{}
	filters, err := NewFilterChainFromConfig(cfg)
	require.NoError(t, err)
	return NewExtender(s, NewProviderChain(providers), filters, DefaultHistorySize)
}

func TestArtistQuery(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Kasabian - Underdog", "Kasabian"},
		{"  Kasabian   -  Fire ", "Kasabian"},
		{"Daft Punk | One More Time", "Daft Punk"},
		{"Underdog", "radio Underdog"},
		{"- Untitled", "radio - Untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, ArtistQuery(tt.title))
		})
	}
}

func TestSplitTitle(t *testing.T) {
	artist, name, ok := SplitTitle("Kasabian - Underdog (Live)")
	assert.True(t, ok)
	assert.Equal(t, "Kasabian", artist)
	assert.Equal(t, "Underdog (Live)", name)

	_, name, ok = SplitTitle("Underdog")
	assert.False(t, ok)
	assert.Equal(t, "Underdog", name)
}

// Real titles stand in for the placeholder pair "Artist X - Song A" and
// "Artist X - Song B": the placeholders already share two significant words
// ("artist", "song") and would be rejected as variants of each other.
// "Kasabian - Fire" shares only "kasabian" with the history entry.
func TestExtender_PicksFirstSurvivor(t *testing.T) {
	seed := song("https://example.com/underdog", "Kasabian - Underdog")
	s := &fakeSearcher{results: map[string][]track.Track{
		"Kasabian": {
			song(seed.URI, seed.Title),
			song("https://example.com/underdog-live", "Kasabian - Underdog (Live)"),
			song("https://example.com/tutorial", "Kasabian guitar tutorial"),
			song("https://example.com/fire", "Kasabian - Fire"),
			song("https://example.com/shoot", "Kasabian - Shoot the Runner"),
		},
	}}
	e := newTestExtender(t, s)
	e.SetEnabled(true, nil)
	e.remember(seed)

	got, err := e.Extend(context.Background(), &seed)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/fire", got.URI)
	assert.True(t, got.Requester.IsAutoplay())
	assert.Equal(t, []string{"Kasabian"}, s.queries)
	assert.Equal(t, track.AutoplayRequester(), s.requester[0])

	current, ok := e.Seed()
	require.True(t, ok)
	assert.Equal(t, got.URI, current.URI, "picked track becomes the seed")
	assert.Len(t, e.History(), 2)
}

func TestExtender_UsesFinishedTrackWithoutSeed(t *testing.T) {
	finished := song("https://example.com/a", "Underdog")
	s := &fakeSearcher{results: map[string][]track.Track{
		"radio Underdog": {song("https://example.com/b", "Something New")},
	}}
	e := newTestExtender(t, s)

	got, err := e.Extend(context.Background(), &finished)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b", got.URI)
}

func TestExtender_Failures(t *testing.T) {
	seed := song("https://example.com/underdog", "Kasabian - Underdog")

	tests := []struct {
		name     string
		searcher *fakeSearcher
		finished *track.Track
	}{
		{
			name:     "no seed",
			searcher: &fakeSearcher{},
			finished: nil,
		},
		{
			name:     "no results",
			searcher: &fakeSearcher{},
			finished: &seed,
		},
		{
			name: "nothing survives",
			searcher: &fakeSearcher{results: map[string][]track.Track{
				"Kasabian": {seed, song("https://example.com/x", "kasabian - underdog")},
			}},
			finished: &seed,
		},
		{
			name: "search error",
			searcher: &fakeSearcher{errs: map[string]error{
				"Kasabian": errors.New("backend down"),
			}},
			finished: &seed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtender(t, tt.searcher)
			_, err := e.Extend(context.Background(), tt.finished)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNoTrackFound))
			assert.Empty(t, e.History())
		})
	}
}

func TestExtender_HistoryBounded(t *testing.T) {
	e := NewExtender(&fakeSearcher{}, NewProviderChain(nil), filter.NewChain(), 3)
	for _, uri := range []string{"a", "b", "c", "d", "e"} {
		e.remember(song(uri, uri))
	}

	var uris []string
	for _, h := range e.History() {
		uris = append(uris, h.URI)
	}
	assert.Equal(t, []string{"c", "d", "e"}, uris, "oldest entries are evicted first")
}

func TestExtender_SetEnabled(t *testing.T) {
	e := newTestExtender(t, &fakeSearcher{})
	assert.False(t, e.Enabled())

	current := song("https://example.com/a", "A - B")
	e.SetEnabled(true, &current)
	assert.True(t, e.Enabled())
	seed, ok := e.Seed()
	require.True(t, ok)
	assert.Equal(t, current.URI, seed.URI)

	e.SetEnabled(false, nil)
	assert.False(t, e.Enabled())
}

func TestExtender_LastFmBeforeArtist(t *testing.T) {
	seed := song("https://example.com/underdog", "Kasabian - Underdog")
	lf := &fakeLastFm{similar: []lastfm.SimilarTrack{
		{Name: "Shoot Speed", Artist: "Primal Scream"},
	}}
	s := &fakeSearcher{results: map[string][]track.Track{
		"Primal Scream - Shoot Speed": {song("https://example.com/ps", "Primal Scream - Shoot Speed")},
		"Kasabian":                    {song("https://example.com/fire", "Kasabian - Fire")},
	}}
	e := newTestExtender(t, s,
		ProviderWithMetadata{
			Provider:    &LastFmQueryProvider{lastfm: lf, config: &LastFmProviderConfig{SimilarCount: 5}},
			DisplayName: "Last.fm",
		},
		ProviderWithMetadata{Provider: NewArtistQueryProvider(), DisplayName: "artist"},
	)

	got, err := e.Extend(context.Background(), &seed)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/ps", got.URI)
	assert.Equal(t, "Underdog", lf.gotName)
	assert.Equal(t, "Kasabian", lf.gotArt)
	assert.Equal(t, []string{"Primal Scream - Shoot Speed"}, s.queries)
}

func TestLastFmQueryProvider_MinMatch(t *testing.T) {
	lf := &fakeLastFm{similar: []lastfm.SimilarTrack{
		{Name: "Fire", Artist: "Kasabian", Match: 0.9},
		{Name: "Shoot Speed", Artist: "Primal Scream", Match: 0.1},
		{Name: "", Artist: "Nobody", Match: 1},
	}}
	p := &LastFmQueryProvider{lastfm: lf, config: &LastFmProviderConfig{SimilarCount: 5, MinMatch: 0.5}}

	queries, err := p.Queries(context.Background(), song("x", "Kasabian - Underdog"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Kasabian - Fire"}, queries)
}

func TestProviderChain_SkipsFailingProvider(t *testing.T) {
	lf := &fakeLastFm{err: errors.New("rate limited")}
	chain := NewProviderChain([]ProviderWithMetadata{
		{Provider: &LastFmQueryProvider{lastfm: lf, config: &LastFmProviderConfig{SimilarCount: 5}}, DisplayName: "Last.fm"},
		{Provider: NewArtistQueryProvider(), DisplayName: "artist"},
	})

	queries, err := chain.Queries(context.Background(), song("x", "Kasabian - Underdog"))
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, QueryWithSource{Query: "Kasabian", DisplayName: "artist"}, queries[0])

	_, err = NewProviderChain(nil).Queries(context.Background(), song("x", "y"))
	assert.Error(t, err)
}

func TestNewProviderChainFromConfig(t *testing.T) {
	chain, err := NewProviderChainFromConfig(&config.Config{})
	require.NoError(t, err)
	require.Len(t, chain.providers, 1)
	assert.Equal(t, "artist", chain.providers[0].Provider.Name())

	_, err = NewProviderChainFromConfig(&config.Config{Autoplay: config.AutoplayConfig{
		Providers: []config.ProviderConfig{{Type: "unknown", DisplayName: "x"}},
	}})
	assert.Error(t, err)

	_, err = NewProviderChainFromConfig(&config.Config{Autoplay: config.AutoplayConfig{
		Providers: []config.ProviderConfig{{Type: "lastfm", DisplayName: "Last.fm"}},
	}})
	assert.Error(t, err, "lastfm provider requires an api key")

	chain, err = NewProviderChainFromConfig(&config.Config{Autoplay: config.AutoplayConfig{
		Providers: []config.ProviderConfig{
			{Type: "lastfm", DisplayName: "Last.fm", Settings: map[string]any{"api_key": "k"}},
			{Type: "artist", DisplayName: "Same artist"},
		},
	}})
	require.NoError(t, err)
	assert.Len(t, chain.providers, 2)
}

func TestNewFilterChainFromConfig(t *testing.T) {
	chain, err := NewFilterChainFromConfig(&config.Config{})
	require.NoError(t, err)

	var names []string
	for _, f := range chain.Filters() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"duplicate_track_filter", "title_match_filter", "keyword_filter", "history_filter"}, names)

	chain, err = NewFilterChainFromConfig(&config.Config{Filters: map[string]config.FilterConfig{
		"duration_limit_filter": {Enabled: true, Settings: map[string]any{"max_minutes": 10}},
	}})
	require.NoError(t, err)
	assert.Len(t, chain.Filters(), 5)

	_, err = NewFilterChainFromConfig(&config.Config{Filters: map[string]config.FilterConfig{
		"duration_limit_filter": {Enabled: true, Settings: map[string]any{"max_minutes": -1}},
	}})
	assert.Error(t, err)
}
