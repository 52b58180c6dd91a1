package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19voice/internal/domain/track"
)

func TestTitleMatchFilter_Check(t *testing.T) {
	seed := candidate("seed", "Kasabian - Underdog")

	tests := []struct {
		name         string
		title        string
		wantAccepted bool
	}{
		{"exact", "Kasabian - Underdog", false},
		{"different case", "KASABIAN - underdog", false},
		{"surrounding spaces", "  Kasabian - Underdog ", false},
		{"different title", "Kasabian - Fire", true},
	}

	f := &TitleMatchFilter{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), candidate("other", tt.title), Context{Seed: &seed})
			assert.Equal(t, tt.wantAccepted, result.Accepted)
		})
	}

	assert.True(t, f.Check(context.Background(), candidate("x", "anything"), Context{}).Accepted,
		"no seed means nothing to compare against")
}

func TestKeywordFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		title        string
		wantAccepted bool
	}{
		{"tutorial", "Guitar Tutorial for beginners", false},
		{"how to", "HOW TO play Wonderwall", false},
		{"live radio", "24/7 Live Radio lofi beats", false},
		{"apostrophe phrase", "10 things you didn't know about cars", false},
		{"music", "Kasabian - Fire", true},
		{"radio as a word alone", "Radiohead - Creep", true},
	}

	f := NewKeywordFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), candidate("x", tt.title), Context{})
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "non_music", result.Code)
			}
		})
	}
}

func TestKeywordFilter_ValidateConfig(t *testing.T) {
	f := NewKeywordFilter()
	require.NoError(t, f.ValidateConfig(map[string]any{
		"keywords": []any{"Karaoke"},
	}))

	assert.False(t, f.Check(context.Background(), candidate("x", "Song (karaoke version)"), Context{}).Accepted)
	assert.True(t, f.Check(context.Background(), candidate("x", "Guitar tutorial"), Context{}).Accepted,
		"configured keywords replace the defaults")

	f = NewKeywordFilter()
	require.NoError(t, f.ValidateConfig(map[string]any{}))
	assert.False(t, f.Check(context.Background(), candidate("x", "Guitar tutorial"), Context{}).Accepted,
		"empty settings keep the defaults")

	assert.Error(t, NewKeywordFilter().ValidateConfig(map[string]any{"keywords": []any{""}}))
}

func TestHistoryFilter_Check(t *testing.T) {
	history := []track.Track{candidate("https://example.com/underdog", "Kasabian - Underdog")}

	tests := []struct {
		name         string
		candidate    track.Track
		wantAccepted bool
	}{
		{
			name:         "uri in history",
			candidate:    candidate("https://example.com/underdog", "Something else entirely"),
			wantAccepted: false,
		},
		{
			name:         "live variant shares two words",
			candidate:    candidate("https://example.com/underdog-live", "Kasabian - Underdog (Live)"),
			wantAccepted: false,
		},
		{
			name:         "same artist shares one word",
			candidate:    candidate("https://example.com/fire", "Kasabian - Fire"),
			wantAccepted: true,
		},
		{
			name:         "short words are ignored",
			candidate:    candidate("https://example.com/abc", "The Kasabian of it all"),
			wantAccepted: true,
		},
	}

	f := &HistoryFilter{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(context.Background(), tt.candidate, Context{History: history})
			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "recently_played", result.Code)
			}
		})
	}
}

func TestSignificantWords(t *testing.T) {
	got := SignificantWords("Kasabian - Underdog (Live) [HD] Underdog!")

	assert.Len(t, got, 3)
	assert.Contains(t, got, "kasabian")
	assert.Contains(t, got, "underdog")
	assert.Contains(t, got, "live")
}

func TestFilters_AppliesTo(t *testing.T) {
	filters := []Filter{
		NewDuplicateTrackFilter(),
		&TitleMatchFilter{},
		NewKeywordFilter(),
		&HistoryFilter{},
		NewDurationLimitFilter(),
	}

	for _, f := range filters {
		t.Run(f.Name(), func(t *testing.T) {
			assert.True(t, f.AppliesTo(track.RequesterTypeAutoplay))
			assert.False(t, f.AppliesTo(track.RequesterTypeUser),
				"user requests are never filtered")
		})
	}
}

func TestChain_Execute(t *testing.T) {
	seed := candidate("seed", "Kasabian - Underdog")
	history := []track.Track{seed}

	chain := NewChain(
		NewDuplicateTrackFilter(),
		&TitleMatchFilter{},
		NewKeywordFilter(),
		&HistoryFilter{},
	)

	fc := Context{Seed: &seed, Current: &seed, History: history}

	tests := []struct {
		name       string
		candidate  track.Track
		wantCode   string
		wantFilter string
	}{
		{"identity first", candidate("seed", "Guitar tutorial"), "same_track", "duplicate_track_filter"},
		{"title before keyword", candidate("a", "kasabian - underdog"), "same_title", "title_match_filter"},
		{"keyword before history", candidate("b", "Kasabian Underdog tutorial"), "non_music", "keyword_filter"},
		{"history", candidate("c", "Kasabian - Underdog (Live)"), "recently_played", "history_filter"},
		{"accepted", candidate("d", "Kasabian - Fire"), "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := chain.Execute(context.Background(), tt.candidate, fc)
			assert.Equal(t, tt.wantCode == "", result.Accepted)
			assert.Equal(t, tt.wantCode, result.Code)
			assert.Equal(t, tt.wantFilter, result.Filter)
		})
	}

	userTrack := candidate("seed", "Kasabian - Underdog")
	userTrack.Requester = track.UserRequester("u1", "User")
	assert.True(t, chain.Execute(context.Background(), userTrack, fc).Accepted)
}

func TestRegistry(t *testing.T) {
	want := []string{
		"duplicate_track_filter",
		"duration_limit_filter",
		"history_filter",
		"keyword_filter",
		"title_match_filter",
	}
	assert.Equal(t, want, Names())
	for _, name := range want {
		f, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, f.Name())
	}

	_, ok := Lookup("market_filter")
	assert.False(t, ok)
}
