package filter

import (
	"context"

	"github.com/osa030/19voice/internal/domain/track"
)

// DuplicateTrackFilter rejects a candidate that is the seed or the current
// track. Identity is the URI only.
type DuplicateTrackFilter struct {
	autoplayOnly
	noSettings
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects the seed track and the track that just played"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"same_track"}
}

// Check checks if the candidate is already playing or is the seed.
func (f *DuplicateTrackFilter) Check(ctx context.Context, candidate track.Track, fc Context) Result {
	if fc.Seed != nil && candidate.SameAs(*fc.Seed) {
		return Reject("same_track")
	}
	if fc.Current != nil && candidate.SameAs(*fc.Current) {
		return Reject("same_track")
	}
	return Accept()
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
