// Package filter provides the filter chain for autoplay candidates.
package filter

import (
	"context"
	"sort"

	"github.com/osa030/19voice/internal/domain/track"
)

// Context carries what a candidate is compared against.
type Context struct {
	Seed    *track.Track  // Autoplay context track (may be nil)
	Current *track.Track  // Track that just finished or is current (may be nil)
	History []track.Track // Recently injected tracks, oldest first
}

// Result is the verdict on one autoplay candidate.
type Result struct {
	Accepted bool
	Code     string // e.g., "same_track", "same_title", "non_music", "recently_played"
	Filter   string // Name of the rejecting filter, set by Chain
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for candidate filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to the given requester type.
	AppliesTo(requesterType track.RequesterType) bool
	// Check performs the filter check.
	Check(ctx context.Context, candidate track.Track, fc Context) Result
}

// autoplayOnly limits a filter to autoplay candidates. User requests are
// never filtered.
type autoplayOnly struct{}

func (autoplayOnly) AppliesTo(requesterType track.RequesterType) bool {
	return requesterType == track.RequesterTypeAutoplay
}

// noSettings is embedded by filters that take no configuration.
type noSettings struct{}

func (noSettings) ValidateConfig(map[string]any) error { return nil }

// registry maps config names to filter factories. It is filled from init
// functions only.
var registry = make(map[string]func() Filter)

// Register makes a filter available under name.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// Lookup returns a fresh instance of the named filter.
func Lookup(name string) (Filter, bool) {
	factory, ok := registry[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names returns the registered filter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
