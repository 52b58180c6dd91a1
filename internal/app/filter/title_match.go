package filter

import (
	"context"
	"strings"

	"github.com/osa030/19voice/internal/domain/track"
)

// TitleMatchFilter rejects a candidate whose title equals the seed title,
// ignoring case. Re-uploads of the same song usually keep the title.
type TitleMatchFilter struct {
	autoplayOnly
	noSettings
}

func (f *TitleMatchFilter) Name() string {
	return "title_match_filter"
}

func (f *TitleMatchFilter) Description() string {
	return "Rejects candidates titled exactly like the seed track (case-insensitive)"
}

func (f *TitleMatchFilter) ReturnCodes() []string {
	return []string{"same_title"}
}

func (f *TitleMatchFilter) Check(ctx context.Context, candidate track.Track, fc Context) Result {
	if fc.Seed == nil {
		return Accept()
	}
	if strings.EqualFold(strings.TrimSpace(candidate.Title), strings.TrimSpace(fc.Seed.Title)) {
		return Reject("same_title")
	}
	return Accept()
}

func init() {
	Register("title_match_filter", func() Filter {
		return &TitleMatchFilter{}
	})
}
