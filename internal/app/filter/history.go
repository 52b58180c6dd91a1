package filter

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/osa030/19voice/internal/domain/track"
)

const (
	// minWordLength is the length a word must exceed to count as significant.
	minWordLength = 3
	// maxSharedWords is the number of shared significant words that marks a
	// candidate as a variant of a history entry.
	maxSharedWords = 2
)

// HistoryFilter rejects candidates already injected by autoplay, or whose
// title shares two or more significant words with a history title.
type HistoryFilter struct {
	autoplayOnly
	noSettings
}

func (f *HistoryFilter) Name() string {
	return "history_filter"
}

func (f *HistoryFilter) Description() string {
	return "Rejects recently injected tracks and close variants of them"
}

func (f *HistoryFilter) ReturnCodes() []string {
	return []string{"recently_played"}
}

func (f *HistoryFilter) Check(ctx context.Context, candidate track.Track, fc Context) Result {
	words := SignificantWords(candidate.Title)

	for _, h := range fc.History {
		if candidate.SameAs(h) {
			return Reject("recently_played")
		}

		shared := 0
		for w := range SignificantWords(h.Title) {
			if _, ok := words[w]; ok {
				shared++
			}
		}
		if shared >= maxSharedWords {
			return Reject("recently_played")
		}
	}
	return Accept()
}

// SignificantWords returns the distinct lowercased words of title longer
// than three characters, with surrounding punctuation removed.
func SignificantWords(title string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, raw := range strings.Fields(strings.ToLower(title)) {
		w := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if utf8.RuneCountInString(w) > minWordLength {
			words[w] = struct{}{}
		}
	}
	return words
}

func init() {
	Register("history_filter", func() Filter {
		return &HistoryFilter{}
	})
}
