package autoplay

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/app/filter"
	"github.com/osa030/19voice/internal/domain/track"
)

// DefaultHistorySize is the number of injected tracks remembered per session.
const DefaultHistorySize = 10

// ErrNoTrackFound is returned when no candidate survives the filters.
var ErrNoTrackFound = errors.New("autoplay found no suitable track")

// Extender picks one related track when a session's queue runs dry.
// It is owned by one session; Extend is only called from the session loop,
// the getters may be called from anywhere.
type Extender struct {
	mu sync.RWMutex

	enabled     bool
	seed        *track.Track
	history     []track.Track
	historySize int

	searcher Searcher
	chain    *ProviderChain
	filters  *filter.Chain
}

// NewExtender creates a disabled extender.
func NewExtender(searcher Searcher, chain *ProviderChain, filters *filter.Chain, historySize int) *Extender {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Extender{
		history:     make([]track.Track, 0, historySize),
		historySize: historySize,
		searcher:    searcher,
		chain:       chain,
		filters:     filters,
	}
}

// SetEnabled turns autoplay on or off. Turning it on with a current track
// makes that track the seed.
func (e *Extender) SetEnabled(enabled bool, current *track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.enabled = enabled
	if enabled && current != nil {
		seed := *current
		e.seed = &seed
	}
}

// Enabled reports whether autoplay is on.
func (e *Extender) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// Seed returns the context track.
func (e *Extender) Seed() (track.Track, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.seed == nil {
		return track.Track{}, false
	}
	return *e.seed, true
}

// History returns the injected tracks, oldest first.
func (e *Extender) History() []track.Track {
	e.mu.RLock()
	defer e.mu.RUnlock()
	result := make([]track.Track, len(e.history))
	copy(result, e.history)
	return result
}

// Extend finds one track related to the seed (or to finished when no seed is
// set). On success the track becomes the new seed and is added to history.
func (e *Extender) Extend(ctx context.Context, finished *track.Track) (track.Track, error) {
	e.mu.RLock()
	seed := e.seed
	history := make([]track.Track, len(e.history))
	copy(history, e.history)
	e.mu.RUnlock()

	if seed == nil {
		seed = finished
	}
	if seed == nil {
		return track.Track{}, errors.Wrap(ErrNoTrackFound, "no seed track")
	}

	queries, err := e.chain.Queries(ctx, *seed)
	if err != nil {
		return track.Track{}, errors.Mark(errors.Wrap(err, "failed to build queries"), ErrNoTrackFound)
	}

	fc := filter.Context{Seed: seed, Current: finished, History: history}
	var lastErr error

	for _, q := range queries {
		candidates, err := e.searcher.Search(ctx, q.Query, track.AutoplayRequester())
		if err != nil {
			zlog.Warn().Msgf("autoplay search failed: query=%q provider=%s error=%v", q.Query, q.DisplayName, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		for _, c := range candidates {
			c = c.WithRequester(track.AutoplayRequester())
			result := e.filters.Execute(ctx, c, fc)
			if !result.Accepted {
				zlog.Debug().Msgf("autoplay candidate rejected: uri=%s title=%q filter=%s code=%s", c.URI, c.Title, result.Filter, result.Code)
				continue
			}

			e.remember(c)
			zlog.Info().Msgf("autoplay picked track: uri=%s title=%q query=%q provider=%s", c.URI, c.Title, q.Query, q.DisplayName)
			return c, nil
		}
	}

	if lastErr != nil {
		return track.Track{}, errors.Mark(errors.Wrap(lastErr, "autoplay search failed"), ErrNoTrackFound)
	}
	return track.Track{}, ErrNoTrackFound
}

// remember records t as the new seed and appends it to history,
// evicting the oldest entry past the limit.
func (e *Extender) remember(t track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seed := t
	e.seed = &seed
	e.history = append(e.history, t)
	if len(e.history) > e.historySize {
		e.history = e.history[len(e.history)-e.historySize:]
	}
}
