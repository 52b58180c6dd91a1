package playback

import (
	"sync"

	"github.com/osa030/19voice/internal/domain/track"
)

// Queue holds the current track and the FIFO of pending tracks.
// Only the session loop mutates a Queue; reads are safe from any goroutine.
type Queue struct {
	mu sync.RWMutex

	current *track.Track
	pending []track.Track
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		pending: make([]track.Track, 0),
	}
}

// Current returns the current track.
func (q *Queue) Current() (track.Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.current == nil {
		return track.Track{}, false
	}
	return *q.current, true
}

// PeekPending returns up to n pending tracks in play order.
// n <= 0 returns all of them.
func (q *Queue) PeekPending(n int) []track.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || n > len(q.pending) {
		n = len(q.pending)
	}
	result := make([]track.Track, n)
	copy(result, q.pending[:n])
	return result
}

// Len returns the number of pending tracks.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// Append adds a track to the end of the pending list and returns its
// 1-based position.
func (q *Queue) Append(t track.Track) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, t)
	return len(q.pending)
}

// Advance moves the head of pending into current. When pending is empty
// current becomes empty and ok is false.
func (q *Queue) Advance() (track.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		q.current = nil
		return track.Track{}, false
	}

	next := q.pending[0]
	q.pending[0] = track.Track{}
	q.pending = q.pending[1:]
	q.current = &next
	return next, true
}

// Clear empties the queue and returns the pending tracks that were dropped.
func (q *Queue) Clear() []track.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := q.pending
	q.pending = make([]track.Track, 0)
	q.current = nil
	return removed
}
