// Package registry provides the guild-keyed session registry.
package registry

import (
	"sync"
)

// Registry maps guild IDs to live sessions with thread-safe access.
// The lock is held only for map access.
type Registry[S comparable] struct {
	mu       sync.RWMutex
	sessions map[string]S
}

// New creates an empty registry.
func New[S comparable]() *Registry[S] {
	return &Registry[S]{
		sessions: make(map[string]S),
	}
}

// Get retrieves the session for a guild.
func (r *Registry[S]) Get(guildID string) (S, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Put stores s for the guild, replacing any previous entry.
func (r *Registry[S]) Put(guildID string, s S) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[guildID] = s
}

// CompareAndDelete removes the guild entry only if it is still s.
// A destroyed session never evicts its replacement.
func (r *Registry[S]) CompareAndDelete(guildID string, s S) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[guildID]
	if !ok || cur != s {
		return false
	}
	delete(r.sessions, guildID)
	return true
}

// All returns all sessions.
func (r *Registry[S]) All() []S {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]S, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	return result
}

// Count returns the number of sessions.
func (r *Registry[S]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
