package state

import (
	"sync"
	"time"

	"github.com/osa030/19voice/internal/domain/voice"
)

// Manager manages session state with thread-safe access.
// The session loop is the only writer; admin and status readers may call
// the getters from any goroutine.
type Manager struct {
	mu sync.RWMutex

	// Session identity
	sessionID string
	createdAt time.Time
	channel   voice.ChannelRef

	// Coordinator
	state  State
	intent Intent
}

// Info is a point-in-time snapshot of a session's state.
type Info struct {
	SessionID string
	GuildID   string
	ChannelID string
	State     State
	Intent    Intent
	CreatedAt time.Time
}

// New creates a new state manager in the Idle state.
func New(sessionID string, channel voice.ChannelRef) *Manager {
	return &Manager{
		sessionID: sessionID,
		createdAt: time.Now(),
		channel:   channel,
		state:     StateIdle,
		intent:    IntentNone,
	}
}

// GetSessionID returns the session ID.
func (m *Manager) GetSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// GetState returns the coordinator state.
func (m *Manager) GetState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetState sets the coordinator state and returns the previous one.
// A destroyed session never leaves StateDestroyed.
func (m *Manager) SetState(s State) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state
	if prev == StateDestroyed {
		return prev
	}
	m.state = s
	if !s.IsAdvancing() {
		m.intent = IntentNone
	}
	return prev
}

// IsDestroyed returns true once the session reached its terminal state.
func (m *Manager) IsDestroyed() bool {
	return m.GetState() == StateDestroyed
}

// GetIntent returns the in-flight advance intent.
func (m *Manager) GetIntent() Intent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.intent
}

// Begin moves into an advancing state with the given intent.
func (m *Manager) Begin(s State, i Intent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDestroyed {
		return
	}
	m.state = s
	m.intent = i
}

// GetChannel returns the bound voice channel.
func (m *Manager) GetChannel() voice.ChannelRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channel
}

// SetChannel records a move to another voice channel. The text channel is
// kept when the new reference carries none.
func (m *Manager) SetChannel(ref voice.ChannelRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref.TextChannelID == "" {
		ref.TextChannelID = m.channel.TextChannelID
	}
	m.channel = ref
}

// BuildInfo creates a snapshot of the session state.
func (m *Manager) BuildInfo() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{
		SessionID: m.sessionID,
		GuildID:   m.channel.GuildID,
		ChannelID: m.channel.ChannelID,
		State:     m.state,
		Intent:    m.intent,
		CreatedAt: m.createdAt,
	}
}
