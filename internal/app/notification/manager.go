// Package notification fans session events out to chat announcers and
// admin event streams.
package notification

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Stream receives notifications for one subscriber.
type Stream interface {
	Send(*Notification) error
}

// StreamFunc adapts a function to Stream.
type StreamFunc func(*Notification) error

// Send calls f(n).
func (f StreamFunc) Send(n *Notification) error {
	return f(n)
}

// allGuilds is the subscription key for streams that want every guild.
const allGuilds = ""

// DefaultSendTimeout bounds how long Broadcast waits for one subscriber.
const DefaultSendTimeout = 500 * time.Millisecond

// Manager routes notifications to subscribers by guild. Sequence numbers
// are global and strictly increasing across guilds.
type Manager struct {
	mu      sync.RWMutex
	byGuild map[string]map[string]Stream // guild ID -> subscription ID -> stream
	guildOf map[string]string            // subscription ID -> guild ID

	seq         atomic.Uint64
	sendTimeout time.Duration
}

// NewManager creates a manager with no subscribers.
func NewManager() *Manager {
	return &Manager{
		byGuild:     make(map[string]map[string]Stream),
		guildOf:     make(map[string]string),
		sendTimeout: DefaultSendTimeout,
	}
}

// Subscribe registers stream for every guild and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	return m.SubscribeGuild(allGuilds, stream)
}

// SubscribeGuild registers stream for events of guildID only. An empty
// guildID behaves like Subscribe.
func (m *Manager) SubscribeGuild(guildID string, stream Stream) string {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	streams, ok := m.byGuild[guildID]
	if !ok {
		streams = make(map[string]Stream)
		m.byGuild[guildID] = streams
	}
	streams[id] = stream
	m.guildOf[id] = guildID
	return id
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	guildID, ok := m.guildOf[subscriptionID]
	if !ok {
		return
	}
	delete(m.guildOf, subscriptionID)
	delete(m.byGuild[guildID], subscriptionID)
	if len(m.byGuild[guildID]) == 0 {
		delete(m.byGuild, guildID)
	}
}

// Broadcast stamps n with the next sequence number and delivers it to the
// guild's subscribers and to the all-guild subscribers. Sends run in
// parallel; a subscriber that fails or exceeds the send timeout is logged
// and skipped, never retried.
func (m *Manager) Broadcast(n *Notification) error {
	n.SequenceNo = m.seq.Add(1)

	targets := m.targets(n.GuildID)
	if len(targets) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for id, stream := range targets {
		go func(id string, stream Stream) {
			defer wg.Done()
			m.deliver(id, stream, n)
		}(id, stream)
	}
	wg.Wait()
	return nil
}

// targets snapshots the streams interested in guildID.
func (m *Manager) targets(guildID string) map[string]Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stream, len(m.byGuild[allGuilds])+len(m.byGuild[guildID]))
	for id, s := range m.byGuild[allGuilds] {
		out[id] = s
	}
	if guildID != allGuilds {
		for id, s := range m.byGuild[guildID] {
			out[id] = s
		}
	}
	return out
}

func (m *Manager) deliver(id string, stream Stream, n *Notification) {
	done := make(chan error, 1)
	go func() { done <- stream.Send(n) }()

	timer := time.NewTimer(m.sendTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			zlog.Debug().Msgf("notification send failed: subscription=%s type=%s guild=%s error=%v", id, n.Type, n.GuildID, err)
		}
	case <-timer.C:
		zlog.Debug().Msgf("notification send timed out: subscription=%s type=%s guild=%s", id, n.Type, n.GuildID)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.guildOf)
}

// Close drops every subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byGuild = make(map[string]map[string]Stream)
	m.guildOf = make(map[string]string)
}
