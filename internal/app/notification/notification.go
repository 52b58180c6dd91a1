package notification

import (
	"time"

	"github.com/osa030/19voice/internal/domain/track"
)

// Type represents the kind of notification.
type Type string

const (
	TypeNowPlaying       Type = "NOW_PLAYING"
	TypeTrackEnqueued    Type = "TRACK_ENQUEUED"
	TypeTrackEnded       Type = "TRACK_ENDED"
	TypeTrackSkipped     Type = "TRACK_SKIPPED"
	TypeTrackError       Type = "TRACK_ERROR"
	TypePlaybackFailed   Type = "PLAYBACK_FAILED"
	TypeAutoplayInjected Type = "AUTOPLAY_INJECTED"
	TypeAutoplayFailed   Type = "AUTOPLAY_FAILED"
	TypeQueueEmpty       Type = "QUEUE_EMPTY"
	TypeStateChanged     Type = "STATE_CHANGED"
	TypeVolumeChanged    Type = "VOLUME_CHANGED"
	TypeSessionDestroyed Type = "SESSION_DESTROYED"
)

// Notification is a session event broadcast to subscribers.
type Notification struct {
	SequenceNo    uint64       `json:"sequence_no"`
	Type          Type         `json:"type"`
	GuildID       string       `json:"guild_id"`
	SessionID     string       `json:"session_id"`
	TextChannelID string       `json:"text_channel_id,omitempty"`
	Track         *track.Track `json:"track,omitempty"`
	Message       string       `json:"message,omitempty"`
	Volume        int          `json:"volume,omitempty"`
	State         string       `json:"state,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// New creates a notification stamped with the current time.
func New(typ Type, guildID, sessionID string) *Notification {
	return &Notification{
		Type:      typ,
		GuildID:   guildID,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// WithTrack attaches a copy of t.
func (n *Notification) WithTrack(t track.Track) *Notification {
	n.Track = &t
	return n
}

// WithMessage attaches a free-form message.
func (n *Notification) WithMessage(msg string) *Notification {
	n.Message = msg
	return n
}
