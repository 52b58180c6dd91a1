package connect

import (
	"time"

	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/domain/track"
)

// TrackInfo describes a queued or playing track.
type TrackInfo struct {
	URI           string `json:"uri"`
	Title         string `json:"title"`
	Author        string `json:"author,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	RequesterID   string `json:"requester_id,omitempty"`
	RequesterName string `json:"requester_name,omitempty"`
	Autoplay      bool   `json:"autoplay"`
}

// SessionStatus is the admin view of one guild session.
type SessionStatus struct {
	SessionID    string      `json:"session_id"`
	GuildID      string      `json:"guild_id"`
	ChannelID    string      `json:"channel_id"`
	State        string      `json:"state"`
	CreatedAt    time.Time   `json:"created_at"`
	Current      *TrackInfo  `json:"current,omitempty"`
	Pending      []TrackInfo `json:"pending"`
	PendingTotal int         `json:"pending_total"`
	Volume       int         `json:"volume"`
	Playing      bool        `json:"playing"`
	Paused       bool        `json:"paused"`
	Autoplay     bool        `json:"autoplay"`
}

type ListSessionsRequest struct {
	Limit int `json:"limit"` // Pending tracks per session
}

type ListSessionsResponse struct {
	Sessions []SessionStatus `json:"sessions"`
}

// GuildRequest addresses the session of one guild.
type GuildRequest struct {
	GuildID string `json:"guild_id"`
	Limit   int    `json:"limit,omitempty"`
}

type GetQueueResponse struct {
	Status SessionStatus `json:"status"`
}

// CommandResponse reports the outcome of a session command. Failures the
// caller can act on are reported here rather than as RPC errors.
type CommandResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SkipResponse struct {
	CommandResponse
	Skipped        *TrackInfo `json:"skipped,omitempty"`
	Next           *TrackInfo `json:"next,omitempty"`
	Autoplay       bool       `json:"autoplay"`
	AutoplayFailed bool       `json:"autoplay_failed"`
}

type SetAutoplayRequest struct {
	GuildID string `json:"guild_id"`
	Enabled bool   `json:"enabled"`
}

type SetVolumeRequest struct {
	GuildID string `json:"guild_id"`
	Volume  int    `json:"volume"`
}

type SetVolumeResponse struct {
	CommandResponse
	Volume int `json:"volume"`
}

type WatchEventsRequest struct {
	GuildID string `json:"guild_id,omitempty"` // Empty watches every guild
}

// Event is a session notification streamed to admin clients.
type Event struct {
	SequenceNo uint64     `json:"sequence_no"`
	Type       string     `json:"type"`
	GuildID    string     `json:"guild_id"`
	SessionID  string     `json:"session_id"`
	Track      *TrackInfo `json:"track,omitempty"`
	Message    string     `json:"message,omitempty"`
	Volume     int        `json:"volume,omitempty"`
	State      string     `json:"state,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func toTrackInfo(t track.Track) TrackInfo {
	return TrackInfo{
		URI:           t.URI,
		Title:         t.Title,
		Author:        t.Author,
		DurationMs:    t.Duration.Milliseconds(),
		ThumbnailURL:  t.ThumbnailURL,
		RequesterID:   t.Requester.ID,
		RequesterName: t.Requester.Name,
		Autoplay:      t.Requester.IsAutoplay(),
	}
}

func toTrackInfoPtr(t *track.Track) *TrackInfo {
	if t == nil {
		return nil
	}
	info := toTrackInfo(*t)
	return &info
}

func toSessionStatus(st session.Status) SessionStatus {
	out := SessionStatus{
		SessionID:    st.Info.SessionID,
		GuildID:      st.Info.GuildID,
		ChannelID:    st.Info.ChannelID,
		State:        st.Info.State.String(),
		CreatedAt:    st.Info.CreatedAt,
		Current:      toTrackInfoPtr(st.Current),
		Pending:      make([]TrackInfo, 0, len(st.Pending)),
		PendingTotal: st.PendingTotal,
		Volume:       st.Volume,
		Playing:      st.Playing,
		Paused:       st.Paused,
		Autoplay:     st.Autoplay,
	}
	for _, t := range st.Pending {
		out.Pending = append(out.Pending, toTrackInfo(t))
	}
	return out
}

func toEvent(n *notification.Notification) *Event {
	return &Event{
		SequenceNo: n.SequenceNo,
		Type:       string(n.Type),
		GuildID:    n.GuildID,
		SessionID:  n.SessionID,
		Track:      toTrackInfoPtr(n.Track),
		Message:    n.Message,
		Volume:     n.Volume,
		State:      n.State,
		Timestamp:  n.Timestamp,
	}
}
