package lavalink

import (
	"encoding/json"
	"time"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/domain/track"
)

// Load types returned by /v4/loadtracks.
const (
	LoadTypeTrack    = "track"
	LoadTypePlaylist = "playlist"
	LoadTypeSearch   = "search"
	LoadTypeEmpty    = "empty"
	LoadTypeError    = "error"
)

// TrackInfo contains information about a track
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	ISRC       string `json:"isrc"`
	SourceName string `json:"sourceName"`
}

// Track represents a playable track
type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// ToTrack converts a Lavalink track to the domain track.
func (t Track) ToTrack() track.Track {
	uri := t.Info.URI
	if uri == "" {
		uri = t.Info.Identifier
	}
	var d time.Duration
	if !t.Info.IsStream {
		d = time.Duration(t.Info.Length) * time.Millisecond
	}
	return track.Track{
		URI:          uri,
		Title:        t.Info.Title,
		Author:       t.Info.Author,
		Duration:     d,
		ThumbnailURL: t.Info.ArtworkURL,
		Handle:       t.Encoded,
	}
}

// Exception is a Lavalink exception payload.
type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type loadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []Track `json:"tracks"`
}

type playerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// message is any frame received on the node websocket.
type message struct {
	Op string `json:"op"`

	// ready
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`

	// playerUpdate, event
	GuildID     string       `json:"guildId"`
	State       *playerState `json:"state"`
	Type        string       `json:"type"`
	Track       *Track       `json:"track"`
	Reason      string       `json:"reason"`
	Exception   *Exception   `json:"exception"`
	ThresholdMs int64        `json:"thresholdMs"`
	Code        int          `json:"code"`
	ByRemote    bool         `json:"byRemote"`
}

type voiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
	ChannelID string `json:"channelId,omitempty"`
}

type updateTrack struct {
	Encoded    json.RawMessage `json:"encoded,omitempty"` // "null" stops playback
	Identifier string          `json:"identifier,omitempty"`
}

// playerUpdate is the body of PATCH /v4/sessions/{sessionId}/players/{guildId}.
type playerUpdate struct {
	Track  *updateTrack `json:"track,omitempty"`
	Paused *bool        `json:"paused,omitempty"`
	Volume *int         `json:"volume,omitempty"`
	Voice  *voiceState  `json:"voice,omitempty"`
}

func endReason(reason string) playback.EndReason {
	switch reason {
	case "finished":
		return playback.EndFinished
	case "loadFailed":
		return playback.EndLoadFailed
	case "stopped":
		return playback.EndStopped
	case "replaced":
		return playback.EndReplaced
	default:
		return playback.EndCleanup
	}
}
