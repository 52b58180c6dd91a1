package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19voice/internal/domain/track"
)

// RestError is a non-2xx response from the Lavalink REST API.
type RestError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (e *RestError) Error() string {
	return fmt.Sprintf("lavalink %s: %d %s", e.Path, e.Status, e.Message)
}

// Temporary reports whether the request may succeed when retried later.
func (e *RestError) Temporary() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// LoadError is a track loading failure reported by Lavalink.
type LoadError struct {
	Exception
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("lavalink load failed (%s): %s", e.Severity, e.Message)
}

type restClient struct {
	baseURL  string
	password string
	http     *http.Client
}

func (c *restClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "lavalink %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		restErr := &RestError{Status: resp.StatusCode, Path: path}
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			restErr.Message = payload.Message
			if restErr.Message == "" {
				restErr.Message = payload.Error
			}
		}
		if restErr.Message == "" {
			restErr.Message = http.StatusText(resp.StatusCode)
		}
		return restErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// LoadTracks resolves an identifier (URL or "ytsearch:..." query).
// Search results are returned best first; an empty slice means no match.
func (n *Node) LoadTracks(ctx context.Context, identifier string) ([]track.Track, error) {
	var res loadResult
	if err := n.rest.do(ctx, http.MethodGet, "/v4/loadtracks", url.Values{"identifier": {identifier}}, nil, &res); err != nil {
		return nil, err
	}

	var raw []Track
	switch res.LoadType {
	case LoadTypeTrack:
		var t Track
		if err := json.Unmarshal(res.Data, &t); err != nil {
			return nil, errors.Wrap(err, "failed to decode track")
		}
		raw = []Track{t}
	case LoadTypeSearch:
		if err := json.Unmarshal(res.Data, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to decode search result")
		}
	case LoadTypePlaylist:
		var pl playlistData
		if err := json.Unmarshal(res.Data, &pl); err != nil {
			return nil, errors.Wrap(err, "failed to decode playlist")
		}
		raw = pl.Tracks
	case LoadTypeEmpty:
		return nil, nil
	case LoadTypeError:
		var ex Exception
		if err := json.Unmarshal(res.Data, &ex); err != nil {
			return nil, errors.Wrap(err, "failed to decode load exception")
		}
		return nil, &LoadError{Exception: ex}
	default:
		return nil, errors.Newf("unknown load type: %s", res.LoadType)
	}

	tracks := make([]track.Track, 0, len(raw))
	for _, t := range raw {
		tracks = append(tracks, t.ToTrack())
	}
	return tracks, nil
}

func (n *Node) updatePlayer(ctx context.Context, guildID string, update playerUpdate) error {
	sessionID := n.SessionID()
	if sessionID == "" {
		return ErrNodeNotReady
	}
	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID)
	return n.rest.do(ctx, http.MethodPatch, path, url.Values{"noReplace": {"false"}}, update, nil)
}

func (n *Node) destroyPlayer(ctx context.Context, guildID string) error {
	sessionID := n.SessionID()
	if sessionID == "" {
		return ErrNodeNotReady
	}
	path := fmt.Sprintf("/v4/sessions/%s/players/%s", sessionID, guildID)
	err := n.rest.do(ctx, http.MethodDelete, path, nil, nil, nil)
	var restErr *RestError
	if errors.As(err, &restErr) && restErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}
