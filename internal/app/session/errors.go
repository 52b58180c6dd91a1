package session

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19voice/internal/app/playback"
)

// Errors returned to the command front end. Wrapped causes keep these
// markers, so callers test them with errors.Is.
var (
	ErrNotInSession     = errors.New("no active session")
	ErrChannelMismatch  = errors.New("caller is not in the session's voice channel")
	ErrNoResults        = errors.New("search returned no results")
	ErrConnection       = errors.New("transport connection failed")
	ErrTransientBackend = errors.New("backend temporarily unavailable")
	ErrAlreadyInState   = errors.New("already in requested state")
	ErrNothingPlaying   = errors.New("nothing is playing")
)

// Code is the small error enum surfaced to the front end.
type Code string

const (
	CodeOK              Code = "ok"
	CodeNotInSession    Code = "not_in_session"
	CodeChannelMismatch Code = "channel_mismatch"
	CodeNoResults       Code = "no_results"
	CodeConnection      Code = "connection_error"
	CodeTransient       Code = "transient_backend_error"
	CodeAlreadyInState  Code = "already_in_state"
	CodeNothingPlaying  Code = "nothing_playing"
	CodeUnknown         Code = "unknown"
)

// CodeOf maps an error returned by this package to its Code.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrNotInSession):
		return CodeNotInSession
	case errors.Is(err, ErrChannelMismatch):
		return CodeChannelMismatch
	case errors.Is(err, ErrNoResults):
		return CodeNoResults
	case errors.Is(err, ErrTransientBackend):
		return CodeTransient
	case errors.Is(err, ErrConnection):
		return CodeConnection
	case errors.Is(err, ErrAlreadyInState):
		return CodeAlreadyInState
	case errors.Is(err, ErrNothingPlaying):
		return CodeNothingPlaying
	default:
		return CodeUnknown
	}
}

// temporary is implemented by backend errors that may succeed on retry
// (HTTP 429/503, rate limiter refusals).
type temporary interface {
	Temporary() bool
}

// IsTransient reports whether err is a rate limit or timeout from a backend.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t temporary
	if errors.As(err, &t) && t.Temporary() {
		return true
	}
	var to interface{ Timeout() bool }
	return errors.As(err, &to) && to.Timeout()
}

// classify marks a backend failure with ErrTransientBackend or ErrConnection.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return errors.Mark(err, ErrTransientBackend)
	}
	return errors.Mark(err, ErrConnection)
}

// controllerError maps playback controller errors to the front-end taxonomy.
func controllerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playback.ErrAlreadyPaused), errors.Is(err, playback.ErrNotPaused):
		return errors.Mark(err, ErrAlreadyInState)
	case errors.Is(err, playback.ErrNotPlaying):
		return errors.Mark(err, ErrNothingPlaying)
	default:
		return classify(err)
	}
}
