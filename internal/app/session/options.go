package session

import (
	"time"

	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/infra/config"
)

// Default timings.
const (
	DefaultIdleTimeout     = time.Hour
	DefaultEchoWindow      = 3 * time.Second
	DefaultCommandTimeout  = 10 * time.Second
	DefaultAutoplayTimeout = 15 * time.Second
)

// Timer is the subset of *time.Timer the idle timer needs.
type Timer interface {
	Stop() bool
}

// Options tunes session timing.
type Options struct {
	IdleTimeout     time.Duration // Grace period before an idle session is destroyed
	EchoWindow      time.Duration // How long a skip expectation stays valid
	CommandTimeout  time.Duration // Bound on transport commands issued by the loop
	AutoplayTimeout time.Duration // Bound on one autoplay extension
	DefaultVolume   int

	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) Timer
}

// OptionsFromConfig derives session options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IdleTimeout:   cfg.IdleTimeout(),
		EchoWindow:    cfg.EchoWindow(),
		DefaultVolume: cfg.Session.DefaultVolume,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.EchoWindow <= 0 {
		o.EchoWindow = DefaultEchoWindow
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.AutoplayTimeout <= 0 {
		o.AutoplayTimeout = DefaultAutoplayTimeout
	}
	if o.DefaultVolume == 0 {
		o.DefaultVolume = playback.DefaultVolume
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.AfterFunc == nil {
		o.AfterFunc = func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		}
	}
	return o
}
