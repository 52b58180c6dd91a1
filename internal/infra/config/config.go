// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Discord  DiscordConfig           `yaml:"discord"`
	Lavalink LavalinkConfig          `yaml:"lavalink"`
	Session  SessionConfig           `yaml:"session"`
	Autoplay AutoplayConfig          `yaml:"autoplay"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Search   SearchConfig            `yaml:"search"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	Admin    AdminConfig             `yaml:"admin"`
	Store    StoreConfig             `yaml:"store"`
	Messages MessagesConfig          `yaml:"messages"`
}

// ServerConfig represents the admin RPC server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" env:"SERVER_ADDR" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// DiscordConfig represents the Discord bot configuration.
type DiscordConfig struct {
	Token         string   `yaml:"token" env:"DISCORD_TOKEN" validate:"required"`
	ApplicationID string   `yaml:"application_id" env:"DISCORD_APPLICATION_ID"`
	GuildIDs      []string `yaml:"guild_ids" env:"DISCORD_GUILD_IDS"` // Empty registers commands globally
}

// LavalinkConfig represents the Lavalink node configuration.
type LavalinkConfig struct {
	URL              string `yaml:"url" env:"LAVALINK_URL" default:"http://localhost:2333" validate:"required,url"`
	Password         string `yaml:"password" env:"LAVALINK_PASSWORD" validate:"required"`
	ClientName       string `yaml:"client_name" default:"19voice"`
	VolumeScale      string `yaml:"volume_scale" default:"fine" validate:"oneof=half fine"`
	VoiceTimeoutMs   int    `yaml:"voice_timeout_ms" default:"10000" validate:"gte=1000,lte=60000"`
	ReconnectDelayMs int    `yaml:"reconnect_delay_ms" default:"5000" validate:"gte=100"`
}

// SessionConfig represents per-voice-session behavior.
type SessionConfig struct {
	IdleTimeoutSec int `yaml:"idle_timeout_sec" default:"3600" validate:"gte=1"`
	EchoWindowMs   int `yaml:"echo_window_ms" default:"3000" validate:"gte=100,lte=60000"`
	DefaultVolume  int `yaml:"default_volume" default:"100" validate:"gte=0,lte=200"`
}

// AutoplayConfig represents autoplay configuration.
type AutoplayConfig struct {
	HistorySize int              `yaml:"history_size" default:"10" validate:"gte=1,lte=100"`
	Providers   []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single autoplay query provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SearchConfig represents search resolver configuration.
type SearchConfig struct {
	Prefix    string  `yaml:"prefix" default:"ytsearch:"`
	RateLimit float64 `yaml:"rate_limit" default:"5" validate:"gt=0"` // Searches per second
	Burst     int     `yaml:"burst" default:"5" validate:"gte=1"`
}

// SpotifyConfig represents Spotify API configuration.
// Spotify link resolution is disabled unless both credentials are set.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" env:"ADMIN_TOKEN" validate:"required"`
}

// StoreConfig represents the guild settings store configuration.
type StoreConfig struct {
	Path string `yaml:"path" env:"STORE_PATH"` // Empty disables persistence
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	NotInSession    string `yaml:"not_in_session" default:"I'm not playing anything in this server."`
	ChannelMismatch string `yaml:"channel_mismatch" default:"You need to be in my voice channel to do that."`
	NotInVoice      string `yaml:"not_in_voice" default:"Join a voice channel first."`
	NoResults       string `yaml:"no_results" default:"No results found."`
	ConnectionError string `yaml:"connection_error" default:"Could not connect to the voice channel. Please try again."`
	TooManyRequests string `yaml:"too_many_requests" default:"Too many requests. Please wait a moment and try again."`
	Timeout         string `yaml:"timeout" default:"Connection timed out. Please try again later."`
	AlreadyPaused   string `yaml:"already_paused" default:"Playback is already paused."`
	NotPaused       string `yaml:"not_paused" default:"Playback is not paused."`
	NothingPlaying  string `yaml:"nothing_playing" default:"No song is currently playing."`
	DefaultError    string `yaml:"default_error" default:"Something went wrong."`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying environment
// overrides, defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.Wrap(err, "failed to parse environment")
	}

	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Autoplay.Providers {
			if c.Autoplay.Providers[i].Type == "lastfm" {
				if c.Autoplay.Providers[i].Settings == nil {
					c.Autoplay.Providers[i].Settings = make(map[string]any)
				}
				c.Autoplay.Providers[i].Settings["api_key"] = v
				break
			}
		}
	}
	return nil
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "not_in_session":
		return c.Messages.NotInSession
	case "channel_mismatch":
		return c.Messages.ChannelMismatch
	case "not_in_voice":
		return c.Messages.NotInVoice
	case "no_results":
		return c.Messages.NoResults
	case "connection_error":
		return c.Messages.ConnectionError
	case "too_many_requests", "transient_backend_error":
		return c.Messages.TooManyRequests
	case "timeout":
		return c.Messages.Timeout
	case "already_paused":
		return c.Messages.AlreadyPaused
	case "not_paused":
		return c.Messages.NotPaused
	case "nothing_playing":
		return c.Messages.NothingPlaying
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		return errors.New("spotify client_id and client_secret must be set together")
	}

	return nil
}

// SpotifyEnabled reports whether Spotify link resolution is configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// IdleTimeout returns the idle grace period before an empty session is destroyed.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSec) * time.Second
}

// EchoWindow returns how long a skip expectation stays valid.
func (c *Config) EchoWindow() time.Duration {
	return time.Duration(c.Session.EchoWindowMs) * time.Millisecond
}

// VoiceTimeout returns how long to wait for Discord voice credentials.
func (c *Config) VoiceTimeout() time.Duration {
	return time.Duration(c.Lavalink.VoiceTimeoutMs) * time.Millisecond
}

// ReconnectDelay returns the delay between Lavalink websocket reconnects.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Lavalink.ReconnectDelayMs) * time.Millisecond
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
