// Package store persists per-guild settings in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19voice/internal/domain/guild"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Store is a SQLite-backed guild settings store.
type Store struct {
	db            *sql.DB
	defaultVolume int
	now           func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
// defaultVolume fills the volume of guilds that only saved autoplay.
func Open(path string, defaultVolume int) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	zlog.Info().Msgf("guild settings store opened: path=%s", path)
	return &Store{db: db, defaultVolume: defaultVolume, now: time.Now}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(err, "sqlite driver")
	}

	d, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "iofs source")
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return errors.Wrap(err, "migrate init")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}
	return nil
}

// Get returns the stored settings. ok is false for guilds never saved.
func (s *Store) Get(ctx context.Context, guildID string) (guild.Settings, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT guild_id, volume, autoplay, updated_at FROM guild_settings WHERE guild_id = ?`, guildID)

	var settings guild.Settings
	var autoplay int
	var updated int64
	if err := row.Scan(&settings.GuildID, &settings.Volume, &autoplay, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return guild.Settings{}, false, nil
		}
		return guild.Settings{}, false, errors.Wrapf(err, "failed to load settings for guild %s", guildID)
	}
	settings.Autoplay = autoplay != 0
	settings.UpdatedAt = time.Unix(updated, 0)
	return settings, true, nil
}

// SaveVolume stores the guild's volume.
func (s *Store) SaveVolume(ctx context.Context, guildID string, volume int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings(guild_id, volume, autoplay, updated_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(guild_id) DO UPDATE SET volume = excluded.volume, updated_at = excluded.updated_at`,
		guildID, volume, s.now().Unix())
	return errors.Wrapf(err, "failed to save volume for guild %s", guildID)
}

// SaveAutoplay stores the guild's autoplay preference.
func (s *Store) SaveAutoplay(ctx context.Context, guildID string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings(guild_id, volume, autoplay, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET autoplay = excluded.autoplay, updated_at = excluded.updated_at`,
		guildID, s.defaultVolume, boolToInt(enabled), s.now().Unix())
	return errors.Wrapf(err, "failed to save autoplay for guild %s", guildID)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
