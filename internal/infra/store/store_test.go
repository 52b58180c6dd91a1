package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, 100)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "settings.db"))

	_, ok, err := s.Get(context.Background(), "guild-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "settings.db"))

	require.NoError(t, s.SaveAutoplay(ctx, "guild-1", true))
	got, ok, err := s.Get(ctx, "guild-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, got.Volume)
	assert.True(t, got.Autoplay)
	assert.Equal(t, int64(1700000000), got.UpdatedAt.Unix())

	require.NoError(t, s.SaveVolume(ctx, "guild-1", 150))
	got, _, err = s.Get(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, 150, got.Volume)
	assert.True(t, got.Autoplay, "saving volume keeps autoplay")

	require.NoError(t, s.SaveAutoplay(ctx, "guild-1", false))
	got, _, err = s.Get(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, 150, got.Volume, "saving autoplay keeps volume")
	assert.False(t, got.Autoplay)

	_, ok, err = s.Get(ctx, "guild-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(path, 100)
	require.NoError(t, err)
	require.NoError(t, s.SaveVolume(ctx, "guild-1", 40))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)
	got, ok, err := reopened.Get(ctx, "guild-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 40, got.Volume)
}
