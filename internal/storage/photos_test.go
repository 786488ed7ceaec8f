package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoKey(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	key, err := PhotoKey("u1", "image/PNG", now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "profiles/u1/photo-"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.True(t, OwnsKey("u1", key))
	assert.False(t, OwnsKey("u2", key))

	other, err := PhotoKey("u1", "image/jpeg", now)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, err = PhotoKey("u1", "application/pdf", now)
	require.ErrorIs(t, err, ErrNotAnImage)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage("http://localhost:5001/files/")
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.URL(ctx, "missing", time.Minute)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "profiles/u1/a.png", strings.NewReader("png-bytes"), 9, "image/png"))
	rc, err := s.Get(ctx, "profiles/u1/a.png")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "png-bytes", string(data))

	u, err := s.URL(ctx, "profiles/u1/a.png", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:5001/files/profiles/u1/a.png?expires="))

	require.NoError(t, s.Delete(ctx, "profiles/u1/a.png"))
	_, err = s.Get(ctx, "profiles/u1/a.png")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorageRejectsLargeObjects(t *testing.T) {
	s := NewMemoryStorage("")
	big := strings.NewReader(strings.Repeat("x", int(MaxPhotoSize)+1))
	require.ErrorIs(t, s.Put(context.Background(), "k", big, -1, "image/png"), ErrImageTooBig)
}

func TestNewMinIOStorageDisabled(t *testing.T) {
	_, err := NewMinIOStorage(config.MinIOConfig{})
	require.ErrorIs(t, err, ErrDisabled)
}
