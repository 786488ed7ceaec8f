package store

import (
	"context"
	"testing"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCRUD(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := PrivateProfilePath("u1")

	_, err := s.Get(ctx, p)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, p, models.Fields{"uid": "u1", "role": "student"}, false))
	got, err := s.Get(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "student", got["role"])

	require.NoError(t, s.Update(ctx, p, models.Fields{"role": "teacher"}))
	got, err = s.Get(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "teacher", got["role"])
	require.Equal(t, "u1", got["uid"])

	require.NoError(t, s.Delete(ctx, p))
	_, err = s.Get(ctx, p)
	require.ErrorIs(t, err, ErrNotFound)

	// deleting again is fine
	require.NoError(t, s.Delete(ctx, p))
}

func TestMemoryStoreMergeAndReplace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := PublicProfilePath("u1")

	require.NoError(t, s.Set(ctx, p, models.Fields{"uid": "u1", "phone": "123"}, true))
	require.NoError(t, s.Set(ctx, p, models.Fields{"role": "admin"}, true))
	got, err := s.Get(ctx, p)
	require.NoError(t, err)
	require.Equal(t, models.Fields{"uid": "u1", "phone": "123", "role": "admin"}, got)

	require.NoError(t, s.Set(ctx, p, models.Fields{"uid": "u1"}, false))
	got, err = s.Get(ctx, p)
	require.NoError(t, err)
	require.Equal(t, models.Fields{"uid": "u1"}, got)
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), PrivateProfilePath("ghost"), models.Fields{"role": "admin"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := PrivateProfilePath("u1")
	fd := []float64{0.1, 0.2}
	require.NoError(t, s.Set(ctx, p, models.Fields{"faceDescriptor": fd}, false))
	fd[0] = 9

	got, err := s.Get(ctx, p)
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2}, got["faceDescriptor"])
	got["faceDescriptor"].([]float64)[1] = 7

	again, _ := s.Get(ctx, p)
	require.Equal(t, []float64{0.1, 0.2}, again["faceDescriptor"])
}

func TestMemoryStoreListFilterAndOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, PublicProfilePath("b"), models.Fields{"role": "student"}, false))
	require.NoError(t, s.Set(ctx, PublicProfilePath("a"), models.Fields{"role": "student"}, false))
	require.NoError(t, s.Set(ctx, PublicProfilePath("c"), models.Fields{"role": "teacher"}, false))
	// a nested document must not show up in the parent listing
	require.NoError(t, s.Set(ctx, PrivateProfilePath("a"), models.Fields{"role": "student"}, false))

	all, err := s.List(ctx, PublicProfilesCollection, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].ID)
	require.Equal(t, "c", all[2].ID)

	students, err := s.List(ctx, PublicProfilesCollection, Filter{"role": "student"})
	require.NoError(t, err)
	require.Len(t, students, 2)
}

func TestMemoryStoreInvalidPaths(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.Get(ctx, "users/u1/profile")
	require.ErrorIs(t, err, ErrInvalidPath)
	require.ErrorIs(t, s.Set(ctx, "users//x/y", models.Fields{}, false), ErrInvalidPath)
	_, err = s.List(ctx, "users/u1", nil)
	require.ErrorIs(t, err, ErrInvalidPath)
	require.ErrorIs(t, s.Batch(ctx, []Write{{Path: "bad"}}), ErrInvalidPath)
}

func TestMemoryStoreBatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	writes := []Write{
		{Path: NotificationPath("u1", "n1"), Data: models.Fields{"message": "hi"}},
		{Path: NotificationPath("u2", "n1"), Data: models.Fields{"message": "hi"}},
	}
	require.NoError(t, s.Batch(ctx, writes))

	l1, _ := s.List(ctx, NotificationsCollection("u1"), nil)
	l2, _ := s.List(ctx, NotificationsCollection("u2"), nil)
	require.Len(t, l1, 1)
	require.Len(t, l2, 1)
}

func TestMemoryStoreSubscribe(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	coll := NotificationsCollection("u1")
	require.NoError(t, s.Set(ctx, NotificationPath("u1", "n1"), models.Fields{"read": false}, false))

	ch, err := s.Subscribe(ctx, coll, nil)
	require.NoError(t, err)

	first := <-ch
	require.NoError(t, first.Err)
	require.Len(t, first.Docs, 1)

	require.NoError(t, s.Set(context.Background(), NotificationPath("u1", "n2"), models.Fields{"read": false}, false))
	select {
	case snap := <-ch:
		require.Len(t, snap.Docs, 2)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot after write")
	}

	// writes elsewhere do not wake the subscriber
	require.NoError(t, s.Set(context.Background(), NotificationPath("u2", "n1"), models.Fields{}, false))
	select {
	case <-ch:
		t.Fatal("unexpected snapshot for another collection")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestSplitPath(t *testing.T) {
	coll, id, err := SplitPath("/users/u1/profile/userProfile")
	require.NoError(t, err)
	require.Equal(t, "users/u1/profile", coll)
	require.Equal(t, "userProfile", id)

	_, _, err = SplitPath("users")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemoryStoreCreateIfAbsent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := PublicProfilePath("u1")

	require.NoError(t, s.Create(ctx, p, models.Fields{"role": "teacher"}))
	err := s.Create(ctx, p, models.Fields{"role": "student"})
	require.ErrorIs(t, err, ErrExists)

	got, err := s.Get(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "teacher", got["role"])

	require.ErrorIs(t, s.Create(ctx, "bad", models.Fields{}), ErrInvalidPath)
}
