package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListNewestFirst(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return base }
	first, err := svc.Create(ctx, "u1", "first", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationInfo, first.Type)

	svc.now = func() time.Time { return base.Add(time.Minute) }
	_, err = svc.Create(ctx, "u1", "second", models.NotificationSuccess, "")
	require.NoError(t, err)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)
	assert.Equal(t, "first", list[1].Message)
	assert.False(t, list[0].Read)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	_, err := svc.Create(context.Background(), "u1", "  ", "", "")
	require.ErrorIs(t, err, ErrEmptyMessage)
	_, err = svc.Create(context.Background(), "u1", "hi", "urgent", "")
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestMarkReadAndDelete(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	ctx := context.Background()
	n1, err := svc.Create(ctx, "u1", "one", "", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", "two", "", "")
	require.NoError(t, err)

	unread, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, svc.MarkRead(ctx, "u1", n1.ID))
	unread, _ = svc.UnreadCount(ctx, "u1")
	assert.Equal(t, 1, unread)
	require.ErrorIs(t, svc.MarkRead(ctx, "u1", "missing"), ErrNotFound)

	changed, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	unread, _ = svc.UnreadCount(ctx, "u1")
	assert.Zero(t, unread)

	require.NoError(t, svc.Delete(ctx, "u1", n1.ID))
	require.ErrorIs(t, svc.Delete(ctx, "u1", n1.ID), ErrNotFound)
	list, _ := svc.List(ctx, "u1")
	assert.Len(t, list, 1)
}

func TestBroadcast(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewService(s)
	ctx := context.Background()
	for _, uid := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, store.PublicProfilePath(uid), models.Fields{"uid": uid}, false))
	}

	sent, err := svc.Broadcast(ctx, "Campus closed", models.NotificationWarning)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	for _, uid := range []string{"a", "b", "c"} {
		list, err := svc.List(ctx, uid)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Campus closed", list[0].Message)
		assert.Equal(t, SenderAdmin, list[0].Sender)
		assert.False(t, list[0].Read)
	}

	_, err = svc.Broadcast(ctx, "", "")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestWatch(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Watch(ctx, "u1")
	require.NoError(t, err)
	first := <-ch
	assert.Empty(t, first)

	_, err = svc.Create(context.Background(), "u1", "hello", "", "")
	require.NoError(t, err)
	select {
	case list := <-ch:
		require.Len(t, list, 1)
		assert.Equal(t, "hello", list[0].Message)
	case <-time.After(time.Second):
		t.Fatal("no update after create")
	}
}

func TestManagerServe(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	mgr := NewManager(svc)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mgr.Serve(r.Context(), "u1", conn)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var frame Frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Empty(t, frame.Notifications)
	assert.Equal(t, 1, mgr.Count("u1"))

	_, err = svc.Create(context.Background(), "u1", "ping", "", "")
	require.NoError(t, err)
	require.NoError(t, conn.ReadJSON(&frame))
	require.Len(t, frame.Notifications, 1)
	assert.Equal(t, 1, frame.Unread)
}
