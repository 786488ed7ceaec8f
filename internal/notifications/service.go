package notifications

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
)

var (
	ErrNotFound     = errors.New("notification not found")
	ErrEmptyMessage = errors.New("message is required")
	ErrInvalidType  = errors.New("invalid notification type")
)

// SenderAdmin marks notifications sent through the admin broadcast.
const SenderAdmin = "admin"

// maxBatch bounds the writes of a single broadcast batch.
const maxBatch = 400

func validType(t string) bool {
	switch t {
	case models.NotificationInfo, models.NotificationSuccess, models.NotificationWarning, models.NotificationError:
		return true
	}
	return false
}

func newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0)).String()
}

// Service manages the per-user notification collections.
type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

func (s *Service) normalize(message, typ string) (string, string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", "", ErrEmptyMessage
	}
	if typ == "" {
		typ = models.NotificationInfo
	}
	if !validType(typ) {
		return "", "", ErrInvalidType
	}
	return message, typ, nil
}

// Create adds an unread notification for uid.
func (s *Service) Create(ctx context.Context, uid, message, typ, sender string) (*models.Notification, error) {
	message, typ, err := s.normalize(message, typ)
	if err != nil {
		return nil, err
	}
	now := s.now()
	n := &models.Notification{
		ID:        newID(now),
		Message:   message,
		Type:      typ,
		CreatedAt: models.Timestamp(now),
		Sender:    sender,
	}
	if err := s.store.Set(ctx, store.NotificationPath(uid, n.ID), n.Fields(), false); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func fromDocs(docs []store.Doc) []*models.Notification {
	out := make([]*models.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.NotificationFromFields(d.ID, d.Data))
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// List returns uid's notifications, newest first.
func (s *Service) List(ctx context.Context, uid string) ([]*models.Notification, error) {
	docs, err := s.store.List(ctx, store.NotificationsCollection(uid), nil)
	if err != nil {
		return nil, err
	}
	return fromDocs(docs), nil
}

// UnreadCount returns the number of unread notifications of uid.
func (s *Service) UnreadCount(ctx context.Context, uid string) (int, error) {
	docs, err := s.store.List(ctx, store.NotificationsCollection(uid), store.Filter{"read": false})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Service) MarkRead(ctx context.Context, uid, id string) error {
	err := s.store.Update(ctx, store.NotificationPath(uid, id), models.Fields{"read": true})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// MarkAllRead flags every unread notification of uid as read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, uid string) (int, error) {
	docs, err := s.store.List(ctx, store.NotificationsCollection(uid), store.Filter{"read": false})
	if err != nil {
		return 0, err
	}
	writes := make([]store.Write, 0, len(docs))
	for _, d := range docs {
		writes = append(writes, store.Write{Path: d.Path, Data: models.Fields{"read": true}, Merge: true})
	}
	if err := s.store.Batch(ctx, writes); err != nil {
		return 0, err
	}
	return len(writes), nil
}

// Delete removes one notification. Missing notifications report ErrNotFound.
func (s *Service) Delete(ctx context.Context, uid, id string) error {
	path := store.NotificationPath(uid, id)
	if _, err := s.store.Get(ctx, path); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.store.Delete(ctx, path)
}

// Broadcast sends the same notification to every user with a public profile
// and returns the number of recipients.
func (s *Service) Broadcast(ctx context.Context, message, typ string) (int, error) {
	message, typ, err := s.normalize(message, typ)
	if err != nil {
		return 0, err
	}
	docs, err := s.store.List(ctx, store.PublicProfilesCollection, nil)
	if err != nil {
		return 0, fmt.Errorf("list recipients: %w", err)
	}
	now := s.now()
	n := &models.Notification{Message: message, Type: typ, CreatedAt: models.Timestamp(now), Sender: SenderAdmin}
	data := n.Fields()

	sent := 0
	for start := 0; start < len(docs); start += maxBatch {
		end := start + maxBatch
		if end > len(docs) {
			end = len(docs)
		}
		writes := make([]store.Write, 0, end-start)
		for _, d := range docs[start:end] {
			writes = append(writes, store.Write{Path: store.NotificationPath(d.ID, newID(now)), Data: data})
		}
		if err := s.store.Batch(ctx, writes); err != nil {
			return sent, fmt.Errorf("broadcast batch: %w", err)
		}
		sent += len(writes)
	}
	logger.Infof("notifications: broadcast %q to %d users", message, sent)
	return sent, nil
}

// Watch streams uid's notifications, newest first, now and after every change.
// The channel closes when ctx is done.
func (s *Service) Watch(ctx context.Context, uid string) (<-chan []*models.Notification, error) {
	snaps, err := s.store.Subscribe(ctx, store.NotificationsCollection(uid), nil)
	if err != nil {
		return nil, err
	}
	out := make(chan []*models.Notification, 1)
	go func() {
		defer close(out)
		for snap := range snaps {
			if snap.Err != nil {
				logger.Warnf("notifications: watch uid=%s: %v", uid, snap.Err)
				continue
			}
			select {
			case out <- fromDocs(snap.Docs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
