package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/metrics"
)

// Profile copies.
const (
	PrivateCopy = "private"
	PublicCopy  = "public"
)

// MirrorError reports the per-copy outcome of a dual operation. A nil field
// means that copy succeeded.
type MirrorError struct {
	Private error
	Public  error
}

func (e *MirrorError) Error() string {
	switch {
	case e.Private != nil && e.Public != nil:
		return fmt.Sprintf("private profile: %v; public profile: %v", e.Private, e.Public)
	case e.Private != nil:
		return fmt.Sprintf("private profile: %v", e.Private)
	default:
		return fmt.Sprintf("public profile: %v", e.Public)
	}
}

func (e *MirrorError) Unwrap() []error {
	var out []error
	if e.Private != nil {
		out = append(out, e.Private)
	}
	if e.Public != nil {
		out = append(out, e.Public)
	}
	return out
}

// Partial reports whether exactly one copy was written.
func (e *MirrorError) Partial() bool {
	return (e.Private == nil) != (e.Public == nil)
}

// Missing reports whether both copies failed because they do not exist.
func (e *MirrorError) Missing() bool {
	return IsNotFound(e.Private) && IsNotFound(e.Public)
}

// Mirror applies profile operations to both copies. The two calls are
// independent; one failing never rolls the other back.
type Mirror struct {
	store store.Store
}

func NewMirror(s store.Store) *Mirror { return &Mirror{store: s} }

func (m *Mirror) both(ctx context.Context, uid, op string, fn func(ctx context.Context, path string) error) error {
	var (
		wg        sync.WaitGroup
		priv, pub error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		priv = fn(ctx, store.PrivateProfilePath(uid))
		countWrite(PrivateCopy, priv)
	}()
	go func() {
		defer wg.Done()
		pub = fn(ctx, store.PublicProfilePath(uid))
		countWrite(PublicCopy, pub)
	}()
	wg.Wait()
	if priv == nil && pub == nil {
		return nil
	}
	err := &MirrorError{Private: priv, Public: pub}
	if err.Partial() {
		logger.Warnf("profile %s uid=%s left copies inconsistent: %v", op, uid, err)
	}
	return err
}

func countWrite(copyName string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ProfileWrites.WithLabelValues(copyName, result).Inc()
}

// CreateBoth writes the full profile to both copies, replacing what is there.
func (m *Mirror) CreateBoth(ctx context.Context, p *models.UserProfile) error {
	data := p.Fields()
	return m.both(ctx, p.UID, "create", func(ctx context.Context, path string) error {
		return m.store.Set(ctx, path, data, false)
	})
}

// UpdateBoth merges fields into both existing copies. A missing copy reports
// store.ErrNotFound in its slot.
func (m *Mirror) UpdateBoth(ctx context.Context, uid string, fields models.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	return m.both(ctx, uid, "update", func(ctx context.Context, path string) error {
		return m.store.Update(ctx, path, fields)
	})
}

// DeleteBoth removes both profile copies. The credential is not touched.
func (m *Mirror) DeleteBoth(ctx context.Context, uid string) error {
	return m.both(ctx, uid, "delete", func(ctx context.Context, path string) error {
		return m.store.Delete(ctx, path)
	})
}

// ReadPrivate returns the owner copy; store.ErrNotFound when absent.
func (m *Mirror) ReadPrivate(ctx context.Context, uid string) (*models.UserProfile, error) {
	return m.read(ctx, store.PrivateProfilePath(uid), uid)
}

// ReadPublic returns the mirror copy; store.ErrNotFound when absent.
func (m *Mirror) ReadPublic(ctx context.Context, uid string) (*models.UserProfile, error) {
	return m.read(ctx, store.PublicProfilePath(uid), uid)
}

func (m *Mirror) read(ctx context.Context, path, uid string) (*models.UserProfile, error) {
	data, err := m.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	p := models.ProfileFromFields(data)
	if p.UID == "" {
		p.UID = uid
	}
	return p, nil
}

// ListPublic returns every public profile matching filter.
func (m *Mirror) ListPublic(ctx context.Context, filter store.Filter) ([]*models.UserProfile, error) {
	docs, err := m.store.List(ctx, store.PublicProfilesCollection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*models.UserProfile, 0, len(docs))
	for _, d := range docs {
		p := models.ProfileFromFields(d.Data)
		if p.UID == "" {
			p.UID = d.ID
		}
		out = append(out, p)
	}
	return out, nil
}

// IsNotFound reports whether err says the profile copy does not exist.
func IsNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
