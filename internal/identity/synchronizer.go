package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/metrics"
)

// Sync outcomes.
const (
	OutcomeSignedOut = "signed_out"
	OutcomeNoop      = "noop"
	OutcomeRepaired  = "repaired"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
)

// ProfileReadError means a copy could not be read, so its existence is unknown.
type ProfileReadError struct {
	Copy string
	Err  error
}

func (e *ProfileReadError) Error() string {
	return fmt.Sprintf("read %s profile: %v", e.Copy, e.Err)
}

func (e *ProfileReadError) Unwrap() error { return e.Err }

// ProfileWriteError means a repair write to one copy failed.
type ProfileWriteError struct {
	Copy string
	Err  error
}

func (e *ProfileWriteError) Error() string {
	return fmt.Sprintf("write %s profile: %v", e.Copy, e.Err)
}

func (e *ProfileWriteError) Unwrap() error { return e.Err }

// Result describes one synchronization run.
type Result struct {
	UID     string
	Outcome string
	// Profile is the best known profile after the run; nil when nothing could be read or built.
	Profile *models.UserProfile
	// Wrote lists the copies a repair write succeeded on.
	Wrote []string
}

// Role returns the resolved role of the profile, or nil.
func (r *Result) Role() *roles.Role {
	if r == nil || r.Profile == nil {
		return nil
	}
	role, ok := r.Profile.ResolvedRole()
	if !ok {
		return nil
	}
	return &role
}

// Synchronizer makes sure every authenticated identity has both profile copies.
type Synchronizer struct {
	store store.Store
	now   func() time.Time
}

func NewSynchronizer(s store.Store) *Synchronizer {
	return &Synchronizer{store: s, now: time.Now}
}

type readResult struct {
	fields models.Fields
	err    error
}

func (r readResult) exists() bool  { return r.err == nil }
func (r readResult) missing() bool { return errors.Is(r.err, store.ErrNotFound) }

// DefaultProfile is the record created for an identity without profile
// documents. createdAt is the credential's creation time when known, else now.
func DefaultProfile(id *auth.Identity, now time.Time) *models.UserProfile {
	if !id.CreatedAt.IsZero() {
		now = id.CreatedAt
	}
	name := id.DisplayName
	if name == "" {
		short := id.UID
		if len(short) > 6 {
			short = short[:6]
		}
		name = "User-" + short
	}
	return &models.UserProfile{
		UID:         id.UID,
		Email:       id.Email,
		FullName:    name,
		DisplayName: name,
		Role:        string(roles.Student),
		CreatedAt:   models.Timestamp(now),
	}
}

// buildRecord overlays the existing copies onto the defaults for id.
func buildRecord(id *auth.Identity, now time.Time, copies ...readResult) models.Fields {
	record := DefaultProfile(id, now).Fields()
	for _, existing := range copies {
		if existing.exists() {
			for k, v := range existing.fields {
				record[k] = v
			}
		}
	}
	return record
}

// Sync checks both copies for id and creates whichever is missing. A nil id
// is the signed-out state and touches nothing. The returned error joins every
// read and write failure; the Result is valid even when err != nil.
func (s *Synchronizer) Sync(ctx context.Context, id *auth.Identity) (*Result, error) {
	if id == nil {
		metrics.ProfileSync.WithLabelValues(OutcomeSignedOut).Inc()
		return &Result{Outcome: OutcomeSignedOut}, nil
	}
	res := &Result{UID: id.UID}

	var (
		wg        sync.WaitGroup
		priv, pub readResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		priv.fields, priv.err = s.store.Get(ctx, store.PrivateProfilePath(id.UID))
	}()
	go func() {
		defer wg.Done()
		pub.fields, pub.err = s.store.Get(ctx, store.PublicProfilePath(id.UID))
	}()
	wg.Wait()

	if priv.exists() && pub.exists() {
		res.Outcome = OutcomeNoop
		res.Profile = models.ProfileFromFields(priv.fields)
		metrics.ProfileSync.WithLabelValues(res.Outcome).Inc()
		return res, nil
	}

	var readErrs []error
	if !priv.exists() && !priv.missing() {
		readErrs = append(readErrs, &ProfileReadError{Copy: PrivateCopy, Err: priv.err})
	}
	if !pub.exists() && !pub.missing() {
		readErrs = append(readErrs, &ProfileReadError{Copy: PublicCopy, Err: pub.err})
	}
	if len(readErrs) > 0 {
		// existence of a copy is unknown: writing now could diverge the mirrors
		err := errors.Join(readErrs...)
		logger.Errorf("profile sync uid=%s: %v", id.UID, err)
		res.Outcome = OutcomeFailed
		if priv.exists() {
			res.Profile = models.ProfileFromFields(priv.fields)
		} else if pub.exists() {
			res.Profile = models.ProfileFromFields(pub.fields)
		}
		metrics.ProfileSync.WithLabelValues(res.Outcome).Inc()
		return res, err
	}

	record := buildRecord(id, s.now(), priv, pub)

	// The private copy is created first and only if absent. A concurrent sync
	// that got there first owns the record and the public copy mirrors it.
	var writeErrs []error
	writePublic := pub.missing()
	if priv.missing() {
		err := s.store.Create(ctx, store.PrivateProfilePath(id.UID), record)
		switch {
		case err == nil:
			countWrite(PrivateCopy, nil)
			res.Wrote = append(res.Wrote, PrivateCopy)
		case errors.Is(err, store.ErrExists):
			won := readResult{}
			won.fields, won.err = s.store.Get(ctx, store.PrivateProfilePath(id.UID))
			if won.err != nil {
				writeErrs = append(writeErrs, &ProfileReadError{Copy: PrivateCopy, Err: won.err})
				writePublic = false
				break
			}
			record = buildRecord(id, s.now(), won, pub)
		default:
			countWrite(PrivateCopy, err)
			writeErrs = append(writeErrs, &ProfileWriteError{Copy: PrivateCopy, Err: err})
		}
	}
	if writePublic {
		err := s.store.Create(ctx, store.PublicProfilePath(id.UID), record)
		switch {
		case err == nil:
			countWrite(PublicCopy, nil)
			res.Wrote = append(res.Wrote, PublicCopy)
		case errors.Is(err, store.ErrExists):
		default:
			countWrite(PublicCopy, err)
			writeErrs = append(writeErrs, &ProfileWriteError{Copy: PublicCopy, Err: err})
		}
	}
	res.Profile = models.ProfileFromFields(record)

	switch {
	case len(writeErrs) == 0 && len(res.Wrote) == 0:
		res.Outcome = OutcomeNoop
	case len(writeErrs) == 0:
		res.Outcome = OutcomeRepaired
		logger.Infof("profile sync uid=%s: created %v", id.UID, res.Wrote)
	case len(res.Wrote) > 0:
		res.Outcome = OutcomePartial
	default:
		res.Outcome = OutcomeFailed
	}
	metrics.ProfileSync.WithLabelValues(res.Outcome).Inc()
	if len(writeErrs) > 0 {
		err := errors.Join(writeErrs...)
		logger.Errorf("profile sync uid=%s: %v", id.UID, err)
		return res, err
	}
	return res, nil
}
