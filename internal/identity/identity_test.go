package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyStore counts writes and can fail reads or writes for paths with a given prefix.
type spyStore struct {
	store.Store
	mu        sync.Mutex
	writes    int
	failWrite string
	failRead  string
}

var errBoom = errors.New("store unavailable")

func (s *spyStore) Get(ctx context.Context, path string) (models.Fields, error) {
	if s.failRead != "" && strings.HasPrefix(path, s.failRead) {
		return nil, errBoom
	}
	return s.Store.Get(ctx, path)
}

func (s *spyStore) Set(ctx context.Context, path string, data models.Fields, merge bool) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	if s.failWrite != "" && strings.HasPrefix(path, s.failWrite) {
		return errBoom
	}
	return s.Store.Set(ctx, path, data, merge)
}

func (s *spyStore) Create(ctx context.Context, path string, data models.Fields) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	if s.failWrite != "" && strings.HasPrefix(path, s.failWrite) {
		return errBoom
	}
	return s.Store.Create(ctx, path, data)
}

func (s *spyStore) Update(ctx context.Context, path string, data models.Fields) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.Store.Update(ctx, path, data)
}

func (s *spyStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func newSpy() *spyStore { return &spyStore{Store: store.NewMemoryStore()} }

func testIdentity() *auth.Identity {
	return &auth.Identity{UID: "abcdef123456", Email: "jane@example.com", DisplayName: "Jane Doe"}
}

func TestSync_SignedOutWritesNothing(t *testing.T) {
	spy := newSpy()
	res, err := NewSynchronizer(spy).Sync(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSignedOut, res.Outcome)
	assert.Zero(t, spy.writeCount())
}

func TestSync_CreatesBothCopies(t *testing.T) {
	spy := newSpy()
	ctx := context.Background()
	res, err := NewSynchronizer(spy).Sync(ctx, testIdentity())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRepaired, res.Outcome)
	assert.ElementsMatch(t, []string{PrivateCopy, PublicCopy}, res.Wrote)

	priv, err := spy.Get(ctx, store.PrivateProfilePath("abcdef123456"))
	require.NoError(t, err)
	pub, err := spy.Get(ctx, store.PublicProfilePath("abcdef123456"))
	require.NoError(t, err)
	assert.Equal(t, priv, pub)
	assert.Equal(t, "student", priv["role"])
	assert.Equal(t, "Jane Doe", priv["fullName"])
	require.NotNil(t, res.Role())
	assert.Equal(t, roles.Student, *res.Role())
}

func TestSync_Idempotent(t *testing.T) {
	spy := newSpy()
	s := NewSynchronizer(spy)
	ctx := context.Background()
	_, err := s.Sync(ctx, testIdentity())
	require.NoError(t, err)
	before := spy.writeCount()

	res, err := s.Sync(ctx, testIdentity())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	res, err = s.Sync(ctx, testIdentity())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.Equal(t, before, spy.writeCount())
}

func TestSync_RepairsMissingPublicCopy(t *testing.T) {
	spy := newSpy()
	ctx := context.Background()
	created := "2024-01-02T03:04:05Z"
	require.NoError(t, spy.Store.Set(ctx, store.PrivateProfilePath("u1"), models.Fields{
		"uid": "u1", "email": "t@example.com", "role": "teacher", "createdAt": created, "subject": "Math",
	}, false))

	res, err := NewSynchronizer(spy).Sync(ctx, &auth.Identity{UID: "u1", Email: "t@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{PublicCopy}, res.Wrote)

	priv, err := spy.Get(ctx, store.PrivateProfilePath("u1"))
	require.NoError(t, err)
	pub, err := spy.Get(ctx, store.PublicProfilePath("u1"))
	require.NoError(t, err)
	for _, k := range []string{"uid", "email", "role", "createdAt"} {
		assert.Equal(t, priv[k], pub[k], k)
	}
	assert.Equal(t, "teacher", pub["role"])
	assert.Equal(t, created, pub["createdAt"])
	assert.Equal(t, "Math", pub["subject"])
	// the existing private copy was not rewritten
	assert.Equal(t, 1, spy.writeCount())
}

func TestSync_PartialFailureKeepsOtherWrite(t *testing.T) {
	spy := newSpy()
	spy.failWrite = store.PublicProfilesCollection
	ctx := context.Background()

	res, err := NewSynchronizer(spy).Sync(ctx, testIdentity())
	require.Error(t, err)
	var we *ProfileWriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, PublicCopy, we.Copy)
	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, []string{PrivateCopy}, res.Wrote)

	_, err = spy.Get(ctx, store.PrivateProfilePath("abcdef123456"))
	require.NoError(t, err)
	_, err = spy.Get(ctx, store.PublicProfilePath("abcdef123456"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSync_ReadFailureWritesNothing(t *testing.T) {
	spy := newSpy()
	spy.failRead = "users/"
	res, err := NewSynchronizer(spy).Sync(context.Background(), testIdentity())
	var re *ProfileReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, PrivateCopy, re.Copy)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Zero(t, spy.writeCount())
}

// readBarrier holds the first n reads until all of them have happened, so
// concurrent syncs all see the same missing copies before anyone writes.
type readBarrier struct {
	store.Store
	mu    sync.Mutex
	n     int
	reads int
	gate  chan struct{}
}

func newReadBarrier(n int) *readBarrier {
	return &readBarrier{Store: store.NewMemoryStore(), n: n, gate: make(chan struct{})}
}

func (b *readBarrier) Get(ctx context.Context, path string) (models.Fields, error) {
	f, err := b.Store.Get(ctx, path)
	b.mu.Lock()
	b.reads++
	held := b.reads <= b.n
	if b.reads == b.n {
		close(b.gate)
	}
	b.mu.Unlock()
	if held {
		<-b.gate
	}
	return f, err
}

func TestSync_ConcurrentFirstSyncsAgree(t *testing.T) {
	shared := newReadBarrier(4)
	ctx := context.Background()
	a, b := NewSynchronizer(shared), NewSynchronizer(shared)
	a.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	b.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 7, 0, time.UTC) }

	var (
		wg         sync.WaitGroup
		resA, resB *Result
		errA, errB error
	)
	wg.Add(2)
	go func() { defer wg.Done(); resA, errA = a.Sync(ctx, testIdentity()) }()
	go func() { defer wg.Done(); resB, errB = b.Sync(ctx, testIdentity()) }()
	wg.Wait()
	require.NoError(t, errA)
	require.NoError(t, errB)

	priv, err := shared.Get(ctx, store.PrivateProfilePath("abcdef123456"))
	require.NoError(t, err)
	pub, err := shared.Get(ctx, store.PublicProfilePath("abcdef123456"))
	require.NoError(t, err)
	assert.Equal(t, priv, pub)
	assert.Equal(t, resA.Profile.CreatedAt, resB.Profile.CreatedAt)
	assert.Len(t, append(resA.Wrote, resB.Wrote...), 2)

	res, err := a.Sync(ctx, testIdentity())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
}

// staleFirstRead reports the first read of each path as missing.
type staleFirstRead struct {
	store.Store
	mu   sync.Mutex
	seen map[string]bool
}

func (s *staleFirstRead) Get(ctx context.Context, path string) (models.Fields, error) {
	s.mu.Lock()
	first := !s.seen[path]
	s.seen[path] = true
	s.mu.Unlock()
	if first {
		return nil, store.ErrNotFound
	}
	return s.Store.Get(ctx, path)
}

func TestSync_PrivateCopyCreatedElsewhereIsMirrored(t *testing.T) {
	ctx := context.Background()
	stale := &staleFirstRead{Store: store.NewMemoryStore(), seen: map[string]bool{}}
	require.NoError(t, stale.Store.Set(ctx, store.PrivateProfilePath("abcdef123456"), models.Fields{
		"uid": "abcdef123456", "role": "teacher", "createdAt": "2023-09-01T00:00:00Z",
	}, false))

	res, err := NewSynchronizer(stale).Sync(ctx, testIdentity())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRepaired, res.Outcome)
	assert.Equal(t, []string{PublicCopy}, res.Wrote)
	assert.Equal(t, "teacher", res.Profile.Role)

	pub, err := stale.Store.Get(ctx, store.PublicProfilePath("abcdef123456"))
	require.NoError(t, err)
	assert.Equal(t, "teacher", pub["role"])
	assert.Equal(t, "2023-09-01T00:00:00Z", pub["createdAt"])
}

func TestDefaultProfileUsesCredentialCreationTime(t *testing.T) {
	created := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	p := DefaultProfile(&auth.Identity{UID: "u1", CreatedAt: created}, time.Now())
	assert.Equal(t, models.Timestamp(created), p.CreatedAt)
}

func TestDefaultProfilePlaceholderName(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	p := DefaultProfile(&auth.Identity{UID: "xyz987654"}, now)
	assert.Equal(t, "User-xyz987", p.FullName)
	assert.Equal(t, "User-xyz987", p.DisplayName)
	assert.Equal(t, "student", p.Role)
	assert.Equal(t, models.Timestamp(now), p.CreatedAt)
}

func TestMirror(t *testing.T) {
	s := store.NewMemoryStore()
	m := NewMirror(s)
	ctx := context.Background()

	p := &models.UserProfile{UID: "u1", Email: "a@example.com", Role: "student", FullName: "A"}
	require.NoError(t, m.CreateBoth(ctx, p))

	require.NoError(t, m.UpdateBoth(ctx, "u1", models.Fields{"phone": "555"}))
	priv, err := m.ReadPrivate(ctx, "u1")
	require.NoError(t, err)
	pub, err := m.ReadPublic(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "555", priv.Phone)
	assert.Equal(t, priv, pub)

	list, err := m.ListPublic(ctx, store.Filter{"role": "student"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	// drop the public copy: the next update reports a partial failure
	require.NoError(t, s.Delete(ctx, store.PublicProfilePath("u1")))
	err = m.UpdateBoth(ctx, "u1", models.Fields{"phone": "777"})
	var me *MirrorError
	require.ErrorAs(t, err, &me)
	assert.True(t, me.Partial())
	assert.NoError(t, me.Private)
	assert.True(t, IsNotFound(err))
	assert.False(t, me.Missing())
	priv, err = m.ReadPrivate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "777", priv.Phone)

	require.NoError(t, m.DeleteBoth(ctx, "u1"))
	_, err = m.ReadPrivate(ctx, "u1")
	assert.True(t, IsNotFound(err))
}

func newAuthService() *auth.Service {
	cfg := &config.Config{}
	cfg.JWT.Secret = "identity-test-secret-32-bytes-xxxxx"
	cfg.JWT.AccessTokenTTL = time.Minute
	cfg.Auth.MaxFailedAttempts = 5
	cfg.Auth.AttemptWindow = 15 * time.Minute
	return auth.NewService(cfg, auth.NewMemoryRepository(), nil)
}

func TestMirrorErrorMissingNeedsBothCopiesGone(t *testing.T) {
	gone := &MirrorError{Private: store.ErrNotFound, Public: store.ErrNotFound}
	assert.True(t, gone.Missing())
	mixed := &MirrorError{Private: store.ErrNotFound, Public: errBoom}
	assert.False(t, mixed.Missing())
	assert.False(t, mixed.Partial())
}

func TestSessionContextLifecycle(t *testing.T) {
	provider := newAuthService()
	s := store.NewMemoryStore()
	sc := NewSessionContext(provider, s)
	assert.True(t, sc.State().LoadingAuth)

	sc.Start()
	sc.Start()
	defer sc.Close()

	ctx := context.Background()
	id, err := provider.SignUp(ctx, "s@example.com", "secret1", "")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	st, err := sc.Wait(waitCtx)
	require.NoError(t, err)
	assert.False(t, st.LoadingAuth)
	assert.Equal(t, id.UID, st.UserID)
	assert.NotEmpty(t, st.IDToken)
	require.NotNil(t, st.Role)
	assert.Equal(t, "/student/dashboard", st.Resolve(roles.Student))
	assert.Equal(t, roles.LoginRoute, st.Resolve(roles.Teacher))

	provider.SignOut(ctx, id.UID)
	st = sc.State()
	assert.Empty(t, st.UserID)
	assert.Nil(t, st.Role)
	assert.Equal(t, roles.LoginRoute, st.Resolve(roles.Student))

	sc.Close()
	_, err = provider.SignIn(ctx, "s@example.com", "secret1")
	require.NoError(t, err)
	assert.Empty(t, sc.State().UserID, "closed context must not receive events")
}

func TestSessionContextReadyDespiteWriteFailure(t *testing.T) {
	provider := newAuthService()
	spy := newSpy()
	spy.failWrite = store.PublicProfilesCollection
	sc := NewSessionContext(provider, spy)
	sc.Start()
	defer sc.Close()

	ctx := context.Background()
	id, err := provider.SignUp(ctx, "p@example.com", "secret1", "")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	st, err := sc.Wait(waitCtx)
	require.NoError(t, err)
	assert.False(t, st.LoadingAuth)
	assert.Equal(t, id.UID, st.UserID)

	_, err = spy.Get(ctx, store.PrivateProfilePath(id.UID))
	require.NoError(t, err)
}

func TestSignUpTeacherThenLoginRedirects(t *testing.T) {
	provider := newAuthService()
	s := store.NewMemoryStore()
	mirror := NewMirror(s)
	ctx := context.Background()

	id, err := provider.SignUp(ctx, "jane@example.com", "secret1", "Jane Doe")
	require.NoError(t, err)
	require.NoError(t, mirror.CreateBoth(ctx, &models.UserProfile{
		UID:         id.UID,
		Email:       id.Email,
		FullName:    "Jane Doe",
		DisplayName: "Jane Doe",
		Role:        string(roles.Teacher),
		CreatedAt:   models.Timestamp(time.Now()),
	}))
	provider.SignOut(ctx, id.UID)

	priv, err := s.Get(ctx, store.PrivateProfilePath(id.UID))
	require.NoError(t, err)
	pub, err := s.Get(ctx, store.PublicProfilePath(id.UID))
	require.NoError(t, err)
	assert.Equal(t, priv, pub)

	sc := NewSessionContext(provider, s)
	sc.Start()
	defer sc.Close()
	_, err = provider.SignIn(ctx, "jane@example.com", "secret1")
	require.NoError(t, err)

	st, err := sc.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Role)
	assert.Equal(t, roles.Teacher, *st.Role)
	assert.Equal(t, "/teacher/dashboard", st.Resolve(roles.Teacher))
}
