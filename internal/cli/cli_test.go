package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "cli-test-secret"
	cfg.Auth.MaxFailedAttempts = 5
	cfg.Auth.AttemptWindow = time.Minute
	return NewEnv(cfg, store.NewMemoryStore(), auth.NewMemoryRepository(), nil)
}

func run(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(env)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func signup(t *testing.T, env *Env, email, role string) SignupResult {
	t.Helper()
	out, err := run(t, env, "--format", "json", "signup", "--email", email, "--password", "secret123", "--name", "Test User", "--role", role)
	require.NoError(t, err)
	var res SignupResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res
}

func TestSignupCreatesBothCopies(t *testing.T) {
	env := newTestEnv(t)
	res := signup(t, env, "admin@school.test", "admin")
	assert.Equal(t, "admin", res.Role)
	assert.Equal(t, "/admin/dashboard", res.Redirect)
	assert.Empty(t, res.Warning)

	priv, err := env.Mirror.ReadPrivate(context.Background(), res.UID)
	require.NoError(t, err)
	pub, err := env.Mirror.ReadPublic(context.Background(), res.UID)
	require.NoError(t, err)
	assert.Equal(t, priv, pub)
}

func TestLoginPrintsLandingRoute(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env, "t@school.test", "teacher")

	out, err := run(t, env, "login", "--email", "t@school.test", "--password", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "/teacher/dashboard\n", out)

	_, err = run(t, env, "login", "--email", "t@school.test", "--password", "secret123", "--as", "student")
	assert.ErrorIs(t, err, ErrNoAccess)

	signup(t, env, "a@school.test", "admin")
	out, err = run(t, env, "--format", "json", "login", "--email", "a@school.test", "--password", "secret123", "--as", "student", "--show-token")
	require.NoError(t, err)
	var res LoginResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "/student/dashboard", res.Redirect)
	assert.Equal(t, "admin", res.Role)
	assert.NotEmpty(t, res.IDToken)

	_, err = run(t, env, "login", "--email", "t@school.test", "--password", "nope")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRepairProfilesCreatesMissingCopies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := signup(t, env, "a@school.test", "student")
	b := signup(t, env, "b@school.test", "teacher")
	require.NoError(t, env.Store.Delete(ctx, store.PublicProfilePath(a.UID)))
	require.NoError(t, env.Mirror.DeleteBoth(ctx, b.UID))

	out, err := run(t, env, "--format", "json", "repair-profiles")
	require.NoError(t, err)
	var entries []RepairEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "repaired", e.Outcome, e.UID)
	}

	pa, err := env.Mirror.ReadPublic(ctx, a.UID)
	require.NoError(t, err)
	assert.Equal(t, "student", pa.Role)
	pb, err := env.Mirror.ReadPrivate(ctx, b.UID)
	require.NoError(t, err)
	// both copies were gone, so the default role applies
	assert.Equal(t, "student", pb.Role)

	out, err = run(t, env, "repair-profiles", a.UID, "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, a.UID+" noop")
	assert.Contains(t, out, "ghost skipped: no credential")
}

func TestSetRoleAndNotify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := signup(t, env, "s@school.test", "student")
	signup(t, env, "s2@school.test", "student")

	out, err := run(t, env, "set-role", s.UID, "teacher")
	require.NoError(t, err)
	assert.Contains(t, out, "is now teacher")
	p, err := env.Mirror.ReadPublic(ctx, s.UID)
	require.NoError(t, err)
	assert.Equal(t, "teacher", p.Role)
	unread, err := env.Notifications.UnreadCount(ctx, s.UID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	_, err = run(t, env, "set-role", s.UID, "janitor")
	assert.Error(t, err)
	_, err = run(t, env, "set-role", "ghost", "teacher")
	assert.Error(t, err)

	out, err = run(t, env, "notify", "Exams next week")
	require.NoError(t, err)
	assert.Equal(t, "Global notification sent to 2 users.\n", out)

	_, err = run(t, env, "notify", "--user", s.UID, "--type", "bogus", "hi")
	assert.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, newTestEnv(t), "--format", "xml", "repair-profiles")
	assert.Error(t, err)
}
