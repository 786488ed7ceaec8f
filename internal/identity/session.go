package identity

import (
	"context"
	"sync"

	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
)

// Provider is the part of the credential provider the session context uses.
type Provider interface {
	Subscribe(l auth.Listener) func()
	IDToken(id *auth.Identity) (string, error)
}

// State is a read-only snapshot of the session.
type State struct {
	UserID      string
	IDToken     string
	Role        *roles.Role
	LoadingAuth bool
}

// Resolve decides the landing route for target with the current identity.
func (s State) Resolve(target roles.Role) string {
	return roles.Resolve(s.UserID, s.Role, target)
}

// SessionContext holds the current identity of a process. It is built once at
// the root, started to subscribe to the provider and closed at shutdown. Only
// the synchronizer callback changes it; everything else reads State.
type SessionContext struct {
	provider Provider
	syncer   *Synchronizer

	mu          sync.RWMutex
	state       State
	ready       chan struct{}
	readyOnce   sync.Once
	unsubscribe func()
}

func NewSessionContext(p Provider, s store.Store) *SessionContext {
	return &SessionContext{
		provider: p,
		syncer:   NewSynchronizer(s),
		state:    State{LoadingAuth: true},
		ready:    make(chan struct{}),
	}
}

// Start subscribes to auth state changes. Calling it twice is a no-op.
func (c *SessionContext) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		return
	}
	c.unsubscribe = c.provider.Subscribe(c.onAuthStateChanged)
}

// Close releases the subscription. In-flight syncs may still finish.
func (c *SessionContext) Close() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// State returns the current snapshot.
func (c *SessionContext) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.state
	if st.Role != nil {
		r := *st.Role
		st.Role = &r
	}
	return st
}

// Wait blocks until the first auth decision has been published.
func (c *SessionContext) Wait(ctx context.Context) (State, error) {
	select {
	case <-c.ready:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

func (c *SessionContext) onAuthStateChanged(ctx context.Context, id *auth.Identity) {
	res, err := c.syncer.Sync(ctx, id)
	if err != nil {
		// already logged by the synchronizer; the session still becomes ready
		logger.Debugf("session: sync finished with errors: %v", err)
	}
	if id == nil {
		c.publish(State{})
		return
	}
	st := State{UserID: id.UID, Role: res.Role()}
	tok, terr := c.provider.IDToken(id)
	if terr != nil {
		logger.Warnf("session: issue id token uid=%s: %v", id.UID, terr)
	}
	st.IDToken = tok
	c.publish(st)
}

func (c *SessionContext) publish(st State) {
	st.LoadingAuth = false
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })
}
