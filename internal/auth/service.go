package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/tokens"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// Identity is an authenticated principal.
type Identity struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AuthTime    time.Time `json:"authTime"`
	// CreatedAt is when the credential was created; zero for external identities.
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Listener receives auth state changes; id is nil on sign-out.
type Listener func(ctx context.Context, id *Identity)

type subscription struct {
	id int
	fn Listener
}

// Service is the credential provider: it owns credentials and emits auth
// state events to its subscribers.
type Service struct {
	repo     Repository
	attempts AttemptLimiter
	cfg      *config.Config
	validate *validator.Validate
	now      func() time.Time

	mu        sync.Mutex
	nextSubID int
	subs      []subscription
}

func NewService(cfg *config.Config, repo Repository, attempts AttemptLimiter) *Service {
	if attempts == nil {
		attempts = NewMemoryAttempts(cfg.Auth.MaxFailedAttempts, cfg.Auth.AttemptWindow)
	}
	return &Service{
		repo:     repo,
		attempts: attempts,
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Service) minPasswordLength() int {
	if s.cfg.Auth.MinPasswordLength > 0 {
		return s.cfg.Auth.MinPasswordLength
	}
	return 6
}

// Subscribe registers l for auth state changes. Listeners run in registration
// order on the goroutine that caused the change. The returned func unsubscribes.
func (s *Service) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscription{id: id, fn: l})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Service) emit(ctx context.Context, id *Identity) {
	s.mu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(ctx, id)
	}
}

// SignUp creates a credential and signs the new identity in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < s.minPasswordLength() {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	c := &Credential{
		UID:               uuid.NewString(),
		Email:             email,
		PasswordHash:      string(hash),
		DisplayName:       displayName,
		CreatedAt:         now,
		PasswordChangedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrEmailInUse) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create credential: %w", err)
	}
	logger.Infof("auth: signed up uid=%s", c.UID)
	id := &Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName, AuthTime: now, CreatedAt: c.CreatedAt}
	s.emit(ctx, id)
	return id, nil
}

// SignIn checks the password. Unknown emails and wrong passwords both count
// towards the lockout and report ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	key := normalizeEmail(email)
	blocked, err := s.attempts.Blocked(ctx, key)
	if err != nil {
		logger.Warnf("auth: attempt limiter unavailable: %v", err)
	}
	if blocked {
		return nil, ErrTooManyAttempts
	}
	c, err := s.repo.GetByEmail(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if c == nil || bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		if ferr := s.attempts.Fail(ctx, key); ferr != nil {
			logger.Warnf("auth: record failed attempt: %v", ferr)
		}
		return nil, ErrInvalidCredentials
	}
	if err := s.attempts.Reset(ctx, key); err != nil {
		logger.Warnf("auth: reset attempts: %v", err)
	}
	id := &Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName, AuthTime: s.now().UTC(), CreatedAt: c.CreatedAt}
	s.emit(ctx, id)
	return id, nil
}

// SignOut emits the signed-out state.
func (s *Service) SignOut(ctx context.Context, uid string) {
	logger.Debugf("auth: sign out uid=%s", uid)
	s.emit(ctx, nil)
}

// Lookup returns the identity for uid without signing it in. AuthTime is left zero.
func (s *Service) Lookup(ctx context.Context, uid string) (*Identity, error) {
	c, err := s.repo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrUserNotFound
	}
	return &Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName, CreatedAt: c.CreatedAt}, nil
}

// UIDs lists every known credential.
func (s *Service) UIDs(ctx context.Context) ([]string, error) {
	return s.repo.UIDs(ctx)
}

// IDToken issues a signed identity token for id.
func (s *Service) IDToken(id *Identity) (string, error) {
	ttl := s.cfg.JWT.AccessTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return tokens.GenerateAccessToken(s.cfg, tokens.Subject{
		UID:      id.UID,
		Email:    id.Email,
		Name:     id.DisplayName,
		AuthTime: id.AuthTime,
	}, ttl)
}

// ChangePassword replaces the password of uid. authTime is when the caller
// last proved the credential; it must fall inside the recent-login window.
func (s *Service) ChangePassword(ctx context.Context, uid string, authTime time.Time, current, next string) error {
	window := s.cfg.Auth.RecentLoginWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	if authTime.IsZero() || s.now().Sub(authTime) > window {
		return ErrRequiresRecentLogin
	}
	c, err := s.repo.GetByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if c == nil {
		return ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	if len(next) < s.minPasswordLength() {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, uid, string(hash), s.now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	logger.Infof("auth: password changed uid=%s", uid)
	return nil
}
