package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/sessions"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey      = "claims"
	UIDKey         = "uid"
	AccessTokenKey = "accessToken"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// ChainVerifier accepts a token when any of its verifiers does, trying them in order.
type ChainVerifier []Verifier

func (c ChainVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	var errs []error
	for _, v := range c {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no token verifier configured")
	}
	return nil, errors.Join(errs...)
}

// bearer extracts the token of an "Authorization: Bearer <token>" header.
func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requestToken returns the bearer token of the request. Browsers cannot set
// headers on websocket upgrades, so those may carry it as ?access_token=.
func requestToken(c *gin.Context) (token string, present bool) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		token, _ = bearer(auth)
		return token, true
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		if q := c.Query("access_token"); q != "" {
			return q, true
		}
	}
	return "", false
}

type authFailure struct {
	status int
	body   gin.H
}

// authenticate verifies the request token and stores the identity on c.
func authenticate(c *gin.Context, ver Verifier) *authFailure {
	token, present := requestToken(c)
	if !present {
		return &authFailure{http.StatusUnauthorized, gin.H{"error": "missing Authorization header"}}
	}
	if token == "" {
		return &authFailure{http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"}}
	}

	black, err := sessions.IsAccessTokenBlacklisted(c.Request.Context(), token)
	if err != nil {
		logger.Warnf("auth: blacklist lookup failed: %v", err)
	}
	if black {
		return &authFailure{http.StatusUnauthorized, gin.H{"error": "token revoked"}}
	}

	idToken, err := ver.Verify(c.Request.Context(), token)
	if err != nil {
		return &authFailure{http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()}}
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return &authFailure{http.StatusUnauthorized, gin.H{"error": "failed to parse claims"}}
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return &authFailure{http.StatusUnauthorized, gin.H{"error": "token has no subject"}}
	}

	c.Set(ClaimsKey, claims)
	c.Set(UIDKey, sub)
	c.Set(AccessTokenKey, token)
	return nil
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier.
// Logged-out (blacklisted) access tokens are rejected even while their signature is still valid.
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if f := authenticate(c, ver); f != nil {
			c.AbortWithStatusJSON(f.status, f.body)
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware sets the identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if f := authenticate(c, ver); f != nil {
			if _, present := requestToken(c); present {
				logger.Debugf("auth: ignoring unusable token: %v", f.body["error"])
			}
		}
		c.Next()
	}
}

// UID returns the authenticated user id, or "" outside AuthMiddleware.
func UID(c *gin.Context) string {
	return c.GetString(UIDKey)
}

// Claims returns the verified token claims, or nil.
func Claims(c *gin.Context) map[string]interface{} {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}
