package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/internal/tokens"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

// LandingHandler decides where a visitor of the landing page goes. It runs
// the same synchronize-then-resolve flow as login for an already signed-in caller.
type LandingHandler struct {
	authSvc *auth.Service
	syncer  *identity.Synchronizer
}

func NewLandingHandler(a *auth.Service, sy *identity.Synchronizer) *LandingHandler {
	return &LandingHandler{authSvc: a, syncer: sy}
}

// Register mounts GET /landing; the group must run OptionalAuthMiddleware.
func (h *LandingHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/landing", h.Landing)
}

// Landing answers {redirect, uid, role}. ?target= picks the dashboard the
// visitor asked for; without it the stored role's dashboard is used.
func (h *LandingHandler) Landing(c *gin.Context) {
	var target *roles.Role
	if t := c.Query("target"); t != "" {
		r, ok := roles.Parse(t)
		if !ok {
			fail(c, http.StatusBadRequest, "Unknown dashboard.", nil)
			return
		}
		target = &r
	}

	uid := middleware.UID(c)
	if uid == "" {
		c.JSON(http.StatusOK, gin.H{"redirect": roles.LoginRoute})
		return
	}
	ctx := c.Request.Context()
	id, err := h.authSvc.Lookup(ctx, uid)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		// verified by an external provider: no local credential to look up
		id = claimsIdentity(uid, middleware.Claims(c))
	case err != nil:
		logger.Warnf("landing uid=%s: %v", uid, err)
		c.JSON(http.StatusOK, gin.H{"redirect": roles.LoginRoute})
		return
	}
	id.AuthTime = tokensAuthTime(c)

	res, _ := h.syncer.Sync(ctx, id)
	role := res.Role()
	if target == nil {
		if role == nil {
			c.JSON(http.StatusOK, gin.H{"redirect": roles.LoginRoute, "uid": uid})
			return
		}
		target = role
	}
	c.JSON(http.StatusOK, gin.H{
		"redirect": roles.Resolve(uid, role, *target),
		"uid":      uid,
		"role":     role,
	})
}

// claimsIdentity builds the identity of a caller known only from token claims.
func claimsIdentity(uid string, claims map[string]interface{}) *auth.Identity {
	id := &auth.Identity{UID: uid}
	id.Email, _ = claims["email"].(string)
	id.DisplayName, _ = claims["name"].(string)
	return id
}

// tokensAuthTime returns auth_time of the verified token, or now when absent.
func tokensAuthTime(c *gin.Context) time.Time {
	if t := tokens.AuthTime(middleware.Claims(c)); !t.IsZero() {
		return t
	}
	return time.Now()
}
