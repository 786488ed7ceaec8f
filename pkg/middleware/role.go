package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/metrics"
)

// ProfileKey holds the caller's private profile once RequireRole passed.
const ProfileKey = "profile"

// ProfileReader loads the caller's private profile.
type ProfileReader interface {
	ReadPrivate(ctx context.Context, uid string) (*models.UserProfile, error)
}

// RequireRole lets a request through when the caller's stored role is one of
// allowed, or admin. The role is read from the private profile on every
// request so a role change applies immediately.
func RequireRole(profiles ProfileReader, allowed ...roles.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UID(c)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "redirect": "/login"})
			return
		}
		p, err := profiles.ReadPrivate(c.Request.Context(), uid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				metrics.RoleGateRejected.WithLabelValues("none").Inc()
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no profile", "redirect": "/login"})
				return
			}
			logger.Errorf("role gate: read profile uid=%s: %v", uid, err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "profile unavailable"})
			return
		}
		role, ok := p.ResolvedRole()
		if !ok {
			metrics.RoleGateRejected.WithLabelValues("none").Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no role assigned", "redirect": "/login"})
			return
		}
		for _, want := range allowed {
			if role.Satisfies(want) {
				c.Set(ProfileKey, p)
				c.Next()
				return
			}
		}
		metrics.RoleGateRejected.WithLabelValues(string(role)).Inc()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "redirect": role.Dashboard()})
	}
}

// Profile returns the profile RequireRole loaded, or nil.
func Profile(c *gin.Context) *models.UserProfile {
	v, ok := c.Get(ProfileKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.UserProfile)
	return p
}
