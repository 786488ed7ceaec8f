package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/attendance"
	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/notifications"
	"github.com/presensync/presensync/backend/go-services/internal/sessions"
	"github.com/presensync/presensync/backend/go-services/internal/storage"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

// Services is everything the HTTP API needs.
type Services struct {
	Config        *config.Config
	Verifier      middleware.Verifier
	Auth          *auth.Service
	Sessions      *sessions.Service
	Mirror        *identity.Mirror
	Synchronizer  *identity.Synchronizer
	Attendance    *attendance.Service
	Notifications *notifications.Service
	Streams       *notifications.Manager
	Photos        storage.ObjectStore
	// AuthLimiter, when set, guards signup and login on top of any global limiter.
	AuthLimiter gin.HandlerFunc
}

// Mount registers every API route on r.
func Mount(r *gin.Engine, s Services) {
	RegisterValidators()
	requireAuth := middleware.AuthMiddleware(s.Verifier)
	root := r.Group("/")

	authRoutes := root
	if s.AuthLimiter != nil {
		authRoutes = r.Group("/", s.AuthLimiter)
	}
	NewAuthHandler(s.Config, s.Auth, s.Sessions, s.Mirror, s.Synchronizer).Register(authRoutes, requireAuth)

	NewLandingHandler(s.Auth, s.Synchronizer).Register(r.Group("/api/v1", middleware.OptionalAuthMiddleware(s.Verifier)))

	api := r.Group("/api/v1", requireAuth)
	NewProfileHandler(s.Mirror, s.Photos).Register(api)
	NewNotificationsHandler(s.Notifications, s.Streams).Register(api)

	protected := r.Group("/", requireAuth)
	NewAttendanceHandler(s.Attendance, s.Mirror).Register(protected, api)
	NewAdminHandler(s.Mirror, s.Notifications, s.Sessions).Register(protected)
	NewDashboardHandler(s.Mirror, s.Attendance, s.Notifications).Register(protected)

	RegisterSwagger(r)
}
