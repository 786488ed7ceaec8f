package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/notifications"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/internal/sessions"
	"github.com/presensync/presensync/backend/go-services/internal/store"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

type roleRequest struct {
	NewRole string `json:"new_role" binding:"required,role"`
}

type globalNotificationRequest struct {
	Message string `json:"message" binding:"required"`
	Type    string `json:"type" binding:"omitempty,oneof=info success warning error"`
}

// AdminHandler manages users and global notifications.
type AdminHandler struct {
	mirror        *identity.Mirror
	notifications *notifications.Service
	sessionsSvc   *sessions.Service
}

func NewAdminHandler(m *identity.Mirror, n *notifications.Service, s *sessions.Service) *AdminHandler {
	RegisterValidators()
	return &AdminHandler{mirror: m, notifications: n, sessionsSvc: s}
}

// Register mounts /admin on a group that already runs AuthMiddleware.
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/admin", middleware.RequireRole(h.mirror, roles.Admin))
	a.GET("/users", h.ListUsers)
	a.PUT("/users/:uid/role", h.SetRole)
	a.DELETE("/users/:uid", h.DeleteUser)
	a.POST("/notifications/send_global", h.SendGlobal)
}

// ListUsers returns every public profile, optionally filtered by ?role=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var filter store.Filter
	if q := c.Query("role"); q != "" {
		r, ok := roles.Parse(q)
		if !ok {
			fail(c, http.StatusBadRequest, "Unknown role.", nil)
			return
		}
		filter = store.Filter{"role": string(r)}
	}
	users, err := h.mirror.ListPublic(c.Request.Context(), filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Error fetching user data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// SetRole changes the role on both copies and tells the user.
func (h *AdminHandler) SetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	role, _ := roles.Parse(req.NewRole)
	uid := c.Param("uid")
	ctx := c.Request.Context()

	err := h.mirror.UpdateBoth(ctx, uid, models.Fields{"role": string(role)})
	var merr *identity.MirrorError
	switch {
	case err == nil:
	case errors.As(err, &merr) && merr.Partial():
		logger.Warnf("admin: role of %s set on one copy only: %v", uid, err)
	case errors.As(err, &merr) && merr.Missing():
		fail(c, http.StatusNotFound, "User not found.", nil)
		return
	default:
		fail(c, http.StatusInternalServerError, "Error updating user role", err)
		return
	}

	if _, nerr := h.notifications.Create(ctx, uid, fmt.Sprintf("Your role has been changed to %s.", role), models.NotificationInfo, notifications.SenderAdmin); nerr != nil {
		logger.Warnf("admin: notify %s of role change: %v", uid, nerr)
	}
	respond(c, http.StatusOK, toastSuccess, fmt.Sprintf("User %s role updated to %s", uid, role), gin.H{"uid": uid, "role": role})
}

// DeleteUser removes both profile copies and the user's refresh sessions. The
// credential stays, so the user can sign in again and gets a default profile.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	uid := c.Param("uid")
	if uid == middleware.UID(c) {
		fail(c, http.StatusBadRequest, "Cannot delete your own admin account via API.", nil)
		return
	}
	ctx := c.Request.Context()
	_, perr := h.mirror.ReadPrivate(ctx, uid)
	_, qerr := h.mirror.ReadPublic(ctx, uid)
	if identity.IsNotFound(perr) && identity.IsNotFound(qerr) {
		fail(c, http.StatusNotFound, "User not found.", nil)
		return
	}
	if err := h.mirror.DeleteBoth(ctx, uid); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete user.", err)
		return
	}
	if err := h.sessionsSvc.RevokeAll(ctx, uid); err != nil {
		logger.Warnf("admin: revoke sessions of %s: %v", uid, err)
	}
	logger.Infof("admin %s deleted profile documents of %s", middleware.UID(c), uid)
	respond(c, http.StatusOK, toastSuccess, fmt.Sprintf("User %s and their profile data successfully deleted.", uid), nil)
}

// SendGlobal writes a notification to every user with a public profile.
func (h *AdminHandler) SendGlobal(c *gin.Context) {
	var req globalNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.notifications.Broadcast(c.Request.Context(), req.Message, req.Type)
	if err != nil {
		if errors.Is(err, notifications.ErrEmptyMessage) || errors.Is(err, notifications.ErrInvalidType) {
			fail(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Error sending notification", err)
		return
	}
	respond(c, http.StatusOK, toastSuccess, fmt.Sprintf("Global notification sent to %d users.", n), gin.H{"count": n})
}
