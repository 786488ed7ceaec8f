package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/presensync/presensync/backend/go-services/internal/notifications"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the API is consumed cross-origin by the SPA, same as the CORS policy in main
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NotificationsHandler serves the caller's own notifications.
type NotificationsHandler struct {
	svc     *notifications.Service
	streams *notifications.Manager
}

func NewNotificationsHandler(svc *notifications.Service, streams *notifications.Manager) *NotificationsHandler {
	return &NotificationsHandler{svc: svc, streams: streams}
}

// Register mounts the routes on a group that already runs AuthMiddleware.
func (h *NotificationsHandler) Register(rg *gin.RouterGroup) {
	n := rg.Group("/notifications")
	n.GET("", h.List)
	n.GET("/stream", h.Stream)
	n.POST("/read-all", h.MarkAllRead)
	n.POST("/:id/read", h.MarkRead)
	n.DELETE("/:id", h.Delete)
}

func (h *NotificationsHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.UID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load notifications.", err)
		return
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	err := h.svc.MarkRead(c.Request.Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			fail(c, http.StatusNotFound, "Notification not found.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to mark notification as read.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}

func (h *NotificationsHandler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.MarkAllRead(c.Request.Context(), middleware.UID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to mark notifications as read.", err)
		return
	}
	respond(c, http.StatusOK, toastSuccess, "All notifications marked as read.", gin.H{"updated": n})
}

func (h *NotificationsHandler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			fail(c, http.StatusNotFound, "Notification not found.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to delete notification.", err)
		return
	}
	respond(c, http.StatusOK, toastSuccess, "Notification deleted.", nil)
}

// Stream upgrades to a websocket that receives the full list after every change.
func (h *NotificationsHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("notifications: upgrade: %v", err)
		return
	}
	h.streams.Serve(c.Request.Context(), middleware.UID(c), conn)
}
