package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/attendance"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/notifications"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

const recentRecords = 5

// DashboardHandler serves the three role dashboards. Each route re-reads the
// caller's stored role through middleware.RequireRole.
type DashboardHandler struct {
	mirror        *identity.Mirror
	attendance    *attendance.Service
	notifications *notifications.Service
}

func NewDashboardHandler(m *identity.Mirror, a *attendance.Service, n *notifications.Service) *DashboardHandler {
	return &DashboardHandler{mirror: m, attendance: a, notifications: n}
}

// Register mounts the dashboards on a group that already runs AuthMiddleware.
func (h *DashboardHandler) Register(rg *gin.RouterGroup) {
	rg.GET(roles.Student.Dashboard(), middleware.RequireRole(h.mirror, roles.Student), h.Student)
	rg.GET(roles.Teacher.Dashboard(), middleware.RequireRole(h.mirror, roles.Teacher), h.Teacher)
	rg.GET(roles.Admin.Dashboard(), middleware.RequireRole(h.mirror, roles.Admin), h.Admin)
}

func (h *DashboardHandler) unread(c *gin.Context, uid string) int {
	n, err := h.notifications.UnreadCount(c.Request.Context(), uid)
	if err != nil {
		logger.Warnf("dashboard uid=%s: unread count: %v", uid, err)
	}
	return n
}

func (h *DashboardHandler) Student(c *gin.Context) {
	p := middleware.Profile(c)
	records, err := h.attendance.StudentRecords(c.Request.Context(), p.UID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load your attendance.", err)
		return
	}
	recent := records
	if len(recent) > recentRecords {
		recent = recent[len(recent)-recentRecords:]
	}
	c.JSON(http.StatusOK, gin.H{
		"profile": p,
		"attendance": gin.H{
			"total":  len(records),
			"recent": recent,
		},
		"faceRegistered": len(p.FaceDescriptor) > 0,
		"unread":         h.unread(c, p.UID),
	})
}

func (h *DashboardHandler) Teacher(c *gin.Context) {
	p := middleware.Profile(c)
	list, err := h.attendance.ListSessions(c.Request.Context(), p.UID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load your sessions.", err)
		return
	}
	classes, err := h.attendance.ListClasses(c.Request.Context(), p.UID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load classes.", err)
		return
	}
	active, present, students := 0, 0, 0
	for _, s := range list {
		if s.Status == models.SessionActive {
			active++
		}
		present += s.TotalPresent
		students += s.TotalStudents
	}
	rate := 0.0
	if students > 0 {
		rate = float64(present) / float64(students) * 100
	}
	c.JSON(http.StatusOK, gin.H{
		"profile": p,
		"classes": len(classes),
		"sessions": gin.H{
			"total":          len(list),
			"active":         active,
			"totalPresent":   present,
			"totalStudents":  students,
			"attendanceRate": rate,
		},
		"unread": h.unread(c, p.UID),
	})
}

func (h *DashboardHandler) Admin(c *gin.Context) {
	p := middleware.Profile(c)
	users, err := h.mirror.ListPublic(c.Request.Context(), nil)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load users.", err)
		return
	}
	byRole := map[string]int{}
	for _, u := range users {
		r, ok := u.ResolvedRole()
		if !ok {
			byRole["unassigned"]++
			continue
		}
		byRole[string(r)]++
	}
	c.JSON(http.StatusOK, gin.H{
		"profile": p,
		"users":   gin.H{"total": len(users), "byRole": byRole},
		"unread":  h.unread(c, p.UID),
	})
}
