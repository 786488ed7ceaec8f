package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/attendance"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

// AttendanceHandler serves teacher sessions and student attendance marking.
type AttendanceHandler struct {
	svc    *attendance.Service
	mirror *identity.Mirror
}

func NewAttendanceHandler(svc *attendance.Service, m *identity.Mirror) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, mirror: m}
}

// Register mounts the teacher routes on api and the marking route on root.
// Both groups must already run AuthMiddleware.
func (h *AttendanceHandler) Register(root, api *gin.RouterGroup) {
	teacher := api.Group("/sessions", middleware.RequireRole(h.mirror, roles.Teacher))
	teacher.POST("", h.CreateSession)
	teacher.GET("", h.ListSessions)
	teacher.GET("/:id", h.GetSession)
	teacher.POST("/:id/qr", h.RefreshQR)
	teacher.POST("/:id/end", h.EndSession)
	teacher.GET("/:id/records", h.SessionRecords)

	classes := api.Group("/classes", middleware.RequireRole(h.mirror, roles.Teacher))
	classes.POST("", h.CreateClass)
	classes.GET("", h.ListClasses)
	classes.GET("/:id", h.GetClass)
	classes.DELETE("/:id", h.DeleteClass)

	api.GET("/attendance/me", middleware.RequireRole(h.mirror, roles.Student), h.MyRecords)
	root.POST("/attendance/mark", middleware.RequireRole(h.mirror, roles.Student), h.Mark)
}

func attendanceStatus(err error) (int, string) {
	switch {
	case errors.Is(err, attendance.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found."
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return http.StatusConflict, "Attendance already marked for this session."
	case errors.Is(err, attendance.ErrQRExpired):
		return http.StatusBadRequest, "QR Code expired."
	case errors.Is(err, attendance.ErrBadTimestamp):
		return http.StatusBadRequest, "Invalid QR timestamp format."
	case errors.Is(err, attendance.ErrSessionNotActive):
		return http.StatusBadRequest, "Session is not active."
	case errors.Is(err, attendance.ErrNotStarted):
		return http.StatusBadRequest, "Session has not started yet."
	case errors.Is(err, attendance.ErrEnded):
		return http.StatusBadRequest, "Session has ended."
	case errors.Is(err, attendance.ErrInvalidSession):
		return http.StatusBadRequest, "Invalid session."
	case errors.Is(err, attendance.ErrClassNotFound):
		return http.StatusNotFound, "Selected class not found."
	case errors.Is(err, attendance.ErrClassExists):
		return http.StatusConflict, "Class already exists!"
	case errors.Is(err, attendance.ErrDuplicateRollNo):
		return http.StatusBadRequest, "Student with this Roll No. already added to this list."
	case errors.Is(err, attendance.ErrInvalidClass):
		return http.StatusBadRequest, "Please fill in Year, Batch, and Section for the new class."
	}
	return http.StatusInternalServerError, "Internal server error."
}

func (h *AttendanceHandler) fail(c *gin.Context, err error) {
	status, msg := attendanceStatus(err)
	fail(c, status, msg, err)
}

func (h *AttendanceHandler) CreateSession(c *gin.Context) {
	var req attendance.NewSession
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, qr, err := h.svc.CreateSession(c.Request.Context(), middleware.UID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toastSuccess, "Session started!", gin.H{"session": sess, "qr": qr})
}

// CreateClass stores a new class with its roster for the caller.
func (h *AttendanceHandler) CreateClass(c *gin.Context) {
	var req attendance.NewClass
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := h.svc.CreateClass(c.Request.Context(), middleware.UID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := fmt.Sprintf("Class %q created successfully with %d students!", class.Name, len(class.Students))
	respond(c, http.StatusCreated, toastSuccess, msg, gin.H{"class": class})
}

func (h *AttendanceHandler) ListClasses(c *gin.Context) {
	list, err := h.svc.ListClasses(c.Request.Context(), middleware.UID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": list})
}

func (h *AttendanceHandler) GetClass(c *gin.Context) {
	class, err := h.svc.GetClass(c.Request.Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": class})
}

func (h *AttendanceHandler) DeleteClass(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteClass(c.Request.Context(), middleware.UID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, toastSuccess, "Class deleted successfully!", gin.H{"id": id})
}

func (h *AttendanceHandler) ListSessions(c *gin.Context) {
	list, err := h.svc.ListSessions(c.Request.Context(), middleware.UID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (h *AttendanceHandler) GetSession(c *gin.Context) {
	sess, err := h.svc.GetSession(c.Request.Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (h *AttendanceHandler) RefreshQR(c *gin.Context) {
	qr, err := h.svc.RefreshQR(c.Request.Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"qr": qr})
}

func (h *AttendanceHandler) EndSession(c *gin.Context) {
	sess, err := h.svc.EndSession(c.Request.Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, toastSuccess, "Session ended.", gin.H{"session": sess})
}

// SessionRecords lists the records of one of the caller's sessions.
func (h *AttendanceHandler) SessionRecords(c *gin.Context) {
	ctx := c.Request.Context()
	sess, err := h.svc.GetSession(ctx, middleware.UID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	records, err := h.svc.SessionRecords(ctx, sess.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "records": records})
}

func (h *AttendanceHandler) MyRecords(c *gin.Context) {
	records, err := h.svc.StudentRecords(c.Request.Context(), middleware.UID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Mark records the caller's attendance for a scanned QR code.
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req attendance.MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}
	res, err := h.svc.Mark(c.Request.Context(), middleware.Profile(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"status": "success", "record": res.Record}
	if len(res.Warnings) > 0 {
		body["warnings"] = res.Warnings
	}
	respond(c, http.StatusOK, toastSuccess, "Attendance marked successfully!", body)
}
