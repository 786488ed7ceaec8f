package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
)

// Toast types shown by the client after a user-initiated action.
const (
	toastSuccess = "success"
	toastWarning = "warning"
	toastError   = "error"
	toastInfo    = "info"
)

func toast(typ, message string) gin.H {
	return gin.H{"type": typ, "message": message}
}

// respond writes body with a toast attached.
func respond(c *gin.Context, status int, typ, message string, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	if _, ok := body["message"]; !ok {
		body["message"] = message
	}
	body["toast"] = toast(typ, message)
	c.JSON(status, body)
}

// fail writes an error body with an error toast. Server-side errors are logged.
func fail(c *gin.Context, status int, message string, err error) {
	if status >= http.StatusInternalServerError && err != nil {
		logger.Errorf("%s %s: %s: %v", c.Request.Method, c.FullPath(), message, err)
	}
	c.JSON(status, gin.H{"error": message, "toast": toast(toastError, message)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "toast": toast(toastError, "Please check the form and try again.")})
}
