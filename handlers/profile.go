package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/storage"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

const photoURLTTL = 15 * time.Minute

type faceRequest struct {
	Descriptor []float64 `json:"descriptor" binding:"required,min=1"`
}

// ProfileHandler serves the caller's own profile. Every change goes to both copies.
type ProfileHandler struct {
	mirror *identity.Mirror
	photos storage.ObjectStore
	now    func() time.Time
}

// NewProfileHandler builds the handler; photos may be nil when object storage is not configured.
func NewProfileHandler(m *identity.Mirror, photos storage.ObjectStore) *ProfileHandler {
	return &ProfileHandler{mirror: m, photos: photos, now: time.Now}
}

// Register mounts the routes on a group that already runs AuthMiddleware.
func (h *ProfileHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/me", h.Get)
	rg.PATCH("/me", h.Update)
	rg.PUT("/me/face", h.SetFace)
	rg.PUT("/me/photo", h.UploadPhoto)
	rg.GET("/me/photo", h.PhotoURL)
}

func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.mirror.ReadPrivate(c.Request.Context(), middleware.UID(c))
	if err != nil {
		if identity.IsNotFound(err) {
			fail(c, http.StatusNotFound, "Profile not found.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not load your profile.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// writeBoth applies fields to both copies and answers with the fresh private copy.
func (h *ProfileHandler) writeBoth(c *gin.Context, fields models.Fields, okMsg string) {
	ctx := c.Request.Context()
	uid := middleware.UID(c)
	err := h.mirror.UpdateBoth(ctx, uid, fields)
	var merr *identity.MirrorError
	switch {
	case err == nil:
	case errors.As(err, &merr) && merr.Partial():
		// one copy is stale until the next write
		logger.Warnf("profile update uid=%s partially applied: %v", uid, err)
	case errors.As(err, &merr) && merr.Missing():
		fail(c, http.StatusNotFound, "Profile not found.", nil)
		return
	default:
		fail(c, http.StatusInternalServerError, "Failed to save profile.", err)
		return
	}
	p, rerr := h.mirror.ReadPrivate(ctx, uid)
	if rerr != nil {
		logger.Warnf("profile update uid=%s: reload: %v", uid, rerr)
	}
	if err != nil {
		respond(c, http.StatusOK, toastWarning, "Profile saved, but some changes may take a moment to appear.", gin.H{"profile": p})
		return
	}
	respond(c, http.StatusOK, toastSuccess, okMsg, gin.H{"profile": p})
}

// Update changes user-editable fields. Role, email, uid and createdAt cannot be set here.
func (h *ProfileHandler) Update(c *gin.Context) {
	var upd models.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, err)
		return
	}
	fields := upd.Fields()
	if len(fields) == 0 {
		fail(c, http.StatusBadRequest, "Nothing to update.", nil)
		return
	}
	h.writeBoth(c, fields, "Profile saved successfully!")
}

// SetFace stores the client-computed face descriptor.
func (h *ProfileHandler) SetFace(c *gin.Context) {
	var req faceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.writeBoth(c, models.Fields{"faceDescriptor": req.Descriptor}, "Face registered successfully!")
}

// UploadPhoto stores the multipart "photo" file and points the profile at it.
func (h *ProfileHandler) UploadPhoto(c *gin.Context) {
	if h.photos == nil {
		fail(c, http.StatusServiceUnavailable, "Photo uploads are not available.", nil)
		return
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		fail(c, http.StatusBadRequest, "Please choose a photo to upload.", nil)
		return
	}
	if fh.Size > storage.MaxPhotoSize {
		fail(c, http.StatusRequestEntityTooLarge, "Photo is too large.", nil)
		return
	}
	uid := middleware.UID(c)
	key, err := storage.PhotoKey(uid, fh.Header.Get("Content-Type"), h.now())
	if err != nil {
		fail(c, http.StatusUnsupportedMediaType, "Photos must be JPEG, PNG or WebP.", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "Could not read the uploaded photo.", nil)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	old, _ := h.mirror.ReadPrivate(ctx, uid)
	if err := h.photos.Put(ctx, key, f, fh.Size, fh.Header.Get("Content-Type")); err != nil {
		if errors.Is(err, storage.ErrImageTooBig) {
			fail(c, http.StatusRequestEntityTooLarge, "Photo is too large.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to upload photo.", err)
		return
	}
	if err := h.mirror.UpdateBoth(ctx, uid, models.Fields{"photoKey": key}); err != nil {
		var merr *identity.MirrorError
		if !errors.As(err, &merr) || !merr.Partial() {
			_ = h.photos.Delete(ctx, key)
			fail(c, http.StatusInternalServerError, "Failed to save photo.", err)
			return
		}
		logger.Warnf("photo uid=%s partially applied: %v", uid, err)
	}
	if old != nil && old.PhotoKey != "" && old.PhotoKey != key && storage.OwnsKey(uid, old.PhotoKey) {
		if err := h.photos.Delete(ctx, old.PhotoKey); err != nil {
			logger.Warnf("photo uid=%s: remove previous %s: %v", uid, old.PhotoKey, err)
		}
	}
	url, err := h.photos.URL(ctx, key, photoURLTTL)
	if err != nil {
		logger.Warnf("photo uid=%s: presign: %v", uid, err)
	}
	respond(c, http.StatusOK, toastSuccess, "Photo updated!", gin.H{"photoKey": key, "url": url})
}

// PhotoURL returns a short-lived link to the caller's photo.
func (h *ProfileHandler) PhotoURL(c *gin.Context) {
	if h.photos == nil {
		fail(c, http.StatusServiceUnavailable, "Photo uploads are not available.", nil)
		return
	}
	p, err := h.mirror.ReadPrivate(c.Request.Context(), middleware.UID(c))
	if err != nil && !identity.IsNotFound(err) {
		fail(c, http.StatusInternalServerError, "Could not load your profile.", err)
		return
	}
	if p == nil || p.PhotoKey == "" {
		fail(c, http.StatusNotFound, "No photo uploaded yet.", nil)
		return
	}
	url, err := h.photos.URL(c.Request.Context(), p.PhotoKey, photoURLTTL)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fail(c, http.StatusNotFound, "No photo uploaded yet.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not load your photo.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int(photoURLTTL.Seconds())})
}
