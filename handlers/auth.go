package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/presensync/presensync/backend/go-services/internal/auth"
	"github.com/presensync/presensync/backend/go-services/internal/config"
	"github.com/presensync/presensync/backend/go-services/internal/identity"
	"github.com/presensync/presensync/backend/go-services/internal/models"
	"github.com/presensync/presensync/backend/go-services/internal/roles"
	"github.com/presensync/presensync/backend/go-services/internal/sessions"
	"github.com/presensync/presensync/backend/go-services/internal/tokens"
	"github.com/presensync/presensync/backend/go-services/pkg/logger"
	"github.com/presensync/presensync/backend/go-services/pkg/metrics"
	"github.com/presensync/presensync/backend/go-services/pkg/middleware"
)

// Where a freshly signed-up student goes before the dashboard.
const faceRegistrationRoute = "/face-registration"

// SignupRequest creates a credential and both profile copies.
type SignupRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	FullName   string `json:"fullName" binding:"required"`
	Role       string `json:"role" binding:"omitempty,selfrole"`
	RollNo     string `json:"rollNo"`
	EmployeeID string `json:"employeeId"`
	Department string `json:"department"`
	Subject    string `json:"subject"`
	Phone      string `json:"phone"`
}

// LoginRequest signs in for the dashboard of Target. An empty Target means
// the dashboard of the stored role.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Target   string `json:"target" binding:"omitempty,role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	authSvc     *auth.Service
	sessionsSvc *sessions.Service
	mirror      *identity.Mirror
	syncer      *identity.Synchronizer
	now         func() time.Time
}

func NewAuthHandler(cfg *config.Config, a *auth.Service, s *sessions.Service, m *identity.Mirror, sy *identity.Synchronizer) *AuthHandler {
	RegisterValidators()
	return &AuthHandler{cfg: cfg, authSvc: a, sessionsSvc: s, mirror: m, syncer: sy, now: time.Now}
}

// Register routes under /auth. requireAuth guards the routes that need a signed-in caller.
func (h *AuthHandler) Register(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/signup", h.Signup)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
	a.POST("/password", requireAuth, h.ChangePassword)
}

func (h *AuthHandler) accessTTL() time.Duration {
	if h.cfg.JWT.AccessTokenTTL > 0 {
		return h.cfg.JWT.AccessTokenTTL
	}
	return 15 * time.Minute
}

func (h *AuthHandler) refreshTTL() time.Duration {
	if h.cfg.JWT.RefreshTokenTTL > 0 {
		return h.cfg.JWT.RefreshTokenTTL
	}
	return 7 * 24 * time.Hour
}

// issueTokens creates a refresh session and a matching access token.
func (h *AuthHandler) issueTokens(c *gin.Context, id *auth.Identity) (gin.H, error) {
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), id.UID, id.AuthTime, h.refreshTTL())
	if err != nil {
		return nil, err
	}
	access, err := tokens.GenerateAccessToken(h.cfg, tokens.Subject{UID: id.UID, Email: id.Email, Name: id.DisplayName, AuthTime: id.AuthTime}, h.accessTTL())
	if err != nil {
		return nil, err
	}
	return gin.H{"accessToken": access, "refreshToken": rft, "expiresIn": int(h.accessTTL().Seconds())}, nil
}

func authStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrEmailInUse):
		return http.StatusConflict, "This email is already registered."
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, "Password should be at least 6 characters."
	case errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest, "Please enter a valid email address."
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "Too many failed attempts. Please try again later."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Failed to login. Please check your credentials."
	case errors.Is(err, auth.ErrWrongPassword):
		return http.StatusBadRequest, "Current password is incorrect."
	case errors.Is(err, auth.ErrRequiresRecentLogin):
		return http.StatusUnauthorized, "Please log in again before changing your password."
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}

// Signup creates the credential and writes both profile copies with the chosen role.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	role := roles.Student
	if req.Role != "" {
		role, _ = roles.Parse(req.Role)
	}
	fullName := strings.TrimSpace(req.FullName)

	id, err := h.authSvc.SignUp(c.Request.Context(), req.Email, req.Password, fullName)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("signup", "rejected").Inc()
		status, msg := authStatus(err)
		fail(c, status, msg, err)
		return
	}
	metrics.AuthEvents.WithLabelValues("signup", "ok").Inc()

	profile := &models.UserProfile{
		UID:         id.UID,
		Email:       id.Email,
		FullName:    fullName,
		DisplayName: fullName,
		Role:        string(role),
		CreatedAt:   models.Timestamp(h.now()),
		RollNo:      req.RollNo,
		EmployeeID:  req.EmployeeID,
		Department:  req.Department,
		Subject:     req.Subject,
		Phone:       req.Phone,
	}
	toastType, msg := toastSuccess, "Account created successfully!"
	if err := h.mirror.CreateBoth(c.Request.Context(), profile); err != nil {
		// the synchronizer completes missing copies at the next login
		logger.Errorf("signup uid=%s: write profiles: %v", id.UID, err)
		toastType, msg = toastWarning, "Account created, but your profile is still being set up."
	}

	body, err := h.issueTokens(c, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to create session", err)
		return
	}
	body["uid"] = id.UID
	body["role"] = role
	body["profile"] = profile
	body["redirect"] = roles.Resolve(id.UID, &role, role)
	if role == roles.Student {
		body["next"] = faceRegistrationRoute
	}
	respond(c, http.StatusCreated, toastType, msg, body)
}

// Login signs in, makes sure both profile copies exist and resolves where the
// caller lands for the requested target.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	id, err := h.authSvc.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("login", "rejected").Inc()
		status, msg := authStatus(err)
		fail(c, status, msg, err)
		return
	}

	res, _ := h.syncer.Sync(ctx, id)
	role := res.Role()
	target := roles.Student
	if req.Target != "" {
		target, _ = roles.Parse(req.Target)
	} else if role != nil {
		target = *role
	}
	redirect := roles.Resolve(id.UID, role, target)
	if redirect == roles.LoginRoute {
		metrics.AuthEvents.WithLabelValues("login", "wrong_role").Inc()
		h.authSvc.SignOut(ctx, id.UID)
		msg := "Your account does not have access to the " + string(target) + " dashboard."
		if role == nil {
			msg = "Your profile is not ready yet. Please try again."
		}
		c.JSON(http.StatusForbidden, gin.H{"error": msg, "redirect": redirect, "toast": toast(toastError, msg)})
		return
	}

	body, err := h.issueTokens(c, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to create session", err)
		return
	}
	metrics.AuthEvents.WithLabelValues("login", "ok").Inc()
	body["uid"] = id.UID
	body["role"] = *role
	body["redirect"] = redirect
	body["profile"] = res.Profile
	respond(c, http.StatusOK, toastSuccess, "Logged in successfully!", body)
}

// Refresh accepts a refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.sessionsSvc.ValidateRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, http.StatusInternalServerError, "validation failed", err)
		return
	}
	if sess == nil {
		fail(c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	id, err := h.authSvc.Lookup(c.Request.Context(), sess.UID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			fail(c, http.StatusUnauthorized, "invalid refresh token", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "user lookup failed", err)
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, tokens.Subject{UID: id.UID, Email: id.Email, Name: id.DisplayName, AuthTime: sess.AuthTime}, h.accessTTL())
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to create access token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access, "expiresIn": int(h.accessTTL().Seconds())})
}

// Logout invalidates the refresh token and blacklists the presented access token
// for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	uid := ""
	if at, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && at != "" {
		if claims, err := tokens.Parse(h.cfg.JWT.Secret, at); err == nil {
			uid, _ = claims["sub"].(string)
			if ttl := time.Until(tokens.Expiry(claims)); ttl > 0 {
				if err := sessions.BlacklistAccessToken(ctx, at, ttl); err != nil {
					fail(c, http.StatusInternalServerError, "failed to blacklist access token", err)
					return
				}
			}
		}
	}
	if sess, err := h.sessionsSvc.ValidateRefresh(ctx, req.RefreshToken); err == nil && sess != nil && uid == "" {
		uid = sess.UID
	}
	if err := h.sessionsSvc.DeleteRefresh(ctx, req.RefreshToken); err != nil {
		fail(c, http.StatusInternalServerError, "failed to remove session", err)
		return
	}
	h.authSvc.SignOut(ctx, uid)
	metrics.AuthEvents.WithLabelValues("logout", "ok").Inc()
	respond(c, http.StatusOK, toastSuccess, "logged out", gin.H{"redirect": roles.LoginRoute})
}

// ChangePassword needs a token issued within the recent-login window. Other
// refresh sessions of the user are revoked on success.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	uid := middleware.UID(c)
	authTime := tokens.AuthTime(middleware.Claims(c))
	err := h.authSvc.ChangePassword(c.Request.Context(), uid, authTime, req.CurrentPassword, req.NewPassword)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("password", "rejected").Inc()
		status, msg := authStatus(err)
		if errors.Is(err, auth.ErrUserNotFound) {
			status, msg = http.StatusNotFound, "Account not found."
		}
		if auth.IsReauthRequired(err) {
			c.JSON(status, gin.H{"error": msg, "reauth": true, "toast": toast(toastError, msg)})
			return
		}
		fail(c, status, msg, err)
		return
	}
	if err := h.sessionsSvc.RevokeAll(c.Request.Context(), uid); err != nil {
		logger.Warnf("password change uid=%s: revoke sessions: %v", uid, err)
	}
	metrics.AuthEvents.WithLabelValues("password", "ok").Inc()
	respond(c, http.StatusOK, toastSuccess, "Password updated successfully!", nil)
}
