// Package httpapi exposes the account flows of AuthService over HTTP
// using gin.
package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/brainy/internal/logging"
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/dmitrijs2005/brainy/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthService is the subset of services.AuthService the handlers use.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) (*services.ForgotPasswordResult, error)
	ValidateResetToken(ctx context.Context, token string) (*services.ResetTokenStatus, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (*models.User, error)
	Authenticate(ctx context.Context, header string) (*models.Identity, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

type Handler struct {
	auth   AuthService
	logger logging.Logger
}

func NewHandler(auth AuthService, logger logging.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// RegisterRoutes mounts the auth endpoints under /api/auth.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/auth")

	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.POST("/refresh-token", h.Refresh)
	g.POST("/forgot-password", h.ForgotPassword)
	g.GET("/reset-password/:token", h.ValidateResetToken)
	g.POST("/reset-password/:token", h.ResetPassword)

	authed := g.Group("", RequireAuth(h.auth))
	authed.POST("/logout-all", h.LogoutAll)
	authed.POST("/change-password", h.ChangePassword)
	authed.GET("/me", h.Me)
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{Message: "registered", AuthResult: res})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Message: "logged in", AuthResult: res})
}

func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *Handler) LogoutAll(c *gin.Context) {
	id := identityFrom(c)

	n, err := h.auth.LogoutAll(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, logoutAllResponse{Message: "logged out from all devices", Revoked: n})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.auth.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) ValidateResetToken(c *gin.Context) {
	res, err := h.auth.ValidateResetToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		status, body := statusFor(err)
		if status == http.StatusInternalServerError {
			h.fail(c, err)
			return
		}
		c.AbortWithStatusJSON(status, invalidResetResponse{errorResponse: body, Valid: false})
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{Message: "password has been reset", User: user})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	id := identityFrom(c)
	user, err := h.auth.ChangePassword(c.Request.Context(), id.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse{Message: "password changed", User: user})
}

func (h *Handler) Me(c *gin.Context) {
	id := identityFrom(c)

	user, err := h.auth.Me(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
