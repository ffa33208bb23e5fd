package httpapi

import (
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/dmitrijs2005/brainy/internal/server/services"
)

type registerRequest struct {
	Username  string  `json:"username" binding:"required,max=100"`
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required,min=6,max=72"`
	FullName  string  `json:"full_name" binding:"required"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,url"`
}

// loginRequest.Username may hold a username or an email address.
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=72"`
}

type authResponse struct {
	Message string `json:"message"`
	*services.AuthResult
}

type messageResponse struct {
	Message string `json:"message"`
}

type logoutAllResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

type userResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

type invalidResetResponse struct {
	errorResponse
	Valid bool `json:"valid"`
}
