package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var (
	errInvalidPayload  = errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"}
	errUnauthenticated = errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"}
	errInternal        = errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"}
)

// statusFor maps a service error onto an HTTP status and response body.
// All access token failures share one body.
func statusFor(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, errorResponse{Code: "VALIDATION_ERROR", Message: validationMessage(err)}
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "username or email already exists"}
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Code: "INVALID_CREDENTIALS", Message: "invalid credentials"}
	case errors.Is(err, common.ErrAccountLocked):
		return http.StatusForbidden, errorResponse{Code: "ACCOUNT_LOCKED", Message: "account is locked"}
	case errors.Is(err, common.ErrInvalidOrExpired):
		return http.StatusUnauthorized, errorResponse{Code: "INVALID_TOKEN", Message: "token is invalid or expired"}
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrMalformedToken),
		errors.Is(err, common.ErrUnsupportedAlgorithm),
		errors.Is(err, common.ErrInvalidSignature),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, errUnauthenticated
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "not found"}
	default:
		return http.StatusInternalServerError, errInternal
	}
}

// validationMessage drops the sentinel prefix from a wrapped validation error.
func validationMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, common.ErrorValidation.Error()+": "); ok {
		return rest
	}
	return msg
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, body := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the request body into dst and writes a 400 on failure.
// Field errors are reported under their JSON names.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = formatFieldError(fe)
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  fields,
		})
		return false
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, errInvalidPayload)
	return false
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed on " + fe.Tag() + " validation"
	}
}
