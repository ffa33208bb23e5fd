package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/logging"
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Authenticator resolves an Authorization header value to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*models.Identity, error)
}

// RequireAuth rejects requests without a valid bearer access token. A
// missing header, a malformed one and a bad token all get the same 401.
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authenticate(c.Request.Context(), c.GetHeader(common.AuthorizationHeaderName))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errUnauthenticated)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// identityFrom returns the identity stored by RequireAuth.
func identityFrom(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return &models.Identity{}
	}
	id, _ := v.(*models.Identity)
	if id == nil {
		return &models.Identity{}
	}
	return id
}

// RequestLogger logs one line per request. Bodies and headers are never logged.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		l.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
