package middleware

import (
	"net/http"

	"builderhub/internal/identity"
	"builderhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	viewerKey    = "viewer"
	authErrorKey = "auth_error"
)

// Identity resolves the viewer for every request. Routes stay reachable for
// anonymous viewers: a rejected token is kept for AuthError and the request
// continues anonymously.
func Identity(provider identity.Provider, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		viewer, err := provider.Resolve(c.Request)
		if err != nil {
			log.Debug("identity rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err),
			)
			c.Set(authErrorKey, err)
		}

		c.Set(viewerKey, viewer)
		c.Request = c.Request.WithContext(identity.WithViewer(c.Request.Context(), viewer))
		c.Next()
	}
}

// Viewer returns the viewer resolved by Identity.
func Viewer(c *gin.Context) identity.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(identity.Viewer); ok {
			return viewer
		}
	}
	return identity.FromContext(c.Request.Context())
}

// AuthError returns why Identity rejected the request's credentials, or nil.
func AuthError(c *gin.Context) error {
	if v, ok := c.Get(authErrorKey); ok {
		if err, ok := v.(error); ok {
			return err
		}
	}
	return nil
}

// RequireSignedIn rejects anonymous viewers.
func RequireSignedIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Viewer(c).IsAuthenticated() {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		c.Next()
	}
}
