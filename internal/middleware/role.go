package middleware

import (
	"net/http"

	"builderhub/internal/identity"
	"builderhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequirePermission ensures the viewer holds perm through one of their roles.
func RequirePermission(perms identity.Permissions, perm identity.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := Viewer(c)
		if !viewer.IsAuthenticated() {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		if !perms.HasPermission(viewer, perm) {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			return
		}

		c.Next()
	}
}
