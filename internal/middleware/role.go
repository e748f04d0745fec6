package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles. Use after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := RoleFrom(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "missing user context")
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}
