package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinestream/backend/internal/auth"
	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT rejects requests without a valid token and sets the claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwtService.FromRequest(c.Request)
		if err != nil {
			msg := "invalid or expired token"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "missing authorization header"
			}
			response.Abort(c, http.StatusUnauthorized, msg)
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT sets the claims in context when a valid token is present and never rejects.
func OptionalJWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := jwtService.FromRequest(c.Request); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// IsAuthenticated reports whether a JWT middleware accepted a token for this request.
func IsAuthenticated(c *gin.Context) bool {
	_, ok := c.Get(ContextUserID)
	return ok
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	c.Set(ContextUserEmail, claims.Email)
}

// RoleFrom returns the caller role set by JWT or OptionalJWT.
func RoleFrom(c *gin.Context) (models.Role, bool) {
	v, ok := c.Get(ContextUserRole)
	if !ok {
		return "", false
	}
	role, ok := v.(models.Role)
	return role, ok
}
