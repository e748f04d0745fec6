package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/response"
	"github.com/cinestream/backend/pkg/utils"
)

// AdminStore loads admin accounts.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
}

// LoginRequest is the body for POST /admin/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the login response with JWT.
type TokenResponse struct {
	Token string             `json:"token"`
	Admin models.AdminPublic `json:"admin"`
}

// StatusResponse answers whether the caller is signed in. Ads run only when Authenticated is false.
type StatusResponse struct {
	Authenticated bool        `json:"authenticated"`
	Role          models.Role `json:"role,omitempty"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	admins AdminStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(admins AdminStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{admins: admins, jwt: jwt, logger: logger}
}

// Login handles POST /admin/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	admin, err := h.admins.GetByEmail(c.Request.Context(), email)
	if err != nil {
		if !errors.Is(err, ErrAdminNotFound) {
			h.logger.Error("admin lookup failed", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, admin.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(admin.ID, admin.Email, models.RoleAdmin)
	if err != nil {
		h.logger.Error("sign token failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, Admin: admin.ToPublic()})
}

// Status handles GET /auth/status. A missing or invalid token means unauthenticated, not an error.
func (h *Handler) Status(c *gin.Context) {
	claims, err := h.jwt.FromRequest(c.Request)
	if err != nil {
		response.OK(c, StatusResponse{})
		return
	}
	response.OK(c, StatusResponse{Authenticated: true, Role: claims.Role})
}
