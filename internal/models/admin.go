package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the caller's role in the service.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Admin is a content-management account.
type Admin struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminPublic is Admin without sensitive fields for API responses.
type AdminPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Admin to AdminPublic.
func (a *Admin) ToPublic() AdminPublic {
	return AdminPublic{
		ID:        a.ID,
		Email:     a.Email,
		Role:      RoleAdmin,
		CreatedAt: a.CreatedAt,
	}
}
