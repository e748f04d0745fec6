package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/database"
)

// ErrAdminNotFound is returned when no admin has the given email.
var ErrAdminNotFound = errors.New("admin not found")

// Repository handles admin account persistence.
type Repository struct {
	db database.Querier
}

// NewRepository creates an admin repository.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// GetByEmail returns an admin by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const q = `SELECT id, email, password_hash, created_at FROM admins WHERE email = $1`
	var a models.Admin
	err := r.db.QueryRow(ctx, q, email).Scan(&a.ID, &a.Email, &a.Password, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &a, nil
}

// EnsureAdmin creates the admin if the email is not taken yet. It reports whether a row was inserted.
func (r *Repository) EnsureAdmin(ctx context.Context, email, passwordHash string) (bool, error) {
	const q = `INSERT INTO admins (email, password_hash) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`
	tag, err := r.db.Exec(ctx, q, email, passwordHash)
	if err != nil {
		return false, fmt.Errorf("ensure admin: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
