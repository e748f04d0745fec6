package ads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/database"
)

var (
	// ErrNotFound is returned when no advertisement matches.
	ErrNotFound = errors.New("advertisement not found")
	// ErrUnknownRef is returned by Reorder when a ref does not exist.
	ErrUnknownRef = errors.New("unknown advertisement ref")
	// ErrDuplicateRef is returned by Create when the ref is already taken.
	ErrDuplicateRef = errors.New("advertisement ref already exists")
)

const pgUniqueViolation = "23505"

const adColumns = `id, ref, title, source_url, COALESCE(s3_key,''), COALESCE(file_type,''), COALESCE(click_url,''), position, is_active, created_at`

// Repository handles advertisement persistence.
type Repository struct {
	db database.Querier
}

// NewRepository creates an advertisement repository.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

func scanAd(row pgx.Row, a *models.Advertisement) error {
	return row.Scan(&a.ID, &a.Ref, &a.Title, &a.SourceURL, &a.S3Key, &a.FileType, &a.ClickURL, &a.Position, &a.IsActive, &a.CreatedAt)
}

// Create inserts an advertisement at the end of the playlist.
func (r *Repository) Create(ctx context.Context, a *models.Advertisement) error {
	const q = `INSERT INTO advertisements (ref, title, source_url, s3_key, file_type, click_url, position, is_active)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), (SELECT COALESCE(MAX(position) + 1, 0) FROM advertisements), $7)
		RETURNING id, position, created_at`
	err := r.db.QueryRow(ctx, q, a.Ref, a.Title, a.SourceURL, a.S3Key, a.FileType, a.ClickURL, a.IsActive).
		Scan(&a.ID, &a.Position, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateRef
		}
		return fmt.Errorf("insert advertisement: %w", err)
	}
	return nil
}

// GetByID returns an advertisement by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Advertisement, error) {
	q := `SELECT ` + adColumns + ` FROM advertisements WHERE id = $1`
	var a models.Advertisement
	if err := scanAd(r.db.QueryRow(ctx, q, id), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get advertisement: %w", err)
	}
	return &a, nil
}

// List returns all advertisements in playlist order.
func (r *Repository) List(ctx context.Context) ([]models.Advertisement, error) {
	return r.list(ctx, `SELECT `+adColumns+` FROM advertisements ORDER BY position, created_at`)
}

// ListActive returns active advertisements in playlist order (the default rotation).
func (r *Repository) ListActive(ctx context.Context) ([]models.Advertisement, error) {
	return r.list(ctx, `SELECT `+adColumns+` FROM advertisements WHERE is_active = TRUE ORDER BY position, created_at`)
}

func (r *Repository) list(ctx context.Context, q string) ([]models.Advertisement, error) {
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list advertisements: %w", err)
	}
	defer rows.Close()
	var list []models.Advertisement
	for rows.Next() {
		var a models.Advertisement
		if err := scanAd(rows, &a); err != nil {
			return nil, fmt.Errorf("scan advertisement: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// ToggleActive flips is_active and returns the new value.
func (r *Repository) ToggleActive(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE advertisements SET is_active = NOT is_active WHERE id = $1 RETURNING is_active`
	var active bool
	if err := r.db.QueryRow(ctx, q, id).Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle advertisement: %w", err)
	}
	return active, nil
}

// Delete removes an advertisement and returns its S3 key (empty when it had none).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (string, error) {
	const q = `DELETE FROM advertisements WHERE id = $1 RETURNING COALESCE(s3_key,'')`
	var key string
	if err := r.db.QueryRow(ctx, q, id).Scan(&key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("delete advertisement: %w", err)
	}
	return key, nil
}

// Reorder sets position by the order of refs in one transaction. Refs not listed keep their position.
func (r *Repository) Reorder(ctx context.Context, refs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE advertisements SET position = $1 WHERE ref = $2`
	for i, ref := range refs {
		tag, err := tx.Exec(ctx, q, i, ref)
		if err != nil {
			return fmt.Errorf("reorder %s: %w", ref, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownRef, ref)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}
