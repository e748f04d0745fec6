package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/database"
)

// DeviceCount is the number of impressions seen on one device class.
type DeviceCount struct {
	Device      string `json:"device"`
	Impressions int64  `json:"impressions"`
}

// Repository handles ad impression persistence and aggregation.
type Repository struct {
	db database.Querier
}

// NewRepository creates an impressions repository.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// Insert stores one impression and fills its ID and CreatedAt.
func (r *Repository) Insert(ctx context.Context, imp *models.AdImpression) error {
	const q = `INSERT INTO ad_impressions
		(ad_ref, session_id, content_id, viewer_id, device, browser, started_at, ended_at, end_reason)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8, $9)
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q,
		imp.AdRef, imp.SessionID, imp.ContentID, imp.ViewerID, imp.Device, imp.Browser,
		imp.StartedAt, imp.EndedAt, imp.EndReason,
	).Scan(&imp.ID, &imp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert impression: %w", err)
	}
	return nil
}

// StatsByRef aggregates impressions started at or after since, most shown first.
func (r *Repository) StatsByRef(ctx context.Context, since time.Time) ([]models.AdStats, error) {
	const q = `SELECT ad_ref,
			COUNT(*),
			COUNT(*) FILTER (WHERE end_reason = 'dismissed'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (ended_at - started_at))), 0)::float8
		FROM ad_impressions
		WHERE started_at >= $1
		GROUP BY ad_ref
		ORDER BY COUNT(*) DESC, ad_ref`
	rows, err := r.db.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("impression stats: %w", err)
	}
	defer rows.Close()

	out := []models.AdStats{}
	for rows.Next() {
		var s models.AdStats
		if err := rows.Scan(&s.Ref, &s.Impressions, &s.Dismissed, &s.AvgWatchSecs); err != nil {
			return nil, fmt.Errorf("scan impression stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Devices counts impressions per device class since the given time.
func (r *Repository) Devices(ctx context.Context, since time.Time) ([]DeviceCount, error) {
	const q = `SELECT device, COUNT(*) FROM ad_impressions
		WHERE started_at >= $1
		GROUP BY device ORDER BY COUNT(*) DESC, device`
	rows, err := r.db.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("impression devices: %w", err)
	}
	defer rows.Close()

	out := []DeviceCount{}
	for rows.Next() {
		var d DeviceCount
		if err := rows.Scan(&d.Device, &d.Impressions); err != nil {
			return nil, fmt.Errorf("scan impression devices: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
