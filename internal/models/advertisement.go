package models

import (
	"time"

	"github.com/google/uuid"
)

// Advertisement is an ad creative that can appear in the default rotation playlist.
// Ref is the opaque identifier used by playlists (e.g. a YouTube video ID).
type Advertisement struct {
	ID        uuid.UUID `json:"id"`
	Ref       string    `json:"ref"`
	Title     string    `json:"title"`
	SourceURL string    `json:"source_url"`
	S3Key     string    `json:"s3_key,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	ClickURL  string    `json:"click_url,omitempty"`
	Position  int       `json:"position"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AdStats aggregates impressions for one ad ref.
type AdStats struct {
	Ref          string  `json:"ref"`
	Impressions  int64   `json:"impressions"`
	Dismissed    int64   `json:"dismissed"`
	AvgWatchSecs float64 `json:"avg_watch_seconds"`
}
