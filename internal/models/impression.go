package models

import (
	"time"

	"github.com/google/uuid"
)

// End reasons recorded on an impression.
const (
	ImpressionEndExpired   = "expired"
	ImpressionEndDismissed = "dismissed"
)

// AdImpression is one ad shown to one watch session.
type AdImpression struct {
	ID        uuid.UUID  `json:"id"`
	AdRef     string     `json:"ad_ref"`
	SessionID uuid.UUID  `json:"session_id"`
	ContentID string     `json:"content_id,omitempty"`
	ViewerID  *uuid.UUID `json:"viewer_id,omitempty"`
	Device    string     `json:"device"`
	Browser   string     `json:"browser,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	EndReason string     `json:"end_reason"`
	CreatedAt time.Time  `json:"created_at"`
}
