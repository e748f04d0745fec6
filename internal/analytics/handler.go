package analytics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/response"
)

const (
	defaultDays = 30
	maxDays     = 365
)

// StatsStore reads impression aggregates.
type StatsStore interface {
	StatsByRef(ctx context.Context, since time.Time) ([]models.AdStats, error)
	Devices(ctx context.Context, since time.Time) ([]DeviceCount, error)
}

// StatsResponse is the JSON shape for GET /admin/ads/stats.
type StatsResponse struct {
	Since   time.Time        `json:"since"`
	Days    int              `json:"days"`
	Ads     []models.AdStats `json:"ads"`
	Devices []DeviceCount    `json:"devices"`
}

// Handler handles GET /admin/ads/stats.
type Handler struct {
	store  StatsStore
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates an analytics handler.
func NewHandler(store StatsStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// Stats handles GET /admin/ads/stats?days=N (default 30, max 365). Admin only (enforced by route middleware).
func (h *Handler) Stats(c *gin.Context) {
	days := defaultDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDays {
			response.BadRequest(c, "days must be between 1 and 365")
			return
		}
		days = n
	}
	since := h.now().UTC().AddDate(0, 0, -days)
	ctx := c.Request.Context()

	perAd, err := h.store.StatsByRef(ctx, since)
	if err != nil {
		h.logger.Error("load impression stats failed", zap.Error(err))
		response.Internal(c, "failed to load ad stats")
		return
	}
	devices, err := h.store.Devices(ctx, since)
	if err != nil {
		h.logger.Error("load device breakdown failed", zap.Error(err))
		response.Internal(c, "failed to load ad stats")
		return
	}

	response.OK(c, StatsResponse{Since: since, Days: days, Ads: perAd, Devices: devices})
}
