package ads

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cinestream/backend/config"
	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/response"
	"github.com/cinestream/backend/pkg/storage"
)

const errInvalidCreative = "invalid file type: only image (jpg, png, webp, gif) and video (mp4, webm) allowed"

// Store is the advertisement persistence used by Handler.
type Store interface {
	List(ctx context.Context) ([]models.Advertisement, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Advertisement, error)
	Create(ctx context.Context, a *models.Advertisement) error
	ToggleActive(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (string, error)
	Reorder(ctx context.Context, refs []string) error
}

// CreativeStorage stores uploaded ad creatives.
type CreativeStorage interface {
	UploadAd(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	GeneratePresignedUploadURL(ctx context.Context, key, contentType string) (string, time.Duration, error)
	PublicObjectURL(key string) string
	DeleteAd(ctx context.Context, key string) error
}

// Publisher tells every server instance that the default playlist changed.
type Publisher interface {
	PublishAdsUpdated(ctx context.Context) error
}

// CreateRequest is the body for POST /admin/ads.
type CreateRequest struct {
	Ref       string `json:"ref" binding:"required"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	S3Key     string `json:"s3_key"`
	FileType  string `json:"file_type"`
	ClickURL  string `json:"click_url"`
	Inactive  bool   `json:"inactive"`
}

// UploadURLRequest is the body for POST /admin/ads/upload-url.
type UploadURLRequest struct {
	Ref         string `json:"ref" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size" binding:"required,gt=0"`
}

// ReorderRequest is the body for PUT /admin/ads/order.
type ReorderRequest struct {
	Refs []string `json:"refs" binding:"required,min=1"`
}

// ConfigResponse is the public ad rotation configuration.
type ConfigResponse struct {
	IntervalMinutes float64  `json:"interval_minutes"`
	DurationSeconds float64  `json:"duration_seconds"`
	SkipAfterSecs   float64  `json:"skip_after_seconds"`
	Playlist        []string `json:"playlist"`
}

// Handler serves the public ad configuration and the admin ad management endpoints.
type Handler struct {
	store     Store
	storage   CreativeStorage
	inventory *Inventory
	publisher Publisher
	cfg       config.AdsConfig
	logger    *zap.Logger
}

// NewHandler creates an ads handler. storage and publisher may be nil.
func NewHandler(store Store, creatives CreativeStorage, inventory *Inventory, publisher Publisher, cfg config.AdsConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, storage: creatives, inventory: inventory, publisher: publisher, cfg: cfg, logger: logger}
}

// Config handles GET /ads/config.
func (h *Handler) Config(c *gin.Context) {
	response.OK(c, ConfigResponse{
		IntervalMinutes: h.cfg.IntervalMinutes,
		DurationSeconds: h.cfg.DurationSeconds,
		SkipAfterSecs:   h.cfg.SkipAfterSecs,
		Playlist:        h.inventory.Playlist().IDs(),
	})
}

// List handles GET /admin/ads.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list ads failed", zap.Error(err))
		response.Internal(c, "failed to list ads")
		return
	}
	if list == nil {
		list = []models.Advertisement{}
	}
	response.OK(c, list)
}

// Get handles GET /admin/ads/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ad id")
		return
	}
	ad, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "ad not found")
			return
		}
		h.logger.Error("get ad failed", zap.Error(err), zap.String("ad_id", id.String()))
		response.Internal(c, "failed to load ad")
		return
	}
	response.OK(c, ad)
}

// Create handles POST /admin/ads.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Ref = strings.TrimSpace(req.Ref)
	if req.Ref == "" {
		response.BadRequest(c, "ref is required")
		return
	}
	if req.SourceURL == "" && req.S3Key != "" && h.storage != nil {
		req.SourceURL = h.storage.PublicObjectURL(req.S3Key)
	}

	a := &models.Advertisement{
		Ref:       req.Ref,
		Title:     req.Title,
		SourceURL: req.SourceURL,
		S3Key:     req.S3Key,
		FileType:  req.FileType,
		ClickURL:  req.ClickURL,
		IsActive:  !req.Inactive,
	}
	if err := h.store.Create(c.Request.Context(), a); err != nil {
		if errors.Is(err, ErrDuplicateRef) {
			response.Conflict(c, "ad ref already exists")
			return
		}
		h.logger.Error("create ad failed", zap.Error(err), zap.String("ref", req.Ref))
		response.Internal(c, "failed to create advertisement")
		return
	}
	h.refresh(c.Request.Context())
	response.Created(c, a)
}

// UploadURL handles POST /admin/ads/upload-url. Returns a pre-signed PUT URL for direct upload.
func (h *Handler) UploadURL(c *gin.Context) {
	if h.storage == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.FileSize > storage.MaxAdFileSize {
		response.BadRequest(c, "file size exceeds 50MB limit")
		return
	}
	contentType, ok := storage.CreativeContentType(req.ContentType, req.Filename)
	if !ok {
		response.BadRequest(c, errInvalidCreative)
		return
	}
	key := storage.AdKey(req.Ref, req.Filename)

	url, expires, err := h.storage.GeneratePresignedUploadURL(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("generate presigned upload URL failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "storage upload unavailable")
		return
	}
	response.OK(c, gin.H{
		"upload_url":   url,
		"s3_key":       key,
		"file_url":     h.storage.PublicObjectURL(key),
		"content_type": contentType,
		"expires_in":   int(expires.Seconds()),
	})
}

// Upload handles POST /admin/ads/upload (multipart: ref, file). Server-side upload to the public bucket.
func (h *Handler) Upload(c *gin.Context) {
	if h.storage == nil {
		response.ServiceUnavailable(c, "storage not configured")
		return
	}
	ref := strings.TrimSpace(c.PostForm("ref"))
	if ref == "" {
		response.BadRequest(c, "missing ref (form field: ref)")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxAdFileSize {
		response.BadRequest(c, "file size exceeds 50MB limit")
		return
	}
	contentType, ok := storage.CreativeContentType(file.Header.Get("Content-Type"), file.Filename)
	if !ok {
		response.BadRequest(c, errInvalidCreative)
		return
	}
	key := storage.AdKey(ref, file.Filename)

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	fileURL, err := h.storage.UploadAd(c.Request.Context(), key, contentType, rc, file.Size)
	if err != nil {
		h.logger.Error("S3 upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload file to storage")
		return
	}
	response.OK(c, gin.H{
		"s3_key":       key,
		"file_url":     fileURL,
		"content_type": contentType,
		"file_size":    file.Size,
	})
}

// Toggle handles PATCH /admin/ads/:id/toggle.
func (h *Handler) Toggle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ad id")
		return
	}
	active, err := h.store.ToggleActive(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "ad not found")
			return
		}
		h.logger.Error("toggle ad failed", zap.Error(err), zap.String("ad_id", id.String()))
		response.Internal(c, "failed to toggle ad")
		return
	}
	h.refresh(c.Request.Context())
	response.OK(c, gin.H{"id": id, "is_active": active})
}

// Reorder handles PUT /admin/ads/order.
func (h *Handler) Reorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.store.Reorder(c.Request.Context(), req.Refs); err != nil {
		if errors.Is(err, ErrUnknownRef) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("reorder ads failed", zap.Error(err))
		response.Internal(c, "failed to reorder ads")
		return
	}
	h.refresh(c.Request.Context())
	response.OK(c, gin.H{"playlist": h.inventory.Playlist().IDs()})
}

// Delete handles DELETE /admin/ads/:id. The S3 object is removed best-effort.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ad id")
		return
	}
	key, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "ad not found")
			return
		}
		h.logger.Error("delete ad failed", zap.Error(err), zap.String("ad_id", id.String()))
		response.Internal(c, "failed to delete ad")
		return
	}
	if key != "" && h.storage != nil {
		if err := h.storage.DeleteAd(c.Request.Context(), key); err != nil {
			h.logger.Warn("delete ad object failed", zap.Error(err), zap.String("s3_key", key))
		}
	}
	h.refresh(c.Request.Context())
	response.NoContent(c)
}

// refresh reloads the local inventory and notifies the other instances.
func (h *Handler) refresh(ctx context.Context) {
	if err := h.inventory.Reload(ctx); err != nil {
		h.logger.Warn("ad inventory reload failed", zap.Error(err))
	}
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishAdsUpdated(ctx); err != nil {
		h.logger.Warn("publish ads_updated failed", zap.Error(err))
	}
}
