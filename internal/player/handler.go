package player

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cinestream/backend/internal/catalog"
	"github.com/cinestream/backend/internal/metrics"
	"github.com/cinestream/backend/pkg/response"
)

// SourceResponse is the body of GET /content/:id/source.
type SourceResponse struct {
	ContentID string     `json:"content_id"`
	Title     string     `json:"title"`
	MediaType string     `json:"media_type,omitempty"`
	Source    Descriptor `json:"source"`
}

// Handler exposes URL classification over HTTP.
type Handler struct {
	dispatcher *Dispatcher
	catalog    catalog.Source
	logger     *zap.Logger
}

// NewHandler creates a player handler. source may be nil when no catalog is configured.
func NewHandler(dispatcher *Dispatcher, source catalog.Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(nil, nil)
	}
	return &Handler{dispatcher: dispatcher, catalog: source, logger: logger}
}

// Classify handles GET /player/classify?url=. Invalid URLs are data, not errors.
func (h *Handler) Classify(c *gin.Context) {
	raw, ok := c.GetQuery("url")
	if !ok {
		response.BadRequest(c, "missing url query parameter")
		return
	}
	response.OK(c, h.classify(raw))
}

// ContentSource handles GET /content/:id/source: catalog lookup then classification.
func (h *Handler) ContentSource(c *gin.Context) {
	if h.catalog == nil {
		response.ServiceUnavailable(c, "catalog not configured")
		return
	}
	id := c.Param("id")
	content, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			response.NotFound(c, "content not found")
			return
		}
		h.logger.Warn("catalog lookup failed", zap.Error(err), zap.String("content_id", id))
		response.BadGateway(c, "catalog unavailable")
		return
	}
	response.OK(c, SourceResponse{
		ContentID: content.ID,
		Title:     content.Title,
		MediaType: content.MediaType,
		Source:    h.classify(content.VideoURL),
	})
}

func (h *Handler) classify(raw string) Descriptor {
	d := h.dispatcher.Classify(raw)
	metrics.ObserveClassification(string(d.Kind), d.IsValid)
	return d
}
