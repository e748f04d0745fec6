package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cinestream/backend/internal/ads"
	"github.com/cinestream/backend/internal/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// EventAdsUpdated tells viewers and instances that the default playlist changed.
	EventAdsUpdated = "ads_updated"

	reloadTimeout = 5 * time.Second
)

// EventBus carries events between server instances.
type EventBus interface {
	Publish(ctx context.Context, event string, payload []byte) error
	Subscribe(handler func(event string, payload []byte)) (cancel func(), err error)
}

// adsUpdatedEvent is the payload of ads_updated.
type adsUpdatedEvent struct {
	Playlist []string `json:"playlist"`
}

// Hub maintains the connected watch sessions of this instance.
// With a bus, ads_updated goes through Redis so every instance reloads and broadcasts once.
type Hub struct {
	sessions  map[uuid.UUID]*Session
	mu        sync.RWMutex
	logger    *zap.Logger
	bus       EventBus
	inventory *ads.Inventory
	cancelSub func()
}

// NewHub creates a hub. bus may be nil for a single instance.
func NewHub(logger *zap.Logger, bus EventBus, inventory *ads.Inventory) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions:  make(map[uuid.UUID]*Session),
		logger:    logger,
		bus:       bus,
		inventory: inventory,
	}
}

// Run subscribes to the event bus.
func (h *Hub) Run() error {
	if h.bus == nil {
		return nil
	}
	cancel, err := h.bus.Subscribe(h.handleBusEvent)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cancelSub = cancel
	h.mu.Unlock()
	return nil
}

// Close stops the bus subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	cancel := h.cancelSub
	h.cancelSub = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Register adds a session.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	_, exists := h.sessions[s.ID]
	h.sessions[s.ID] = s
	h.mu.Unlock()
	if !exists {
		metrics.WatchSessions.Inc()
	}
	h.logger.Debug("watch session joined", zap.String("session_id", s.ID.String()), zap.String("content_id", s.ContentID))
}

// Unregister removes a session.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, exists := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if exists {
		metrics.WatchSessions.Dec()
	}
	h.logger.Debug("watch session left", zap.String("session_id", s.ID.String()))
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast sends a message to every local session.
func (h *Hub) Broadcast(event string, payload interface{}) {
	msg, err := newMessage(event, payload)
	if err != nil {
		h.logger.Warn("marshal broadcast failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.deliver(msg)
	}
}

// PublishAdsUpdated announces a playlist change. With a bus it publishes only, and the
// subscriber of each instance (this one included) reloads and broadcasts.
func (h *Hub) PublishAdsUpdated(ctx context.Context) error {
	payload := adsUpdatedEvent{Playlist: h.playlistIDs()}
	if h.bus == nil {
		h.Broadcast(EventAdsUpdated, payload)
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := h.bus.Publish(ctx, EventAdsUpdated, data); err != nil {
		h.Broadcast(EventAdsUpdated, payload)
		return err
	}
	return nil
}

func (h *Hub) handleBusEvent(event string, payload []byte) {
	switch event {
	case EventAdsUpdated:
		if h.inventory != nil {
			ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			err := h.inventory.Reload(ctx)
			cancel()
			if err != nil {
				h.logger.Warn("ad inventory reload failed", zap.Error(err))
			}
		}
		h.Broadcast(EventAdsUpdated, adsUpdatedEvent{Playlist: h.playlistIDs()})
	default:
		h.Broadcast(event, json.RawMessage(payload))
	}
}

func (h *Hub) playlistIDs() []string {
	var ids []string
	if h.inventory != nil {
		ids = h.inventory.Playlist().IDs()
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func newMessage(event string, payload interface{}) (WSMessage, error) {
	var data []byte
	switch v := payload.(type) {
	case nil:
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return WSMessage{}, err
		}
		data = b
	}
	return WSMessage{Event: event, Data: data}, nil
}
