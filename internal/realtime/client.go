package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cinestream/backend/config"
	"github.com/cinestream/backend/internal/ads"
	"github.com/cinestream/backend/internal/auth"
	"github.com/cinestream/backend/internal/catalog"
	"github.com/cinestream/backend/internal/metrics"
	"github.com/cinestream/backend/internal/player"
	"github.com/cinestream/backend/pkg/queue"
)

// Server → viewer events.
const (
	EventSession          = "session"
	EventSource           = "source"
	EventVideoError       = "video_error"
	EventAdStarted        = "ad_started"
	EventAdEnded          = "ad_ended"
	EventAdDismissRefused = "ad_dismiss_refused"
)

// Viewer → server events.
const (
	EventDismissAd = "dismiss_ad"
	EventClassify  = "classify"
)

const (
	sendBuffer     = 256
	lookupTimeout  = 5 * time.Second
	enqueueTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ImpressionQueue enqueues finished ad impressions for the worker.
type ImpressionQueue interface {
	EnqueueImpression(ctx context.Context, payload queue.ImpressionPayload) error
}

// WatchDeps are the collaborators of the watch endpoint. Only Ads is required; Catalog and Queue
// disable their features when nil.
type WatchDeps struct {
	Hub        *Hub
	Registry   *ads.Registry
	Inventory  *ads.Inventory
	Dispatcher *player.Dispatcher
	Catalog    catalog.Source
	Queue      ImpressionQueue
	JWT        *auth.JWTService
	Ads        config.AdsConfig
	Clock      ads.Clock
	Logger     *zap.Logger
}

// Watch serves GET /ws/watch and drives one ad controller per session.
type Watch struct {
	WatchDeps
}

// NewWatch creates the watch endpoint.
func NewWatch(deps WatchDeps) *Watch {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = ads.SystemClock{}
	}
	if deps.Registry == nil {
		deps.Registry = ads.NewRegistry()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = player.NewDispatcher(nil, nil)
	}
	if deps.Inventory == nil {
		deps.Inventory = ads.NewInventory(nil, deps.Ads.DefaultPlaylist, deps.Logger)
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger, nil, deps.Inventory)
	}
	return &Watch{WatchDeps: deps}
}

// Serve handles the WebSocket upgrade and runs the session loop. The token is optional;
// a missing or invalid token yields an anonymous session.
func (w *Watch) Serve(c *gin.Context) {
	var claims *auth.Claims
	if w.JWT != nil {
		if cl, err := w.JWT.FromRequest(c.Request); err == nil {
			claims = cl
		} else if !errors.Is(err, auth.ErrMissingToken) {
			w.Logger.Debug("watch token rejected, continuing anonymous", zap.Error(err))
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		w.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := w.newSession(c.Query("content_id"), claims, c.Request.UserAgent())
	s.conn = conn
	w.attach(s)
	go s.writePump()
	s.readPump()
	w.detach(s)
}

// Session is one viewer connection.
type Session struct {
	ID            uuid.UUID
	ContentID     string
	ViewerID      *uuid.UUID
	Authenticated bool
	UserAgent     string
	JoinedAt      time.Time

	watch      *Watch
	controller *ads.Controller
	conn       *websocket.Conn
	logger     *zap.Logger

	mu     sync.Mutex
	send   chan WSMessage
	closed bool
}

func (w *Watch) newSession(contentID string, claims *auth.Claims, userAgent string) *Session {
	s := &Session{
		ID:        uuid.New(),
		ContentID: contentID,
		UserAgent: userAgent,
		JoinedAt:  w.Clock.Now(),
		watch:     w,
		send:      make(chan WSMessage, sendBuffer),
	}
	if claims != nil {
		s.Authenticated = true
		id := claims.UserID
		s.ViewerID = &id
	}
	s.logger = w.Logger.With(zap.String("session_id", s.ID.String()))
	return s
}

// attach announces the session, resolves its content source and starts ad rotation.
func (w *Watch) attach(s *Session) {
	s.emit(EventSession, sessionEvent{SessionID: s.ID, Authenticated: s.Authenticated})
	if s.ContentID != "" {
		w.sendSource(s)
	}

	s.controller = ads.NewController(w.Inventory.Playlist(),
		ads.WithClock(w.Clock),
		ads.WithLogger(s.logger),
		ads.WithCallbacks(ads.Callbacks{OnAdStart: s.onAdStart, OnAdEnd: s.onAdEnd}),
	)
	s.controller.Initialize(ads.Params{
		Authenticated: s.Authenticated,
		Interval:      w.Ads.Interval(),
		Duration:      w.Ads.Duration(),
		SkipAfter:     w.Ads.SkipAfter(),
	})
	w.Hub.Register(s)
	w.Registry.Start(s.ID, s.controller)
}

// detach stops the session's timers and closes its outbound queue.
func (w *Watch) detach(s *Session) {
	w.Registry.Stop(s.ID)
	if s.controller != nil {
		s.controller.SetCallbacks(ads.Callbacks{})
	}
	w.Hub.Unregister(s)
	s.close()
}

func (w *Watch) sendSource(s *Session) {
	if w.Catalog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	content, err := w.Catalog.Get(ctx, s.ContentID)
	if err != nil {
		msg := "content unavailable"
		if errors.Is(err, catalog.ErrNotFound) {
			msg = "content not found"
		} else {
			s.logger.Warn("catalog lookup failed", zap.String("content_id", s.ContentID), zap.Error(err))
		}
		s.emit(EventVideoError, videoErrorEvent{Message: msg})
		return
	}
	desc := w.Dispatcher.Resolve(content.VideoURL, s.videoError)
	metrics.ObserveClassification(string(desc.Kind), desc.IsValid)
	s.emit(EventSource, sourceEvent{
		ContentID: content.ID,
		Title:     content.Title,
		MediaType: content.MediaType,
		Source:    desc,
	})
}

type sessionEvent struct {
	SessionID     uuid.UUID `json:"session_id"`
	Authenticated bool      `json:"authenticated"`
}

type sourceEvent struct {
	ContentID string            `json:"content_id,omitempty"`
	Title     string            `json:"title,omitempty"`
	MediaType string            `json:"media_type,omitempty"`
	Source    player.Descriptor `json:"source"`
}

type videoErrorEvent struct {
	Message string `json:"message"`
}

type creative struct {
	Title    string            `json:"title"`
	ClickURL string            `json:"click_url,omitempty"`
	FileType string            `json:"file_type,omitempty"`
	Source   player.Descriptor `json:"source"`
}

type adStartedEvent struct {
	AdID          string    `json:"ad_id"`
	StartedAt     time.Time `json:"started_at"`
	EndsAt        time.Time `json:"ends_at"`
	DismissibleAt time.Time `json:"dismissible_at"`
	Creative      creative  `json:"creative"`
}

type adEndedEvent struct {
	AdID   string `json:"ad_id"`
	Reason string `json:"reason"`
}

type dismissRefusedEvent struct {
	AdID        string `json:"ad_id"`
	RemainingMs int64  `json:"remaining_ms"`
}

func (s *Session) onAdStart(ad ads.Session) {
	metrics.AdsStarted.Inc()
	out := adStartedEvent{
		AdID:          ad.AdID,
		StartedAt:     ad.StartedAt,
		EndsAt:        ad.EndsAt,
		DismissibleAt: ad.DismissibleAt,
	}
	a := s.watch.Inventory.Lookup(ad.AdID)
	out.Creative = creative{
		Title:    a.Title,
		ClickURL: a.ClickURL,
		FileType: a.FileType,
		Source:   s.watch.Dispatcher.Classify(a.SourceURL),
	}
	s.emit(EventAdStarted, out)
}

func (s *Session) onAdEnd(ad ads.Session, reason ads.EndReason) {
	metrics.AdsEnded.WithLabelValues(string(reason)).Inc()
	s.emit(EventAdEnded, adEndedEvent{AdID: ad.AdID, Reason: string(reason)})

	q := s.watch.Queue
	if q == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	err := q.EnqueueImpression(ctx, queue.ImpressionPayload{
		AdRef:     ad.AdID,
		SessionID: s.ID,
		ContentID: s.ContentID,
		ViewerID:  s.ViewerID,
		UserAgent: s.UserAgent,
		StartedAt: ad.StartedAt,
		EndedAt:   s.watch.Clock.Now(),
		EndReason: string(reason),
	})
	if err != nil {
		s.logger.Warn("enqueue impression failed", zap.String("ad_ref", ad.AdID), zap.Error(err))
	}
}

func (s *Session) videoError(message string) {
	s.emit(EventVideoError, videoErrorEvent{Message: message})
}

// handleMessage processes one viewer message.
func (s *Session) handleMessage(msg WSMessage) {
	switch msg.Event {
	case EventDismissAd:
		s.dismiss()
	case EventClassify:
		var payload struct {
			URL string `json:"url"`
		}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				s.videoError(player.MsgMalformedURL)
				return
			}
		}
		desc := s.watch.Dispatcher.Resolve(payload.URL, s.videoError)
		metrics.ObserveClassification(string(desc.Kind), desc.IsValid)
		s.emit(EventSource, sourceEvent{Source: desc})
	default:
		// ignore
	}
}

func (s *Session) dismiss() {
	if s.controller == nil || s.watch.Registry.Dismiss(s.ID) {
		return
	}
	cur, ok := s.controller.Current()
	if !ok {
		return
	}
	metrics.AdDismissRefused.Inc()
	s.emit(EventAdDismissRefused, dismissRefusedEvent{
		AdID:        cur.AdID,
		RemainingMs: s.controller.RemainingSkip().Milliseconds(),
	})
}

func (s *Session) emit(event string, payload interface{}) {
	msg, err := newMessage(event, payload)
	if err != nil {
		s.logger.Warn("marshal event failed", zap.String("event", event), zap.Error(err))
		return
	}
	s.deliver(msg)
}

// deliver queues msg for the write pump; a full buffer drops it.
func (s *Session) deliver(msg WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- msg:
	default:
		s.logger.Warn("send buffer full, dropping event", zap.String("event", msg.Event))
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *Session) readPump() {
	defer func() {
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(65536)
	_ = s.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("watch session read failed", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		s.handleMessage(msg)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
