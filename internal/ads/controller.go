package ads

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the controller lifecycle state.
type State int

const (
	// StateIdle means armed (or not yet started) with no ad on screen.
	StateIdle State = iota
	// StateShowing means an ad session is open.
	StateShowing
	// StateDisabled is terminal: authenticated viewer or empty effective playlist.
	StateDisabled
	// StateStopped means Teardown was called.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateShowing:
		return "showing"
	case StateDisabled:
		return "disabled"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// EndReason says why an ad session closed.
type EndReason string

const (
	EndExpired   EndReason = "expired"
	EndDismissed EndReason = "dismissed"
)

// Session is the single ad currently on screen.
type Session struct {
	AdID          string
	StartedAt     time.Time
	EndsAt        time.Time
	DismissibleAt time.Time
	seq           uint64
}

// Callbacks receive ad lifecycle notifications. Either may be nil.
type Callbacks struct {
	OnAdStart func(Session)
	OnAdEnd   func(Session, EndReason)
}

// Params configures one rotation run.
type Params struct {
	AdIDs         []string // empty means use the shared default playlist
	Authenticated bool
	Interval      time.Duration
	Duration      time.Duration
	SkipAfter     time.Duration // countdown before Dismiss is honoured; 0 allows immediate dismiss
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithCallbacks sets the notification callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(c *Controller) { c.callbacks = cb }
}

type event struct {
	start   bool
	session Session
	reason  EndReason
}

// Controller decides when an ad is shown to an unauthenticated viewer, which one, and when it goes away.
// It owns two timers: the recurring show timer and the per-ad hide timer.
type Controller struct {
	mu        sync.Mutex
	clock     Clock
	logger    *zap.Logger
	callbacks Callbacks
	defaults  *Playlist

	params   Params
	playlist *Playlist
	index    int
	state    State
	running  bool
	session  *Session
	seq      uint64
	run      uint64 // bumped on Initialize/Teardown so stale timers become no-ops
	interval Timer
	hide     Timer

	pending  []event
	draining bool
}

// NewController creates a controller. defaults is the shared playlist used when
// Initialize receives no ad IDs; it may be nil.
func NewController(defaults *Playlist, opts ...Option) *Controller {
	c := &Controller{
		clock:    SystemClock{},
		logger:   zap.NewNop(),
		defaults: defaults,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize stops any current run and applies p. The controller becomes
// permanently disabled when neither p.AdIDs nor the shared defaults hold an ad.
func (c *Controller) Initialize(p Params) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimersLocked()
	c.run++
	c.session = nil
	c.pending = nil
	c.running = false
	c.index = 0
	c.params = p

	if len(clean(p.AdIDs)) > 0 {
		c.playlist = NewPlaylist(p.AdIDs)
	} else {
		c.playlist = c.defaults
	}
	switch {
	case c.playlist.Len() == 0:
		c.state = StateDisabled
		c.logger.Debug("ad controller disabled: empty playlist")
	case p.Interval <= 0 || p.Duration <= 0:
		c.state = StateDisabled
		c.logger.Warn("ad controller disabled: non-positive timing", zap.Duration("interval", p.Interval), zap.Duration("duration", p.Duration))
	default:
		c.state = StateIdle
	}
}

// Start arms the recurring timer. It is a no-op for authenticated viewers,
// disabled or stopped controllers, and when already running.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle || c.running {
		return
	}
	if c.params.Authenticated {
		c.state = StateDisabled
		return
	}
	c.running = true
	c.armIntervalLocked(c.run)
	c.logger.Debug("ad controller started", zap.Duration("interval", c.params.Interval), zap.Int("playlist_len", c.playlist.Len()))
}

// Dismiss closes the open ad on the viewer's request. It reports whether a
// session was closed: false when nothing is showing or the skip countdown has not elapsed.
func (c *Controller) Dismiss() bool {
	c.mu.Lock()
	if c.session == nil || c.state != StateShowing {
		c.mu.Unlock()
		return false
	}
	if c.clock.Now().Before(c.session.DismissibleAt) {
		c.mu.Unlock()
		return false
	}
	c.closeLocked(EndDismissed)
	c.drainLocked()
	return true
}

// Teardown cancels both timers and drops the open session without notifying. Idempotent.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimersLocked()
	c.run++
	c.session = nil
	c.pending = nil
	c.running = false
	c.state = StateStopped
}

// SetCallbacks replaces the notification callbacks. Pass Callbacks{} to detach a consumer.
func (c *Controller) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	c.callbacks = cb
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the open session, if any.
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// RemainingSkip returns how long until Dismiss is honoured; zero when dismissible or nothing is showing.
func (c *Controller) RemainingSkip() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	if d := c.session.DismissibleAt.Sub(c.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Playlist returns the effective playlist (own or shared). Mutations affect the next rotation only.
func (c *Controller) Playlist() *Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist
}

func (c *Controller) armIntervalLocked(run uint64) {
	c.interval = c.clock.AfterFunc(c.params.Interval, func() { c.tick(run) })
}

func (c *Controller) tick(run uint64) {
	c.mu.Lock()
	if run != c.run || !c.running {
		c.mu.Unlock()
		return
	}
	// Read now before arming so the next tick and this ad's EndsAt share one origin;
	// with Interval >= Duration the next tick then never lands before EndsAt.
	now := c.clock.Now()
	c.armIntervalLocked(run)
	if c.session != nil {
		if now.Before(c.session.EndsAt) {
			c.mu.Unlock()
			return
		}
		// Hide and show landed on the same instant: close first.
		c.closeLocked(EndExpired)
	}
	c.openLocked(now)
	c.drainLocked()
}

func (c *Controller) expire(run, seq uint64) {
	c.mu.Lock()
	if run != c.run || c.session == nil || c.session.seq != seq {
		c.mu.Unlock()
		return
	}
	c.closeLocked(EndExpired)
	c.drainLocked()
}

func (c *Controller) openLocked(now time.Time) {
	id, at, ok := c.playlist.pick(c.index)
	if !ok {
		return
	}
	c.index = at
	c.seq++
	s := &Session{
		AdID:          id,
		StartedAt:     now,
		EndsAt:        now.Add(c.params.Duration),
		DismissibleAt: now.Add(c.params.SkipAfter),
		seq:           c.seq,
	}
	c.session = s
	c.state = StateShowing
	run, seq := c.run, s.seq
	c.hide = c.clock.AfterFunc(c.params.Duration, func() { c.expire(run, seq) })
	c.pending = append(c.pending, event{start: true, session: *s})
}

func (c *Controller) closeLocked(reason EndReason) {
	s := c.session
	c.session = nil
	c.state = StateIdle
	if c.hide != nil {
		c.hide.Stop()
		c.hide = nil
	}
	c.index++
	if c.index >= c.playlist.Len() {
		c.index = 0
	}
	c.pending = append(c.pending, event{session: *s, reason: reason})
}

func (c *Controller) stopTimersLocked() {
	if c.interval != nil {
		c.interval.Stop()
		c.interval = nil
	}
	if c.hide != nil {
		c.hide.Stop()
		c.hide = nil
	}
}

// drainLocked delivers pending notifications in order with the lock released,
// then unlocks. Reentrant calls from a callback only enqueue.
func (c *Controller) drainLocked() {
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending = c.pending[1:]
		cb := c.callbacks
		c.mu.Unlock()
		if ev.start {
			if cb.OnAdStart != nil {
				cb.OnAdStart(ev.session)
			}
		} else if cb.OnAdEnd != nil {
			cb.OnAdEnd(ev.session, ev.reason)
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}
