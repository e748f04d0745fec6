package ads

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds the running controller of each watch session (thread-safe).
type Registry struct {
	mu          sync.RWMutex
	controllers map[uuid.UUID]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[uuid.UUID]*Controller)}
}

// Start registers c under sessionID and starts it. It returns false, leaving c untouched,
// when the session already has a controller.
func (reg *Registry) Start(sessionID uuid.UUID, c *Controller) bool {
	reg.mu.Lock()
	if reg.controllers[sessionID] != nil {
		reg.mu.Unlock()
		return false
	}
	reg.controllers[sessionID] = c
	reg.mu.Unlock()
	c.Start()
	return true
}

// Get returns the controller for sessionID, or nil.
func (reg *Registry) Get(sessionID uuid.UUID) *Controller {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.controllers[sessionID]
}

// Dismiss forwards a viewer dismiss to the session's controller.
func (reg *Registry) Dismiss(sessionID uuid.UUID) bool {
	c := reg.Get(sessionID)
	if c == nil {
		return false
	}
	return c.Dismiss()
}

// Stop tears down and removes the controller for sessionID.
func (reg *Registry) Stop(sessionID uuid.UUID) {
	reg.mu.Lock()
	c := reg.controllers[sessionID]
	delete(reg.controllers, sessionID)
	reg.mu.Unlock()
	if c != nil {
		c.Teardown()
	}
}

// StopAll tears down every controller. Used on shutdown.
func (reg *Registry) StopAll() {
	reg.mu.Lock()
	all := reg.controllers
	reg.controllers = make(map[uuid.UUID]*Controller)
	reg.mu.Unlock()
	for _, c := range all {
		c.Teardown()
	}
}

// Len returns the number of registered sessions.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.controllers)
}
